// Package storage defines the persistence boundary. The pipeline hands a
// finished run to a Store and never touches files or buckets itself;
// concrete backends live outside the core.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cryptodata/internal/quality"
	"cryptodata/internal/repair"
	"cryptodata/internal/table"
)

// Run is the unit of persistence: the cleaned table plus its audit
// artifacts
type Run struct {
	ID          uuid.UUID
	GeneratedAt time.Time
	Table       *table.Table
	Defects     quality.Report
	Repairs     []repair.ActionRecord
}

// Store persists finished extraction runs
type Store interface {
	SaveRun(ctx context.Context, run Run) error
}

// Nop discards every run; used when persistence is disabled
type Nop struct{}

func (Nop) SaveRun(context.Context, Run) error { return nil }
