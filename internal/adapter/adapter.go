package adapter

import (
	"context"
	"time"

	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// Adapter is the contract every data provider implements. Concrete adapters
// (one per vendor) live outside the core; the core depends only on this
// interface and never on vendor transport details.
type Adapter interface {
	// Name returns the provider identifier, e.g. "coinmetrics"
	Name() string

	// Capabilities returns the adapter's static capability tables
	Capabilities() Capabilities

	// Supports reports whether the adapter can, even partially, satisfy
	// the request. Decided from the capability tables, never a network call.
	Supports(req *request.Request) bool

	// Fetch performs the external calls, paginates until the requested
	// range is covered or the provider's history is exhausted, and maps
	// every record into the canonical schema. Fields the adapter claims to
	// support but the provider omits come back as missing cells, not
	// dropped columns. Failure modes: SOURCE_UNAVAILABLE (transient),
	// UNSUPPORTED_REQUEST (partial at call time), SCHEMA_MAPPING_ERROR
	// (unexpected payload shape).
	Fetch(ctx context.Context, req *request.Request) (*table.Table, error)
}

// RateBudget is a provider's declared call budget. External rate limits are
// a hard constraint: the orchestrator throttles to this budget rather than
// relying on provider-side 429 handling.
type RateBudget struct {
	RequestsPerSec float64
	Burst          int
	MaxConcurrent  int
}

// Capabilities are the static tables an adapter is selected and ranked by
type Capabilities struct {
	Categories  []schema.Category
	Fields      []schema.Field
	Frequencies []schema.Frequency
	MarketTypes []schema.MarketType

	// Priority ranks this provider against others covering the same slice;
	// higher wins on overlap.
	Priority int

	// HistoryStart is the earliest timestamp the provider has data for.
	// Zero means unknown/unbounded.
	HistoryStart time.Time

	// MaxObsPerCall bounds one page of results; the adapter paginates past it.
	MaxObsPerCall int

	Rate RateBudget
}

// HasCategory reports whether the capability tables include the category
func (c Capabilities) HasCategory(cat schema.Category) bool {
	for _, v := range c.Categories {
		if v == cat {
			return true
		}
	}
	return false
}

// HasField reports whether the capability tables include the field
func (c Capabilities) HasField(f schema.Field) bool {
	for _, v := range c.Fields {
		if v == f {
			return true
		}
	}
	return false
}

// HasFrequency reports whether the capability tables include the frequency
func (c Capabilities) HasFrequency(f schema.Frequency) bool {
	for _, v := range c.Frequencies {
		if v == f {
			return true
		}
	}
	return false
}

// HasMarketType reports whether the capability tables include the market type
func (c Capabilities) HasMarketType(m schema.MarketType) bool {
	for _, v := range c.MarketTypes {
		if v == m {
			return true
		}
	}
	return false
}

// FieldCoverage returns how many of the requested fields the tables cover
func (c Capabilities) FieldCoverage(fields []schema.Field) int {
	n := 0
	for _, f := range fields {
		if c.HasField(f) {
			n++
		}
	}
	return n
}

// CanServe is the default Supports implementation: category, frequency and
// market type must match, and at least one requested field must be covered.
func CanServe(c Capabilities, req *request.Request) bool {
	if !c.HasCategory(req.Category()) {
		return false
	}
	if !c.HasFrequency(req.Freq()) {
		return false
	}
	if !c.HasMarketType(req.MarketType()) {
		return false
	}
	return c.FieldCoverage(req.Fields()) > 0
}

// Base provides common provider plumbing for concrete adapters
type Base struct {
	name string
	caps Capabilities
}

// NewBase creates the shared adapter base
func NewBase(name string, caps Capabilities) *Base {
	return &Base{name: name, caps: caps}
}

// Name returns the provider identifier
func (b *Base) Name() string { return b.name }

// Capabilities returns the static capability tables
func (b *Base) Capabilities() Capabilities { return b.caps }

// Supports applies the default capability check
func (b *Base) Supports(req *request.Request) bool {
	return CanServe(b.caps, req)
}
