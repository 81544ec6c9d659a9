package quality

import (
	"cryptodata/internal/request"
	"cryptodata/internal/table"
)

// DuplicateDetector flags rows sharing a (timestamp, ticker) key. Duplicate
// keys survive merging when a provider republishes a bar; the defect covers
// the whole row, so Field is left empty.
type DuplicateDetector struct{}

// NewDuplicateDetector creates a duplicate-key detector
func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{}
}

func (d *DuplicateDetector) Name() string { return "duplicate" }

// Detect scans adjacent rows of the sorted table and emits one defect per
// duplicated key
func (d *DuplicateDetector) Detect(tbl *table.Table, _ *request.Request) []Defect {
	rows := tbl.Rows()

	var defects []Defect
	var prev *table.Row
	reported := make(map[table.Key]struct{})
	for _, row := range rows {
		if prev != nil && prev.Key() == row.Key() {
			if _, done := reported[row.Key()]; !done {
				reported[row.Key()] = struct{}{}
				defects = append(defects, Defect{
					Ticker:    row.Ticker,
					Timestamp: row.Timestamp,
					Kind:      DefectDuplicateTimestamp,
					Severity:  1,
				})
			}
		}
		prev = row
	}
	return defects
}
