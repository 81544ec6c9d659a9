package quality

import (
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// NonPositiveDetector flags zero or negative values on fields the schema
// declares strictly positive (prices, volumes, supply). Rates and macro
// surprise fields legitimately go negative and are never flagged.
type NonPositiveDetector struct{}

// NewNonPositiveDetector creates a non-positive value detector
func NewNonPositiveDetector() *NonPositiveDetector {
	return &NonPositiveDetector{}
}

func (d *NonPositiveDetector) Name() string { return "non_positive" }

// Detect emits one defect per offending cell
func (d *NonPositiveDetector) Detect(tbl *table.Table, _ *request.Request) []Defect {
	var defects []Defect
	for _, field := range tbl.Fields() {
		meta, ok := schema.Lookup(field)
		if !ok || !meta.RequiresPositive {
			continue
		}
		for _, row := range tbl.Rows() {
			v, has := row.Value(field)
			if !has || v > 0 {
				continue
			}
			defects = append(defects, Defect{
				Ticker:    row.Ticker,
				Field:     field,
				Timestamp: row.Timestamp,
				Kind:      DefectNonPositive,
				Severity:  1,
				Evidence:  Evidence{Value: v},
			})
		}
	}
	return defects
}
