package quality

import (
	"cryptodata/internal/config"
	apperr "cryptodata/internal/errors"
	"cryptodata/internal/logging"
	"cryptodata/internal/request"
	"cryptodata/internal/table"
)

// Detector inspects a table for one class of quality defect. Detectors are
// read-only: they never mutate the table they inspect.
type Detector interface {
	Name() string
	Detect(tbl *table.Table, req *request.Request) []Defect
}

// Engine runs an ordered detector pipeline over a merged table
type Engine struct {
	detectors []Detector
	log       *logging.Logger
}

// NewEngine builds the standard detector pipeline from configuration
func NewEngine(cfg config.QualityConfig, cal Calendar, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		log: log,
		detectors: []Detector{
			NewDuplicateDetector(),
			NewGapDetector(cfg.MaxInterpolatableGap, cal),
			NewNonPositiveDetector(),
			NewStaleDetector(cfg.StaleRunLength),
			NewOutlierDetector(cfg.OutlierWindow, cfg.OutlierThreshold, cfg.OutlierMinObs),
		},
	}
}

// NewEngineWith builds an engine from an explicit detector list
func NewEngineWith(log *logging.Logger, detectors ...Detector) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{log: log, detectors: detectors}
}

// Run executes every detector and returns the merged report. The table is
// not modified.
func (e *Engine) Run(tbl *table.Table, req *request.Request) (Report, error) {
	if tbl == nil {
		return Report{}, apperr.New(apperr.ErrCodeValidation, "quality detection requires a table", nil)
	}

	var all []Defect
	for _, d := range e.detectors {
		found := d.Detect(tbl, req)
		if len(found) > 0 {
			e.log.WithFields(map[string]interface{}{
				"detector": d.Name(),
				"defects":  len(found),
			}).Debug("detector finished")
		}
		all = append(all, found...)
	}

	report := NewReport(all)
	e.log.WithFields(map[string]interface{}{
		"rows":    tbl.Len(),
		"defects": report.Len(),
	}).Info("quality detection complete")
	return report, nil
}
