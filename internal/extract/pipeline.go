package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"cryptodata/internal/cache"
	"cryptodata/internal/config"
	"cryptodata/internal/logging"
	"cryptodata/internal/metrics"
	"cryptodata/internal/quality"
	"cryptodata/internal/repair"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/storage"
	"cryptodata/internal/table"
)

// Result is the complete outcome of one extraction run: the cleaned table
// together with everything needed to audit how it got that way.
type Result struct {
	RunID       uuid.UUID             `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Table       *table.Table          `json:"-"`
	Defects     quality.Report        `json:"defects"`
	Repairs     []repair.ActionRecord `json:"repairs"`
	Summary     quality.Summary       `json:"summary"`
	Unresolved  []CoverageGap         `json:"unresolved,omitempty"`
	Dropped     []string              `json:"dropped_tickers,omitempty"`
	FromCache   bool                  `json:"from_cache"`
}

// Pipeline runs extract, detect and repair as one unit of work. Detection
// and repair are pure single-threaded passes over the assembled table;
// concurrency lives entirely inside the orchestrator.
type Pipeline struct {
	orch     *Orchestrator
	quality  *quality.Engine
	repair   *repair.Engine
	minObs   int
	cacher   cache.Cacher
	cacheTTL time.Duration
	store    storage.Store
	metrics  *metrics.Collector
	log      *logging.Logger
}

// NewPipeline wires the three stages. cacher and store may be nil.
func NewPipeline(orch *Orchestrator, qe *quality.Engine, re *repair.Engine, cfg *config.Config, cacher cache.Cacher, store storage.Store, collector *metrics.Collector, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{
		orch:     orch,
		quality:  qe,
		repair:   re,
		minObs:   cfg.Repair.MinObs,
		cacher:   cacher,
		cacheTTL: cfg.Extract.CacheTTL,
		store:    store,
		metrics:  collector,
		log:      log,
	}
}

// Run executes the full pipeline for one request. The result always pairs
// a best-effort table with the explicit gap and repair lists; a partial
// extraction is a result, not an error.
func (p *Pipeline) Run(ctx context.Context, req *request.Request) (*Result, error) {
	if cached, ok := p.fromCache(ctx, req); ok {
		return cached, nil
	}

	raw, gaps, err := p.orch.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	report, err := p.quality.Run(raw, req)
	if err != nil {
		return nil, err
	}
	repaired, actions, err := p.repair.Apply(raw, report, req)
	if err != nil {
		return nil, err
	}
	repaired, droppedTickers := repair.FilterMinObs(repaired, p.minObs)

	result := &Result{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Table:       repaired,
		Defects:     report,
		Repairs:     actions,
		Summary:     quality.Summarize(repaired, report),
		Unresolved:  gaps,
		Dropped:     droppedTickers,
	}

	if p.metrics != nil {
		for kind, n := range report.CountByKind() {
			for i := 0; i < n; i++ {
				p.metrics.Defect(string(kind))
			}
		}
		for _, a := range actions {
			p.metrics.Repair(string(a.Action))
		}
	}

	p.persist(ctx, result)
	p.toCache(ctx, req, result)

	p.log.WithFields(map[string]interface{}{
		"run_id":  result.RunID,
		"rows":    repaired.Len(),
		"defects": report.Len(),
		"repairs": len(actions),
		"gaps":    len(gaps),
	}).Info("pipeline run complete")
	return result, nil
}

// persist hands the run to the storage collaborator; storage failures are
// logged, not fatal, the caller still gets the in-memory result
func (p *Pipeline) persist(ctx context.Context, result *Result) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRun(ctx, storage.Run{
		ID:          result.RunID,
		GeneratedAt: result.GeneratedAt,
		Table:       result.Table,
		Defects:     result.Defects,
		Repairs:     result.Repairs,
	}); err != nil {
		p.log.WithError(err).Error("persisting run failed")
	}
}

// cachePayload is the serialized form of a result; the table travels as
// its exported rows
type cachePayload struct {
	Result Result         `json:"result"`
	Fields []schema.Field `json:"fields"`
	Rows   []*table.Row   `json:"rows"`
}

func cacheKey(req *request.Request) string {
	sum := sha256.Sum256([]byte(req.String()))
	return "extract:" + hex.EncodeToString(sum[:16])
}

func (p *Pipeline) fromCache(ctx context.Context, req *request.Request) (*Result, bool) {
	if p.cacher == nil || p.cacheTTL <= 0 {
		return nil, false
	}
	payload, ok, err := p.cacher.Get(ctx, cacheKey(req))
	if err != nil || !ok {
		return nil, false
	}
	var cp cachePayload
	if err := json.Unmarshal(payload, &cp); err != nil {
		return nil, false
	}
	tbl := table.New(cp.Fields...)
	for _, r := range cp.Rows {
		tbl.Append(r)
	}
	result := cp.Result
	result.Table = tbl
	result.FromCache = true
	return &result, true
}

func (p *Pipeline) toCache(ctx context.Context, req *request.Request, result *Result) {
	if p.cacher == nil || p.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(cachePayload{
		Result: *result,
		Fields: result.Table.Fields(),
		Rows:   result.Table.Rows(),
	})
	if err != nil {
		return
	}
	if err := p.cacher.Set(ctx, cacheKey(req), payload, p.cacheTTL); err != nil {
		p.log.WithError(err).Warn("caching result failed")
	}
}
