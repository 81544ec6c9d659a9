package extract

import (
	"context"
	"sort"
	"sync"
	"time"

	"cryptodata/internal/adapter"
	"cryptodata/internal/cache"
	"cryptodata/internal/config"
	apperr "cryptodata/internal/errors"
	"cryptodata/internal/logging"
	"cryptodata/internal/metrics"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// Registry holds the known provider adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]adapter.Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]adapter.Adapter)}
}

// Register adds an adapter; later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(a adapter.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by provider name
func (r *Registry) Get(name string) (adapter.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// All returns the registered adapters sorted by name
func (r *Registry) All() []adapter.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapter.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// CoverageGap names a (ticker, field) slice no provider could supply,
// with the reason extraction could not resolve it
type CoverageGap struct {
	Ticker string       `json:"ticker"`
	Field  schema.Field `json:"field"`
	Reason string       `json:"reason"`
}

// Orchestrator fans a request out across capable adapters, throttled per
// provider, and merges the results into one canonical table.
type Orchestrator struct {
	registry *Registry
	limits   *limiterPool
	retry    config.RetryConfig
	timeout  time.Duration
	metrics  *metrics.Collector
	log      *logging.Logger
}

// NewOrchestrator wires the orchestrator. cacher may be nil when no shared
// rate window is wanted; collector may be nil in tests.
func NewOrchestrator(reg *Registry, cfg config.ExtractConfig, cacher cache.Cacher, collector *metrics.Collector, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		registry: reg,
		limits:   newLimiterPool(cfg, cacher),
		retry:    cfg.Retry,
		timeout:  cfg.Timeout,
		metrics:  collector,
		log:      log,
	}
}

// fetchUnit is one (adapter, ticker) slice of the fan-out
type fetchUnit struct {
	adapter  adapter.Adapter
	priority int
	ticker   string
	fields   []schema.Field
}

// fetchResult pairs a unit with its outcome
type fetchResult struct {
	unit fetchUnit
	tbl  *table.Table
	err  error
}

// Extract resolves the request against the registry and returns the merged
// table plus the unresolved coverage gaps. A failing provider never aborts
// sibling slices; on timeout, completed slices are kept as a partial
// result.
func (o *Orchestrator) Extract(ctx context.Context, req *request.Request) (*table.Table, []CoverageGap, error) {
	candidates, err := o.candidates(req)
	if err != nil {
		return nil, nil, err
	}

	units := planUnits(candidates, req)
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	results := o.fanOut(ctx, req, units)
	merged, gaps := o.merge(req, results)

	if o.metrics != nil {
		o.metrics.ExtractionRun(merged.Len(), len(gaps))
	}
	o.log.WithFields(map[string]interface{}{
		"providers": len(candidates),
		"units":     len(units),
		"rows":      merged.Len(),
		"gaps":      len(gaps),
	}).Info("extraction complete")
	return merged, gaps, nil
}

// candidates selects the single named adapter, or every supporting adapter
// ranked by priority
func (o *Orchestrator) candidates(req *request.Request) ([]adapter.Adapter, error) {
	if source := req.Source(); source != "" {
		a, ok := o.registry.Get(source)
		if !ok {
			return nil, apperr.Newf(apperr.ErrCodeUnsupportedRequest, "unknown source: %q", source)
		}
		if !a.Supports(req) {
			return nil, apperr.Newf(apperr.ErrCodeUnsupportedRequest,
				"source %q does not support request %s", source, req)
		}
		return []adapter.Adapter{a}, nil
	}

	var supporting []adapter.Adapter
	for _, a := range o.registry.All() {
		if a.Supports(req) {
			supporting = append(supporting, a)
		}
	}
	if len(supporting) == 0 {
		return nil, apperr.Newf(apperr.ErrCodeUnsupportedRequest, "no adapter supports request %s", req)
	}
	sort.SliceStable(supporting, func(i, j int) bool {
		pi, pj := supporting[i].Capabilities().Priority, supporting[j].Capabilities().Priority
		if pi != pj {
			return pi > pj
		}
		return supporting[i].Name() < supporting[j].Name()
	})
	return supporting, nil
}

// planUnits builds the (adapter, ticker) fan-out. Each adapter is asked
// only for the fields it claims; lower-priority adapters still fetch
// overlapping fields so merge can fall back when a better source fails.
func planUnits(candidates []adapter.Adapter, req *request.Request) []fetchUnit {
	var units []fetchUnit
	for _, a := range candidates {
		caps := a.Capabilities()
		var covered []schema.Field
		for _, f := range req.Fields() {
			if caps.HasField(f) {
				covered = append(covered, f)
			}
		}
		if len(covered) == 0 {
			continue
		}
		for _, ticker := range req.Tickers() {
			units = append(units, fetchUnit{
				adapter:  a,
				priority: caps.Priority,
				ticker:   ticker,
				fields:   covered,
			})
		}
	}
	return units
}

// fanOut runs every unit concurrently within provider budgets and collects
// whatever finished before ctx expired
func (o *Orchestrator) fanOut(ctx context.Context, req *request.Request, units []fetchUnit) []fetchResult {
	out := make(chan fetchResult, len(units))
	var wg sync.WaitGroup
	for _, u := range units {
		wg.Add(1)
		go func(u fetchUnit) {
			defer wg.Done()
			tbl, err := o.fetchOne(ctx, req, u)
			out <- fetchResult{unit: u, tbl: tbl, err: err}
		}(u)
	}
	wg.Wait()
	close(out)

	results := make([]fetchResult, 0, len(units))
	for r := range out {
		results = append(results, r)
	}
	return results
}

// fetchOne executes one unit: acquire the provider budget, fetch with
// retry, observe metrics
func (o *Orchestrator) fetchOne(ctx context.Context, req *request.Request, u fetchUnit) (*table.Table, error) {
	provider := u.adapter.Name()
	release, err := o.limits.acquire(ctx, provider)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeSourceUnavailable, "provider budget not acquired").WithProvider(provider)
	}
	defer release()

	sub := req.Subset([]string{u.ticker}, u.fields).WithSource(provider)
	start := time.Now()
	tbl, err := retryWithResult(ctx, o.retry, func(ctx context.Context) (*table.Table, error) {
		return u.adapter.Fetch(ctx, sub)
	})
	if o.metrics != nil {
		o.metrics.ObserveFetch(provider, time.Since(start))
		if err != nil {
			o.metrics.FetchError(provider, string(apperr.CodeOf(err)))
		}
	}
	if err != nil {
		o.log.WithError(err).WithFields(map[string]interface{}{
			"provider": provider,
			"ticker":   u.ticker,
		}).Warn("provider fetch failed")
		return nil, err
	}
	return tbl, nil
}

// merge folds results in descending priority order so the first writer for
// a cell is the best source, then derives the unresolved gaps. Final
// ordering is deterministic regardless of completion order.
func (o *Orchestrator) merge(req *request.Request, results []fetchResult) (*table.Table, []CoverageGap) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].unit, results[j].unit
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.adapter.Name() != b.adapter.Name() {
			return a.adapter.Name() < b.adapter.Name()
		}
		return a.ticker < b.ticker
	})

	merged := table.New(req.Fields()...)
	failures := make(map[string]string)
	for _, r := range results {
		if r.err != nil {
			for _, f := range r.unit.fields {
				key := r.unit.ticker + "|" + string(f)
				if _, seen := failures[key]; !seen {
					failures[key] = r.err.Error()
				}
			}
			continue
		}
		if r.tbl != nil {
			merged.Merge(r.tbl)
		}
	}

	var gaps []CoverageGap
	for _, ticker := range req.Tickers() {
		for _, field := range req.Fields() {
			if len(merged.Series(ticker, field)) > 0 {
				continue
			}
			reason, failed := failures[ticker+"|"+string(field)]
			if !failed {
				reason = "no provider returned data"
			}
			gaps = append(gaps, CoverageGap{Ticker: ticker, Field: field, Reason: reason})
		}
	}
	return merged, gaps
}
