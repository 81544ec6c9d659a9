package repair

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"cryptodata/internal/config"
	apperr "cryptodata/internal/errors"
	"cryptodata/internal/logging"
	"cryptodata/internal/quality"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// Engine applies the configured policy to every defect and emits an
// append-only audit trail. The input table is never mutated; Apply returns
// a repaired copy.
//
// Overlapping defects on one cell resolve by a fixed priority: duplicate >
// non-positive > outlier > stale > missing. Exactly one action touches a
// cell per run, so repairs are deterministic and re-running detect and
// repair over repaired output produces no new actions.
type Engine struct {
	policies       PolicyTable
	clipThreshold  float64
	clipWindow     int
	staleRunLength int
	sourceRank     func(source string) int
	log            *logging.Logger
}

// NewEngine builds a repair engine from configuration. The outlier
// threshold is shared with detection so clipped values land exactly on the
// detection boundary.
func NewEngine(cfg config.RepairConfig, qcfg config.QualityConfig, log *logging.Logger) (*Engine, error) {
	policies, err := PoliciesFromConfig(cfg.Policies)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeValidation, "invalid repair policy table")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		policies:       policies,
		clipThreshold:  qcfg.OutlierThreshold,
		clipWindow:     cfg.ClipWindow,
		staleRunLength: qcfg.StaleRunLength,
		log:            log,
	}, nil
}

// WithSourceRank sets the provider ranking used when dropping duplicate
// rows; higher rank wins. Without it the first-merged row is kept.
func (e *Engine) WithSourceRank(rank func(source string) int) *Engine {
	e.sourceRank = rank
	return e
}

// priority orders overlapping defects on a cell; lower runs first and wins
var priority = map[quality.DefectKind]int{
	quality.DefectDuplicateTimestamp: 0,
	quality.DefectNonPositive:        1,
	quality.DefectOutlier:            2,
	quality.DefectStaleRepeat:        3,
	quality.DefectMissingValue:       4,
	quality.DefectMissingBar:         4,
}

type cellKey struct {
	ticker string
	field  schema.Field
	ts     int64
}

// Apply repairs every defect of the report against a copy of tbl and
// returns the copy with the audit trail.
func (e *Engine) Apply(tbl *table.Table, report quality.Report, req *request.Request) (*table.Table, []ActionRecord, error) {
	if tbl == nil {
		return nil, nil, apperr.New(apperr.ErrCodeValidation, "repair requires a table", nil)
	}

	defects := append([]quality.Defect(nil), report.Defects...)
	sort.SliceStable(defects, func(i, j int) bool {
		return priority[defects[i].Kind] < priority[defects[j].Kind]
	})

	out, records := e.resolveDuplicates(tbl, defects)

	claimedRows := make(map[table.Key]struct{})
	for _, rec := range records {
		claimedRows[table.Key{Timestamp: rec.Defect.Timestamp, Ticker: rec.Defect.Ticker}] = struct{}{}
	}
	claimedCells := make(map[cellKey]struct{})

	for _, d := range defects {
		if d.Kind == quality.DefectDuplicateTimestamp {
			continue
		}
		if _, rowTaken := claimedRows[table.Key{Timestamp: d.Timestamp, Ticker: d.Ticker}]; rowTaken {
			continue
		}
		cell := cellKey{ticker: d.Ticker, field: d.Field, ts: d.Timestamp.UnixNano()}
		if _, taken := claimedCells[cell]; taken {
			continue
		}

		var rec ActionRecord
		policy := e.policies.For(d.Kind)
		switch policy {
		case PolicyClipToBound:
			rec = e.clip(out, d)
		case PolicyInterpolateLinear:
			rec = e.interpolate(out, d)
		case PolicyForwardFill:
			rec = e.forwardFill(out, d, req)
		case PolicyDropRow:
			rec = e.dropCellRow(out, d)
		default:
			rec = newRecord(d, ActionFlagged, PolicyFlagOnly, nil, nil, "")
		}
		claimedCells[cell] = struct{}{}
		records = append(records, rec)
	}

	e.log.WithFields(map[string]interface{}{
		"defects": len(defects),
		"actions": len(records),
	}).Info("repair complete")
	return out, records, nil
}

// resolveDuplicates rebuilds the table keeping one row per duplicated key,
// chosen by source rank, and records one drop action per duplicate defect.
func (e *Engine) resolveDuplicates(tbl *table.Table, defects []quality.Defect) (*table.Table, []ActionRecord) {
	dupKeys := make(map[table.Key]quality.Defect)
	for _, d := range defects {
		if d.Kind == quality.DefectDuplicateTimestamp {
			dupKeys[table.Key{Timestamp: d.Timestamp, Ticker: d.Ticker}] = d
		}
	}

	out := table.New(tbl.Fields()...)
	var records []ActionRecord
	if len(dupKeys) == 0 {
		for _, r := range tbl.Rows() {
			out.Append(r.Clone())
		}
		return out, records
	}

	// group duplicate occurrences, keep the best ranked
	occurrences := make(map[table.Key][]*table.Row)
	for _, r := range tbl.Rows() {
		key := r.Key()
		if _, dup := dupKeys[key]; dup {
			occurrences[key] = append(occurrences[key], r)
			continue
		}
		out.Append(r.Clone())
	}
	for key, rows := range occurrences {
		keep := rows[0]
		if e.sourceRank != nil {
			best := e.rowRank(keep)
			for _, r := range rows[1:] {
				if rank := e.rowRank(r); rank > best {
					best, keep = rank, r
				}
			}
		}
		out.Append(keep.Clone())
		d := dupKeys[key]
		records = append(records, newRecord(d, ActionDropped, PolicyDropRow, nil, nil,
			fmt.Sprintf("kept 1 of %d rows", len(rows))))
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Defect, records[j].Defect
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return out, records
}

// rowRank scores a row by its best cell source
func (e *Engine) rowRank(r *table.Row) int {
	best := -1
	for _, src := range r.Sources {
		if rank := e.sourceRank(src); rank > best {
			best = rank
		}
	}
	return best
}

// clip replaces an outlier with the nearest edge of the robust band its
// window allows. A clipped value scores exactly at the threshold, so
// re-detection does not flag it again.
func (e *Engine) clip(out *table.Table, d quality.Defect) ActionRecord {
	old, ok := out.Value(d.Timestamp, d.Ticker, d.Field)
	if !ok {
		return newRecord(d, ActionFlagged, PolicyClipToBound, nil, nil, "cell absent")
	}

	med, mad := d.Evidence.Median, d.Evidence.MAD
	if mad == 0 && d.Evidence.ZScore == 0 {
		med, mad, ok = e.windowStats(out, d)
		if !ok {
			return newRecord(d, ActionFlagged, PolicyClipToBound, &old, nil, "no clip window")
		}
	}
	// a constant window collapses the band to the median itself
	lo, hi := quality.ClipBounds(med, mad, e.clipThreshold)
	repaired := old
	if repaired < lo {
		repaired = lo
	}
	if repaired > hi {
		repaired = hi
	}
	if repaired == old {
		return newRecord(d, ActionFlagged, PolicyClipToBound, &old, nil, "inside bounds")
	}
	out.Set(d.Timestamp, d.Ticker, d.Field, repaired, "repair")
	return newRecord(d, ActionClipped, PolicyClipToBound, &old, &repaired, "")
}

// windowStats recomputes the pre-defect rolling median and MAD when a
// defect arrives without evidence
func (e *Engine) windowStats(out *table.Table, d quality.Defect) (med, mad float64, ok bool) {
	series := out.Series(d.Ticker, d.Field)
	var prior []float64
	for _, p := range series {
		if !p.Timestamp.Before(d.Timestamp) {
			break
		}
		prior = append(prior, p.Value)
	}
	if len(prior) > e.clipWindow {
		prior = prior[len(prior)-e.clipWindow:]
	}
	if len(prior) < 2 {
		return 0, 0, false
	}
	med = quality.Median(prior)
	return med, quality.MAD(prior, med), true
}

// interpolate writes the time-weighted value between the nearest valid
// neighbors. Used for short gaps and for known-impossible prints, which are
// treated as absent.
func (e *Engine) interpolate(out *table.Table, d quality.Defect) ActionRecord {
	series := out.Series(d.Ticker, d.Field)

	var oldPtr *float64
	if old, ok := out.Value(d.Timestamp, d.Ticker, d.Field); ok {
		oldPtr = &old
	}

	var prev, next *table.Point
	for i := range series {
		p := series[i]
		if !usableAnchor(d, p) {
			continue
		}
		if p.Timestamp.Before(d.Timestamp) {
			prev = &series[i]
		}
		if p.Timestamp.After(d.Timestamp) {
			next = &series[i]
			break
		}
	}
	if prev == nil || next == nil {
		return newRecord(d, ActionFlagged, PolicyInterpolateLinear, oldPtr, nil, "no interpolation anchors")
	}

	span := next.Timestamp.Sub(prev.Timestamp).Seconds()
	w := d.Timestamp.Sub(prev.Timestamp).Seconds() / span
	repaired := prev.Value + (next.Value-prev.Value)*w
	out.Set(d.Timestamp, d.Ticker, d.Field, repaired, "repair")
	return newRecord(d, ActionInterpolated, PolicyInterpolateLinear, oldPtr, &repaired, "")
}

// usableAnchor rejects anchor candidates that are themselves impossible for
// a positive-only field
func usableAnchor(d quality.Defect, p table.Point) bool {
	if meta, ok := schema.Lookup(d.Field); ok && meta.RequiresPositive && p.Value <= 0 {
		return false
	}
	return true
}

// forwardFill synthesizes the missing bars of a long gap by carrying the
// last level forward. Only level-class fields fill: flows and prices over a
// closed window are unknown, not unchanged. Fills long enough to read as a
// stale run are refused, otherwise repair would fabricate the defect the
// stale detector exists to catch.
func (e *Engine) forwardFill(out *table.Table, d quality.Defect, req *request.Request) ActionRecord {
	if !fillable(d.Field) {
		return newRecord(d, ActionFlagged, PolicyForwardFill, nil, nil, "field class not fillable")
	}

	freq := schema.FreqDaily
	cal := quality.Calendar(quality.AlwaysOpen{})
	if req != nil {
		freq = req.Freq()
		cal = quality.CalendarFor(req.Category(), freq)
	}

	series := out.Series(d.Ticker, d.Field)
	lastIdx := -1
	for i := range series {
		if series[i].Timestamp.Before(d.Timestamp) {
			lastIdx = i
		}
	}
	if lastIdx < 0 {
		return newRecord(d, ActionFlagged, PolicyForwardFill, nil, nil, "no prior level")
	}
	last := series[lastIdx]

	end := d.EndTimestamp
	if end.IsZero() {
		end = d.Timestamp
	}
	var missing []time.Time
	for _, ts := range quality.ExpectedGrid(d.Timestamp, end, freq, cal) {
		if _, exists := out.Value(ts, d.Ticker, d.Field); exists {
			continue
		}
		missing = append(missing, ts)
	}
	if len(missing) == 0 {
		return newRecord(d, ActionFlagged, PolicyForwardFill, nil, nil, "nothing to fill")
	}

	// the filled bars join any repeats already touching the anchor value,
	// so the resulting run counts its equal neighbors on both sides
	run := len(missing) + 1
	for i := lastIdx - 1; i >= 0 && series[i].Value == last.Value; i-- {
		run++
	}
	for i := lastIdx + 1; i < len(series) && series[i].Value == last.Value; i++ {
		run++
	}
	if run > e.staleRunLength {
		return newRecord(d, ActionFlagged, PolicyForwardFill, nil, nil, "fill would read as stale run")
	}

	for _, ts := range missing {
		out.Set(ts, d.Ticker, d.Field, last.Value, "repair")
	}
	return newRecord(d, ActionForwardFilled, PolicyForwardFill, nil, &last.Value,
		fmt.Sprintf("filled %d bars", len(missing)))
}

// dropCellRow handles a drop-row policy configured for a cell-level defect
// kind
func (e *Engine) dropCellRow(out *table.Table, d quality.Defect) ActionRecord {
	kept := table.New(out.Fields()...)
	dropped := false
	var old *float64
	for _, r := range out.Rows() {
		if r.Ticker == d.Ticker && r.Timestamp.Equal(d.Timestamp) {
			if v, ok := r.Value(d.Field); ok {
				old = &v
			}
			dropped = true
			continue
		}
		kept.Append(r)
	}
	if !dropped {
		return newRecord(d, ActionFlagged, PolicyDropRow, nil, nil, "row absent")
	}
	*out = *kept
	return newRecord(d, ActionDropped, PolicyDropRow, old, nil, "")
}

// FilterMinObs removes tickers with fewer total observations than minObs,
// returning the survivors and the dropped ticker list. Mirrors the minimum
// observation screen applied before series are considered usable.
func FilterMinObs(tbl *table.Table, minObs int) (*table.Table, []string) {
	if minObs <= 0 || tbl == nil {
		return tbl, nil
	}
	counts := make(map[string]int)
	for _, r := range tbl.Rows() {
		counts[r.Ticker] += len(r.Values)
	}
	var droppedTickers []string
	for _, ticker := range tbl.Tickers() {
		if counts[ticker] < minObs {
			droppedTickers = append(droppedTickers, ticker)
		}
	}
	if len(droppedTickers) == 0 {
		return tbl, nil
	}
	dropSet := make(map[string]struct{}, len(droppedTickers))
	for _, t := range droppedTickers {
		dropSet[t] = struct{}{}
	}
	out := table.New(tbl.Fields()...)
	for _, r := range tbl.Rows() {
		if _, drop := dropSet[r.Ticker]; !drop {
			out.Append(r.Clone())
		}
	}
	sort.Strings(droppedTickers)
	return out, droppedTickers
}

func newRecord(d quality.Defect, action Action, policy Policy, old, repaired *float64, note string) ActionRecord {
	return ActionRecord{
		ID:        uuid.New(),
		Defect:    d,
		Action:    action,
		Policy:    policy,
		OldValue:  old,
		NewValue:  repaired,
		Note:      note,
		AppliedAt: time.Now().UTC(),
	}
}
