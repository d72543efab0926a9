// Package align lines up two date-labelled tables that share a key so that the cause series
// precedes the effect series by a fixed number of days.
package align

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/invertedv/covidmort/dates"
	"github.com/invertedv/covidmort/df"
)

const (
	// SourceCol tags each output row with the half it came from
	SourceCol = "source"

	Cause  = "cause"
	Effect = "effect"
)

// Result is the aligned lag table.  Column i of the cause rows is CauseDates[i] and column i of the
// effect rows is EffectDates[i], which is lag days later.
type Result struct {
	Table       *df.DF
	CauseDates  []string
	EffectDates []string
	Offsets     []int
	Start       time.Time
	End         time.Time

	// Filled counts cells set to missing because a date inside the range has no column
	Filled int
}

type options struct {
	logger     *zap.Logger
	causeName  string
	effectName string
}

type Opt func(o *options) error

// WithLogger sets the logger used to report dropped keys and filled gaps
func WithLogger(logger *zap.Logger) Opt {
	return func(o *options) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}

		o.logger = logger
		return nil
	}
}

// SourceNames replaces the "cause" and "effect" tags
func SourceNames(cause, effect string) Opt {
	return func(o *options) error {
		if cause == "" || effect == "" || cause == effect {
			return fmt.Errorf("source names must be distinct and non-empty, got %q and %q", cause, effect)
		}

		o.causeName, o.effectName = cause, effect
		return nil
	}
}

// Lagged aligns cause and effect on matchCol.  With
//
//	start = max(min(cause dates), min(effect dates) - lag)
//	end   = min(max(cause dates) - lag, max(effect dates))
//
// the cause half covers [start, end-lag] and the effect half [start+lag, end].  Date columns are
// renamed to offsets 0..n-1 and the halves are stacked, cause first.  Rows are matched by key: both
// halves hold the shared keys in ascending order.
func Lagged(cause, effect *df.DF, matchCol string, lag int, opts ...Opt) (*Result, error) {
	o := &options{logger: zap.NewNop(), causeName: Cause, effectName: Effect}
	for _, opt := range opts {
		if e := opt(o); e != nil {
			return nil, e
		}
	}

	if lag < 0 {
		return nil, fmt.Errorf("lag must be non-negative, got %d", lag)
	}

	causes, effects, keys, e := shared(cause, effect, matchCol, o.logger)
	if e != nil {
		return nil, e
	}

	causeIdx, effectIdx := causes.DateIndex(), effects.DateIndex()
	if len(causeIdx) == 0 || len(effectIdx) == 0 {
		return nil, fmt.Errorf("both tables need date columns: cause has %d, effect has %d", len(causeIdx), len(effectIdx))
	}

	cDates, eDates := causes.DateColumns(), effects.DateColumns()
	start := later(dates.Min(cDates), dates.Lag(dates.Min(eDates), lag, true))
	end := earlier(dates.Lag(dates.Max(cDates), lag, true), dates.Max(eDates))

	causeRange := dates.Range(start, dates.Lag(end, lag, true))
	if len(causeRange) == 0 {
		return nil, fmt.Errorf("no overlap between cause and effect dates at lag %d", lag)
	}

	res := &Result{Start: start, End: end}
	n := len(causeRange)

	keyVals := append(append([]int{}, keys...), keys...)
	keyCol, _ := df.NewCol(keyVals, df.DTint, df.ColName(matchCol))

	src := make([]string, 0, 2*len(keys))
	for range keys {
		src = append(src, o.causeName)
	}
	for range keys {
		src = append(src, o.effectName)
	}
	srcCol, _ := df.NewCol(src, df.DTstring, df.ColName(SourceCol))

	out, e := df.NewDF(keyCol, srcCol)
	if e != nil {
		return nil, e
	}

	for ind := 0; ind < n; ind++ {
		cd := causeRange[ind]
		ed := dates.Lag(cd, lag, false)

		cx, okC := column(causes, causeIdx, cd)
		ex, okE := column(effects, effectIdx, ed)
		if !okC {
			res.Filled += len(keys)
			o.logger.Debug("cause date missing, filled", zap.String("date", dates.Format(cd)))
		}

		if !okE {
			res.Filled += len(keys)
			o.logger.Debug("effect date missing, filled", zap.String("date", dates.Format(ed)))
		}

		col, ex1 := df.NewCol(append(cx, ex...), df.DTfloat, df.ColName(strconv.Itoa(ind)))
		if ex1 != nil {
			return nil, ex1
		}

		if ex1 = out.AppendColumn(col, false); ex1 != nil {
			return nil, ex1
		}

		res.CauseDates = append(res.CauseDates, dates.Format(cd))
		res.EffectDates = append(res.EffectDates, dates.Format(ed))
		res.Offsets = append(res.Offsets, ind)
	}

	if res.Filled > 0 {
		o.logger.Info("date gaps filled with missing values", zap.Int("cells", res.Filled))
	}

	res.Table = out

	return res, nil
}

// shared restricts both tables to the keys they have in common, sorted by key
func shared(cause, effect *df.DF, matchCol string, logger *zap.Logger) (causes, effects *df.DF, keys []int, err error) {
	var dropped int
	if causes, dropped, err = cause.IntKey(matchCol); err != nil {
		return nil, nil, nil, fmt.Errorf("cause: %w", err)
	}
	if dropped > 0 {
		logger.Info("cause rows without key dropped", zap.Int("rows", dropped))
	}

	if effects, dropped, err = effect.IntKey(matchCol); err != nil {
		return nil, nil, nil, fmt.Errorf("effect: %w", err)
	}
	if dropped > 0 {
		logger.Info("effect rows without key dropped", zap.Int("rows", dropped))
	}

	if e := causes.UniqueKey(matchCol); e != nil {
		return nil, nil, nil, fmt.Errorf("cause: %w", e)
	}

	if e := effects.UniqueKey(matchCol); e != nil {
		return nil, nil, nil, fmt.Errorf("effect: %w", e)
	}

	cKeys, _ := causes.Int(matchCol)
	eKeys, _ := effects.Int(matchCol)

	inEffect := make(map[int]bool)
	for _, k := range eKeys {
		inEffect[k] = true
	}

	common := make(map[int]bool)
	for _, k := range cKeys {
		if inEffect[k] {
			common[k] = true
		}
	}

	if len(common) == 0 {
		return nil, nil, nil, fmt.Errorf("no %s values in common", matchCol)
	}

	if causes, err = restrict(causes, matchCol, common); err != nil {
		return nil, nil, nil, err
	}

	if effects, err = restrict(effects, matchCol, common); err != nil {
		return nil, nil, nil, err
	}

	keys, _ = causes.Int(matchCol)

	return causes, effects, append([]int{}, keys...), nil
}

func restrict(table *df.DF, matchCol string, keep map[int]bool) (*df.DF, error) {
	keys, _ := table.Int(matchCol)
	in := make([]bool, len(keys))
	for ind, k := range keys {
		in[ind] = keep[k]
	}

	out, e := table.Where(in)
	if e != nil {
		return nil, e
	}

	if e := out.Sort(true, matchCol); e != nil {
		return nil, e
	}

	return out, nil
}

// column returns the values of the column labelled dt as floats.  If there is none, the values are missing.
func column(table *df.DF, idx map[time.Time]string, dt time.Time) ([]float64, bool) {
	n := table.RowCount()
	if name, ok := idx[dt]; ok {
		col := table.Column(name)
		x := make([]float64, n)
		for r := 0; r < n; r++ {
			x[r] = col.ElementFloat(r)
		}

		return x, true
	}

	x := make([]float64, n)
	for r := range x {
		x[r] = df.Missing()
	}

	return x, false
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}

	return b
}
