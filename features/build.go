// Package features assembles the per-county modeling table: outbreak onset, deaths after onset, hospital
// capacity, mobility around onset and socio-economic covariates.
package features

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/invertedv/covidmort/dates"
	"github.com/invertedv/covidmort/df"
)

const (
	OnsetCol         = "onset"
	OnsetRelativeCol = "onset_relative"
	DeathsTotalCol   = "deaths"
)

// Mode selects the deaths columns of the table
type Mode int

const (
	// Cumulative gives one column, deaths, the cumulative count Days after onset
	Cumulative Mode = iota
	// Daily gives deaths_01 .. deaths_<Days>, the cumulative count 1 .. Days after onset
	Daily
)

var modeNames = []string{"cumulative", "daily"}

func (m Mode) String() string {
	if int(m) >= len(modeNames) || m < 0 {
		return fmt.Sprintf("Mode(%d)", m)
	}

	return modeNames[m]
}

func ParseMode(s string) (Mode, error) {
	for ind, nm := range modeNames {
		if strings.EqualFold(s, nm) {
			return Mode(ind), nil
		}
	}

	return Cumulative, fmt.Errorf("unknown mode %q", s)
}

type Options struct {
	KeyCol string `yaml:"key"`

	// Threshold is the cumulative death count that marks onset
	Threshold float64 `yaml:"threshold"`
	// Days of follow-up after onset
	Days int `yaml:"days"`
	// MobilityLag is the number of days of mobility before each death day
	MobilityLag int  `yaml:"mobility_lag"`
	Mode        Mode `yaml:"-"`
	// Workers bounds the onset fan-out; 0 is no bound
	Workers int `yaml:"workers"`

	BaselineDays int `yaml:"baseline_days"`
	MAWindow     int `yaml:"ma_window"`
	SnapshotLag  int `yaml:"snapshot_lag"`

	Covariates []string `yaml:"covariates"`
	Outliers   []int    `yaml:"outliers"`
}

func DefaultOptions() Options {
	return Options{
		KeyCol:       "FIPS",
		Threshold:    3,
		Days:         30,
		MobilityLag:  30,
		Mode:         Daily,
		Workers:      8,
		BaselineDays: 14,
		MAWindow:     7,
		SnapshotLag:  14,
		Covariates:   DefaultCovariates(),
		Outliers:     DefaultOutliers(),
	}
}

func (o Options) validate() error {
	switch {
	case o.KeyCol == "":
		return fmt.Errorf("no key column")
	case o.Days < 1:
		return fmt.Errorf("days must be positive, got %d", o.Days)
	case o.MobilityLag < 1:
		return fmt.Errorf("mobility lag must be positive, got %d", o.MobilityLag)
	case o.BaselineDays < 1:
		return fmt.Errorf("baseline days must be positive, got %d", o.BaselineDays)
	case o.MAWindow < 1 || o.MAWindow%2 == 0:
		return fmt.Errorf("moving average window must be odd and positive, got %d", o.MAWindow)
	case o.Mode != Cumulative && o.Mode != Daily:
		return fmt.Errorf("bad mode %v", o.Mode)
	}

	return nil
}

// Inputs are the source tables.  Only Deaths is required; stages whose table is nil are skipped.
type Inputs struct {
	Deaths    *df.DF
	Hospitals *df.DF
	Mobility  *df.DF // origin-destination series
	Counties  *df.DF
	Clusters  *df.DF
}

// Report counts the counties excluded at each stage
type Report struct {
	Counties          int
	MissingKey        int
	NoOnset           int
	ShortFollowUp     int
	IncompleteWindow  int
	Decreasing        int
	MissingCovariates int
	Outliers          int
	Retained          int
}

// Build runs the stages and returns one row per retained county, sorted by key
func Build(ctx context.Context, in Inputs, opt Options, logger *zap.Logger) (*df.DF, *Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if in.Deaths == nil {
		return nil, nil, fmt.Errorf("no deaths table")
	}

	if e := opt.validate(); e != nil {
		return nil, nil, e
	}

	rep := &Report{}

	// clean keys
	deaths, dropped, e := in.Deaths.IntKey(opt.KeyCol)
	if e != nil {
		return nil, nil, e
	}

	rep.MissingKey = dropped
	if e := deaths.UniqueKey(opt.KeyCol); e != nil {
		return nil, nil, e
	}

	s, e := newSeriesTable(deaths, opt.KeyCol)
	if e != nil {
		return nil, nil, fmt.Errorf("deaths: %w", e)
	}

	rep.Counties = len(s.keys)

	// onset, follow-up and quality
	on, e := onsets(ctx, s, opt.Threshold, opt.Workers)
	if e != nil {
		return nil, nil, e
	}

	keys := append([]int{}, s.keys...)
	sort.Ints(keys)

	var kept []int
	for _, k := range keys {
		o, ok := on[k]
		if !ok {
			rep.NoOnset++
			continue
		}

		end := o.AddDate(0, 0, opt.Days)
		if end.After(s.last()) {
			rep.ShortFollowUp++
			continue
		}

		complete, rising := checkWindow(s, k, o, end)
		if !complete {
			rep.IncompleteWindow++
			logger.Debug("deaths missing after onset", zap.Int(opt.KeyCol, k))
			continue
		}

		if !rising {
			rep.Decreasing++
			logger.Debug("deaths decrease after onset", zap.Int(opt.KeyCol, k))
			continue
		}

		kept = append(kept, k)
	}

	logger.Info("onset", zap.Int("counties", rep.Counties), zap.Int("no_onset", rep.NoOnset),
		zap.Int("short_follow_up", rep.ShortFollowUp), zap.Int("incomplete_window", rep.IncompleteWindow),
		zap.Int("decreasing", rep.Decreasing))

	if len(kept) == 0 {
		return nil, rep, fmt.Errorf("no county passes onset, follow-up and quality checks")
	}

	out, e := deathsTable(s, kept, on, opt)
	if e != nil {
		return nil, nil, e
	}

	if in.Hospitals != nil {
		if out, e = joinHospitals(out, in.Hospitals, opt.KeyCol); e != nil {
			return nil, nil, e
		}
	}

	if in.Mobility != nil {
		if out, e = joinMobility(out, in.Mobility, kept, on, opt); e != nil {
			return nil, nil, e
		}
	}

	if in.Counties != nil {
		cov, missing, ex := covariates(in.Counties, opt.KeyCol, opt.Covariates)
		if ex != nil {
			return nil, nil, ex
		}

		before := out.RowCount()
		if out, e = out.Join(cov, opt.KeyCol, false); e != nil {
			return nil, nil, fmt.Errorf("joining covariates: %w", e)
		}

		rep.MissingCovariates = before - out.RowCount()
		logger.Info("covariates", zap.Int("counties_without", rep.MissingCovariates),
			zap.Int("incomplete_county_rows", missing))
	}

	if in.Clusters != nil {
		cl, _, ex := in.Clusters.IntKey(opt.KeyCol)
		if ex != nil {
			return nil, nil, fmt.Errorf("clusters: %w", ex)
		}

		if out, e = out.Join(cl, opt.KeyCol, true); e != nil {
			return nil, nil, fmt.Errorf("joining clusters: %w", e)
		}
	}

	if out, rep.Outliers, e = dropKeys(out, opt.KeyCol, opt.Outliers); e != nil {
		return nil, nil, e
	}

	if out.RowCount() == 0 {
		return nil, rep, fmt.Errorf("no counties left after joins")
	}

	if e := appendOnsetRelative(out, opt.KeyCol, on); e != nil {
		return nil, nil, e
	}

	rep.Retained = out.RowCount()
	logger.Info("feature table built", zap.Int("counties", rep.Retained), zap.Int("columns", out.ColumnCount()),
		zap.Int("outliers", rep.Outliers))

	return out, rep, nil
}

// checkWindow reports whether the series of key has a value on every date from onset through end and, if so,
// whether it never falls
func checkWindow(s *seriesTable, key int, onset, end time.Time) (complete, nonDecreasing bool) {
	nonDecreasing = true
	prior := df.Missing()
	for _, dt := range dates.Range(onset, end) {
		v, ok := s.at(key, dt)
		if !ok {
			return false, false
		}

		if !df.IsMissing(prior) && v < prior {
			nonDecreasing = false
		}

		prior = v
	}

	return true, nonDecreasing
}

func deathsTable(s *seriesTable, kept []int, on map[int]time.Time, opt Options) (*df.DF, error) {
	onsetStr := make([]string, len(kept))
	for ind, k := range kept {
		onsetStr[ind] = dates.Format(on[k])
	}

	kc, _ := df.NewCol(kept, df.DTint, df.ColName(opt.KeyCol))
	oc, _ := df.NewCol(onsetStr, df.DTstring, df.ColName(OnsetCol))

	out, e := df.NewDF(kc, oc)
	if e != nil {
		return nil, e
	}

	offsets, names := []int{opt.Days}, []string{DeathsTotalCol}
	if opt.Mode == Daily {
		offsets, names = nil, nil
		for d := 1; d <= opt.Days; d++ {
			offsets = append(offsets, d)
			names = append(names, DeathsCol(d))
		}
	}

	for ind, d := range offsets {
		x := make([]float64, len(kept))
		for r, k := range kept {
			x[r] = orMissing(s.at(k, on[k].AddDate(0, 0, d)))
		}

		col, e := df.NewCol(x, df.DTfloat, df.ColName(names[ind]))
		if e != nil {
			return nil, e
		}

		if e := out.AppendColumn(col, false); e != nil {
			return nil, e
		}
	}

	return out, nil
}

// joinHospitals left joins hospital capacity; counties with no hospital get zeros
func joinHospitals(out, hospitals *df.DF, keyCol string) (*df.DF, error) {
	hc, e := HospitalCapacity(hospitals, keyCol)
	if e != nil {
		return nil, e
	}

	if out, e = out.Join(hc, keyCol, true); e != nil {
		return nil, fmt.Errorf("joining hospitals: %w", e)
	}

	for _, name := range []string{HospCountCol, HospBedsCol} {
		x, ex := out.Float(name)
		if ex != nil {
			return nil, ex
		}

		filled := make([]float64, len(x))
		for ind, v := range x {
			if !df.IsMissing(v) {
				filled[ind] = v
			}
		}

		col, _ := df.NewCol(filled, df.DTfloat, df.ColName(name))
		if ex := out.Replace(col); ex != nil {
			return nil, ex
		}
	}

	return out, nil
}

func joinMobility(out, od *df.DF, kept []int, on map[int]time.Time, opt Options) (*df.DF, error) {
	m, e := newMobility(od, opt)
	if e != nil {
		return nil, e
	}

	names := m.names()
	cols := make([][]float64, len(names))
	for ind := range cols {
		cols[ind] = make([]float64, len(kept))
	}

	// out still has one row per kept county, in order
	for r, k := range kept {
		for ind, v := range m.features(k, on[k]) {
			cols[ind][r] = v
		}
	}

	for ind, name := range names {
		col, e := df.NewCol(cols[ind], df.DTfloat, df.ColName(name))
		if e != nil {
			return nil, e
		}

		if e := out.AppendColumn(col, false); e != nil {
			return nil, e
		}
	}

	return out, nil
}

func dropKeys(table *df.DF, keyCol string, drop []int) (*df.DF, int, error) {
	keys, e := table.Int(keyCol)
	if e != nil {
		return nil, 0, e
	}

	n := 0
	keep := make([]bool, len(keys))
	for ind, k := range keys {
		keep[ind] = !has(k, drop)
		if !keep[ind] {
			n++
		}
	}

	out, e := table.Where(keep)

	return out, n, e
}

// appendOnsetRelative adds the days from the earliest onset in table to each county's onset
func appendOnsetRelative(table *df.DF, keyCol string, on map[int]time.Time) error {
	keys, e := table.Int(keyCol)
	if e != nil {
		return e
	}

	first := on[keys[0]]
	for _, k := range keys {
		if on[k].Before(first) {
			first = on[k]
		}
	}

	rel := make([]int, len(keys))
	for ind, k := range keys {
		rel[ind] = dates.Days(first, on[k])
	}

	col, _ := df.NewCol(rel, df.DTint, df.ColName(OnsetRelativeCol))

	return table.AppendColumn(col, false)
}
