package features

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/invertedv/covidmort/df"
)

const (
	MobilityBaselineCol = "mobility_baseline"
	MobilityOnsetCol    = "mobility_onset"
	MobilityPreCol      = "mobility_pre"
	MobilityPostCol     = "mobility_post"
)

// MobilityLagCol is the name of column k of the mobility lag window
func MobilityLagCol(k int) string {
	return fmt.Sprintf("mobility_%02d", k)
}

// DeathsCol is the name of the daily deaths column d days after onset
func DeathsCol(d int) string {
	return fmt.Sprintf("deaths_%02d", d)
}

// mobility holds the origin-destination series and its centred moving average
type mobility struct {
	raw *seriesTable
	ma  *seriesTable

	baselineDays int
	snapshotLag  int
	days         int
	lag          int
}

func newMobility(od *df.DF, opt Options) (*mobility, error) {
	odk, _, e := od.IntKey(opt.KeyCol)
	if e != nil {
		return nil, fmt.Errorf("mobility: %w", e)
	}

	raw, e := newSeriesTable(odk, opt.KeyCol)
	if e != nil {
		return nil, fmt.Errorf("mobility: %w", e)
	}

	avg, e := MovingAverage(odk, raw.names, opt.MAWindow, true)
	if e != nil {
		return nil, fmt.Errorf("mobility: %w", e)
	}

	ma, e := newSeriesTable(avg, opt.KeyCol)
	if e != nil {
		return nil, fmt.Errorf("mobility moving average: %w", e)
	}

	return &mobility{raw: raw, ma: ma, baselineDays: opt.BaselineDays, snapshotLag: opt.SnapshotLag,
		days: opt.Days, lag: opt.MobilityLag}, nil
}

// names of the columns returned by features, in order
func (m *mobility) names() []string {
	out := []string{MobilityBaselineCol, MobilityOnsetCol, MobilityPreCol, MobilityPostCol}
	for k := 1; k <= m.days+m.lag-1; k++ {
		out = append(out, MobilityLagCol(k))
	}

	return out
}

// features returns the mobility values of a county with the given onset.  Lookups that fall outside the
// series, or hit a missing value, are missing.
//
//   - baseline: mean of the first baselineDays raw values
//   - onset, pre, post: moving average at onset, snapshotLag days before and snapshotLag days after
//   - lag window k = 1..days+lag-1: moving average at onset+k-lag+1
func (m *mobility) features(key int, onset time.Time) []float64 {
	out := []float64{
		m.baseline(key),
		orMissing(m.ma.at(key, onset)),
		orMissing(m.ma.at(key, onset.AddDate(0, 0, -m.snapshotLag))),
		orMissing(m.ma.at(key, onset.AddDate(0, 0, m.snapshotLag))),
	}

	for k := 1; k <= m.days+m.lag-1; k++ {
		out = append(out, orMissing(m.ma.at(key, onset.AddDate(0, 0, k-m.lag+1))))
	}

	return out
}

func (m *mobility) baseline(key int) float64 {
	n := m.baselineDays
	if n > len(m.raw.dates) {
		n = len(m.raw.dates)
	}

	var x []float64
	for _, dt := range m.raw.dates[:n] {
		if v, ok := m.raw.at(key, dt); ok {
			x = append(x, v)
		}
	}

	if len(x) == 0 {
		return df.Missing()
	}

	return stat.Mean(x, nil)
}
