package features

import (
	"fmt"
	"sort"
	"time"

	"github.com/invertedv/covidmort/df"
)

// seriesTable indexes a table of a key column and date-labelled columns for lookups by key and date
type seriesTable struct {
	keys  []int
	dates []time.Time // chronological
	names []string    // column labels, same order as dates

	rows map[int]int
	pos  map[time.Time]int
	vals [][]float64 // vals[row][date position]
}

func newSeriesTable(table *df.DF, keyCol string) (*seriesTable, error) {
	keys, e := table.Int(keyCol)
	if e != nil {
		return nil, e
	}

	idx := table.DateIndex()
	if len(idx) == 0 {
		return nil, fmt.Errorf("table has no date columns")
	}

	s := &seriesTable{
		keys: keys,
		rows: make(map[int]int),
		pos:  make(map[time.Time]int),
		vals: make([][]float64, len(keys)),
	}

	for dt := range idx {
		s.dates = append(s.dates, dt)
	}

	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })

	for r, k := range keys {
		if _, dup := s.rows[k]; dup {
			return nil, fmt.Errorf("%s %d repeats", keyCol, k)
		}

		s.rows[k] = r
		s.vals[r] = make([]float64, len(s.dates))
	}

	for j, dt := range s.dates {
		s.pos[dt] = j
		s.names = append(s.names, idx[dt])

		col := table.Column(idx[dt])
		for r := range keys {
			s.vals[r][j] = col.ElementFloat(r)
		}
	}

	return s, nil
}

// at returns the value for key on dt.  ok is false if either is absent or the value is missing.
func (s *seriesTable) at(key int, dt time.Time) (val float64, ok bool) {
	r, okR := s.rows[key]
	j, okD := s.pos[dt]
	if !okR || !okD {
		return df.Missing(), false
	}

	val = s.vals[r][j]

	return val, !df.IsMissing(val)
}

// orMissing collapses a lookup to a single value
func orMissing(val float64, ok bool) float64 {
	if !ok {
		return df.Missing()
	}

	return val
}

func (s *seriesTable) last() time.Time {
	return s.dates[len(s.dates)-1]
}
