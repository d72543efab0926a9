package features

import (
	"fmt"
	"time"

	"github.com/invertedv/covidmort/dates"
	"github.com/invertedv/covidmort/df"
)

// MovingAverage replaces cols, which are in order, with their row-wise n-period moving average.  A window with a
// missing value averages to missing.  Trailing averages are labelled by the last period of the window and the
// first n-1 periods are dropped.  Centred averages need an odd n, are labelled by the middle period and drop
// (n-1)/2 periods at each end.  Other columns are kept.  The input is not changed.
//
// If every col is a date the periods are calendar days: the window of D is D-back .. D+ahead and a day absent
// from cols counts as missing.  Otherwise the periods are column positions.
func MovingAverage(table *df.DF, cols []string, n int, centered bool) (*df.DF, error) {
	if n < 1 {
		return nil, fmt.Errorf("moving average window must be positive, got %d", n)
	}

	if centered && n%2 == 0 {
		return nil, fmt.Errorf("centred moving average needs an odd window, got %d", n)
	}

	if n > len(cols) {
		return nil, fmt.Errorf("window %d longer than %d columns", n, len(cols))
	}

	x := make([][]float64, len(cols))
	for ind, c := range cols {
		col := table.Column(c)
		if col == nil {
			return nil, fmt.Errorf("column %s not found", c)
		}

		x[ind] = make([]float64, col.Len())
		for r := 0; r < col.Len(); r++ {
			x[ind][r] = col.ElementFloat(r)
		}
	}

	back, ahead := n-1, 0
	if centered {
		back, ahead = (n-1)/2, (n-1)/2
	}

	window := positional(len(cols), back, ahead)
	if dts, ok := dateLabels(cols); ok {
		window = calendar(dts, back, ahead)
	}

	out := table.Copy()
	for j, c := range cols {
		w := window(j)
		if w == nil {
			if e := out.DropColumns(c); e != nil {
				return nil, e
			}

			continue
		}

		ma := make([]float64, table.RowCount())
		for r := range ma {
			sum := 0.0
			for _, k := range w {
				if k < 0 {
					sum = df.Missing()
					break
				}

				sum += x[k][r]
			}

			ma[r] = sum / float64(n)
		}

		col, e := df.NewCol(ma, df.DTfloat, df.ColName(c))
		if e != nil {
			return nil, e
		}

		if e := out.Replace(col); e != nil {
			return nil, e
		}
	}

	return out, nil
}

// positional windows: label j averages cols[j-back .. j+ahead].  nil means the window runs off the columns.
func positional(ncol, back, ahead int) func(j int) []int {
	return func(j int) []int {
		if j < back || j+ahead >= ncol {
			return nil
		}

		var w []int
		for k := j - back; k <= j+ahead; k++ {
			w = append(w, k)
		}

		return w
	}
}

// calendar windows: label j averages the days dts[j]-back .. dts[j]+ahead.  A day with no column is -1.  nil means
// the window runs off the first or last day.
func calendar(dts []time.Time, back, ahead int) func(j int) []int {
	pos := make(map[time.Time]int)
	for ind, dt := range dts {
		pos[dt] = ind
	}

	first, last := dates.Min(dts), dates.Max(dts)

	return func(j int) []int {
		from, to := dates.Lag(dts[j], back, true), dates.Lag(dts[j], ahead, false)
		if from.Before(first) || to.After(last) {
			return nil
		}

		var w []int
		for _, dt := range dates.Range(from, to) {
			k, ok := pos[dt]
			if !ok {
				k = -1
			}

			w = append(w, k)
		}

		return w
	}
}

// dateLabels parses cols as dates; ok is false if any is not one
func dateLabels(cols []string) (dts []time.Time, ok bool) {
	for _, c := range cols {
		dt, e := dates.Parse(c)
		if e != nil {
			return nil, false
		}

		dts = append(dts, dt)
	}

	return dts, true
}
