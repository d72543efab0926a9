package align

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/invertedv/covidmort/df"
)

// series builds a table keyed by FIPS with one column per date label; vals[r][c] is row r, date c
func series(t *testing.T, keys []int, labels []string, vals [][]float64) *df.DF {
	k, e := df.NewCol(keys, df.DTint, df.ColName("FIPS"))
	assert.Nil(t, e)
	out, e := df.NewDF(k)
	assert.Nil(t, e)

	for c, lbl := range labels {
		x := make([]float64, len(keys))
		for r := range keys {
			x[r] = vals[r][c]
		}

		col, e := df.NewCol(x, df.DTfloat, df.ColName(lbl))
		assert.Nil(t, e)
		assert.Nil(t, out.AppendColumn(col, false))
	}

	return out
}

func TestLagged_ZeroLag(t *testing.T) {
	labels := []string{"03-01-20", "03-02-20", "03-03-20", "03-04-20"}
	a := series(t, []int{2, 1, 5}, labels, [][]float64{{20, 21, 22, 23}, {10, 11, 12, 13}, {50, 51, 52, 53}})
	b := series(t, []int{1, 2, 9}, labels[1:], [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})

	res, e := Lagged(a, b, "FIPS", 0)
	assert.Nil(t, e)
	assert.Equal(t, res.CauseDates, res.EffectDates)
	assert.Equal(t, []string{"03-02-20", "03-03-20", "03-04-20"}, res.CauseDates)
	assert.Equal(t, []int{0, 1, 2}, res.Offsets)

	tbl := res.Table
	assert.Equal(t, []string{"FIPS", SourceCol, "0", "1", "2"}, tbl.ColumnNames())
	assert.Equal(t, 4, tbl.RowCount())

	fips, _ := tbl.Int("FIPS")
	assert.Equal(t, []int{1, 2, 1, 2}, fips)
	assert.Equal(t, []string{Cause, Cause, Effect, Effect}, tbl.Column(SourceCol).AsString())

	x0, _ := tbl.Float("0")
	assert.Equal(t, []float64{11, 21, 1, 4}, x0)
}

func TestLagged_Lag(t *testing.T) {
	labels := []string{"03-01-20", "03-02-20", "03-03-20", "03-04-20", "03-05-20", "03-06-20"}
	a := series(t, []int{1}, labels, [][]float64{{1, 2, 3, 4, 5, 6}})
	b := series(t, []int{1}, labels, [][]float64{{10, 20, 30, 40, 50, 60}})

	// start = max(03-01, 02-29) = 03-01, end = min(03-06 - 1, 03-06) = 03-05
	res, e := Lagged(a, b, "FIPS", 1)
	assert.Nil(t, e)
	assert.Equal(t, []string{"03-01-20", "03-02-20", "03-03-20", "03-04-20"}, res.CauseDates)
	assert.Equal(t, []string{"03-02-20", "03-03-20", "03-04-20", "03-05-20"}, res.EffectDates)
	assert.Equal(t, "03-01-20", res.Start.Format("01-02-06"))
	assert.Equal(t, "03-05-20", res.End.Format("01-02-06"))

	x2, _ := res.Table.Float("2")
	assert.Equal(t, []float64{3, 40}, x2)
}

func TestLagged_Gap(t *testing.T) {
	a := series(t, []int{1}, []string{"03-01-20", "03-03-20"}, [][]float64{{1, 3}})
	b := series(t, []int{1}, []string{"03-01-20", "03-02-20", "03-03-20"}, [][]float64{{1, 2, 3}})

	res, e := Lagged(a, b, "FIPS", 0, WithLogger(zap.NewNop()))
	assert.Nil(t, e)
	assert.Equal(t, []int{0, 1, 2}, res.Offsets)
	assert.Equal(t, 1, res.Filled)

	x1, _ := res.Table.Float("1")
	assert.True(t, math.IsNaN(x1[0]))
	assert.Equal(t, 2.0, x1[1])
}

func TestLagged_Errors(t *testing.T) {
	labels := []string{"03-01-20", "03-02-20"}
	a := series(t, []int{1, 1}, labels, [][]float64{{1, 2}, {3, 4}})
	b := series(t, []int{1}, labels, [][]float64{{1, 2}})

	_, e := Lagged(a, b, "FIPS", 0)
	assert.NotNil(t, e)

	a = series(t, []int{2}, labels, [][]float64{{1, 2}})
	_, e = Lagged(a, b, "FIPS", 0)
	assert.NotNil(t, e)

	a = series(t, []int{1}, labels, [][]float64{{1, 2}})
	_, e = Lagged(a, b, "FIPS", 5)
	assert.NotNil(t, e)

	_, e = Lagged(a, b, "FIPS", -1)
	assert.NotNil(t, e)

	_, e = Lagged(a, b, "FIPS", 0, SourceNames("x", "x"))
	assert.NotNil(t, e)
}

func TestLagged_SourceNames(t *testing.T) {
	labels := []string{"03-01-20", "03-02-20", "03-03-20"}
	a := series(t, []int{1}, labels, [][]float64{{1, 2, 3}})

	res, e := Lagged(a, a, "FIPS", 1, SourceNames("mobility", "deaths"))
	assert.Nil(t, e)
	assert.Equal(t, []string{"mobility", "deaths"}, res.Table.Column(SourceCol).AsString())
	assert.Equal(t, []string{"03-01-20"}, res.CauseDates)
	assert.Equal(t, []string{"03-02-20"}, res.EffectDates)
}
