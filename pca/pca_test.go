package pca

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/invertedv/covidmort/df"
)

func data() *mat.Dense {
	return mat.NewDense(6, 3, []float64{
		2.5, 2.4, 1.0,
		0.5, 0.7, 3.0,
		2.2, 2.9, 1.5,
		1.9, 2.2, 2.0,
		3.1, 3.0, 0.5,
		2.3, 2.7, 1.2,
	})
}

func confound() *mat.Dense {
	return mat.NewDense(6, 1, []float64{1, 0, 1, 0, 1, 1})
}

func TestStandardize(t *testing.T) {
	z := Standardize(data())
	col := mat.Col(nil, 1, z)
	m, sd := stat.PopMeanStdDev(col, nil)
	assert.InDelta(t, 0, m, 1e-12)
	assert.InDelta(t, 1, sd, 1e-12)

	c := Standardize(mat.NewDense(2, 1, []float64{3, 3}))
	assert.Equal(t, []float64{0, 0}, mat.Col(nil, 0, c))
}

func TestMinMax(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{5, 1, 6, math.NaN(), 7, 3})
	s := MinMax(x, 1)
	assert.Equal(t, []float64{5, 6, 7}, mat.Col(nil, 0, s))
	col := mat.Col(nil, 1, s)
	assert.Equal(t, 0.0, col[0])
	assert.True(t, math.IsNaN(col[1]))
	assert.Equal(t, 1.0, col[2])
}

func TestFit(t *testing.T) {
	x := Standardize(data())
	res, e := Fit(x, 2)
	assert.Nil(t, e)

	n, k := res.Scores.Dims()
	assert.Equal(t, 6, n)
	assert.Equal(t, 2, k)
	assert.Equal(t, []string{"PC1", "PC2"}, res.Names)
	assert.LessOrEqual(t, floats.Sum(res.Ratios), 1.0+1e-12)
	assert.GreaterOrEqual(t, res.Values[0], res.Values[1])

	all, e := Fit(x, 3)
	assert.Nil(t, e)
	assert.InDelta(t, 1.0, floats.Sum(all.Ratios), 1e-10)

	_, e = Fit(x, 4)
	assert.NotNil(t, e)
	_, e = Fit(x, 0)
	assert.NotNil(t, e)
}

func TestACPCA_ZeroLambda(t *testing.T) {
	x := data()
	res, e := ACPCA(x, confound(), 0, 3)
	assert.Nil(t, e)

	// eigen decomposition of XᵀX of the centred data
	xc := Center(x)
	var xtx mat.Dense
	xtx.Mul(xc.T(), xc)
	var es mat.EigenSym
	assert.True(t, es.Factorize(mat.NewSymDense(3, xtx.RawMatrix().Data), true))
	vals := es.Values(nil)
	assert.InDelta(t, vals[2], res.Values[0], 1e-9)
	assert.InDelta(t, vals[1], res.Values[1], 1e-9)
	assert.InDelta(t, vals[0], res.Values[2], 1e-9)

	// same directions as standard PCA, up to sign
	pc, e := Fit(x, 3)
	assert.Nil(t, e)
	for j := 0; j < 3; j++ {
		dot := floats.Dot(mat.Col(nil, j, res.Vectors), mat.Col(nil, j, pc.Vectors))
		assert.InDelta(t, 1, math.Abs(dot), 1e-6)
		assert.InDelta(t, pc.Ratios[j], res.Ratios[j], 1e-9)
	}
}

func TestACPCA_Penalty(t *testing.T) {
	x := data()
	res0, e := ACPCA(x, confound(), 0, 2)
	assert.Nil(t, e)
	res, e := ACPCA(x, confound(), 5, 2)
	assert.Nil(t, e)

	// the penalty is positive semi-definite so it cannot raise the top eigenvalue
	assert.LessOrEqual(t, res.Values[0], res0.Values[0]+1e-9)
	assert.Equal(t, []string{"PC1", "PC2"}, res.Names)

	_, e = ACPCA(x, mat.NewDense(2, 1, []float64{1, 2}), 1, 2)
	assert.NotNil(t, e)
}

func TestResult_Table(t *testing.T) {
	k, _ := df.NewCol([]int{1, 2, 3, 4, 5, 6}, df.DTint, df.ColName("FIPS"))
	a, _ := df.NewCol(mat.Col(nil, 0, data()), df.DTfloat, df.ColName("a"))
	b, _ := df.NewCol(mat.Col(nil, 1, data()), df.DTfloat, df.ColName("b"))
	tbl, _ := df.NewDF(k, a, b)

	x, e := Matrix(tbl, []string{"a", "b"})
	assert.Nil(t, e)

	res, e := Fit(Standardize(x), 1)
	assert.Nil(t, e)

	keys, _ := tbl.Int("FIPS")
	out, e := res.Table("FIPS", keys)
	assert.Nil(t, e)
	assert.Equal(t, []string{"FIPS", "PC1"}, out.ColumnNames())
	assert.Equal(t, 6, out.RowCount())

	_, e = res.Table("FIPS", keys[:2])
	assert.NotNil(t, e)

	_, e = Matrix(tbl, []string{"nope"})
	assert.NotNil(t, e)
}
