// Package pca reduces a covariate matrix to a few orthogonal components, either by standard PCA or by
// AC-PCA, which penalises directions of variation that follow a confounding matrix.
package pca

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/invertedv/covidmort/df"
)

// Result holds the top k components of a fit
type Result struct {
	Scores  *mat.Dense // n x k projections of the centred data
	Vectors *mat.Dense // p x k component directions
	Values  []float64  // eigenvalue of each component
	Ratios  []float64  // share of the total variance of the data along each component
	Names   []string   // PC1 .. PCk
}

// Matrix collects the named float columns of table into an n x p matrix
func Matrix(table *df.DF, cols []string) (*mat.Dense, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns for matrix")
	}

	n := table.RowCount()
	out := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		x, e := table.Float(c)
		if e != nil {
			return nil, e
		}

		for i, v := range x {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("column %s row %d is missing", c, i)
			}
		}

		out.SetCol(j, x)
	}

	return out, nil
}

// Center returns x with each column's mean subtracted
func Center(x mat.Matrix) *mat.Dense {
	n, p := x.Dims()
	out := mat.DenseCopyOf(x)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		m := stat.Mean(col, nil)
		floats.AddConst(-m, col)
		out.SetCol(j, col)
	}

	return out
}

// Standardize returns x with columns scaled to mean zero and unit population standard deviation.
// Constant columns are only centred.
func Standardize(x mat.Matrix) *mat.Dense {
	n, p := x.Dims()
	out := mat.DenseCopyOf(x)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		m, sd := stat.PopMeanStdDev(col, nil)
		floats.AddConst(-m, col)
		if sd > 0 {
			floats.Scale(1/sd, col)
		}

		out.SetCol(j, col)
	}

	return out
}

// MinMax returns x with columns from on scaled to [0,1].  Missing values are ignored and kept; constant
// columns become 0.
func MinMax(x mat.Matrix, from int) *mat.Dense {
	n, p := x.Dims()
	out := mat.DenseCopyOf(x)
	col := make([]float64, n)
	for j := from; j < p; j++ {
		mat.Col(col, j, x)

		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}

			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}

		for i, v := range col {
			switch {
			case math.IsNaN(v):
			case hi > lo:
				col[i] = (v - lo) / (hi - lo)
			default:
				col[i] = 0
			}
		}

		out.SetCol(j, col)
	}

	return out
}

// Fit finds the top k principal components of x.  x is centred first.
func Fit(x mat.Matrix, k int) (*Result, error) {
	n, p := x.Dims()
	if k < 1 || k > p {
		return nil, fmt.Errorf("need 1 <= k <= %d, got %d", p, k)
	}

	if n < 2 {
		return nil, fmt.Errorf("need at least 2 rows, got %d", n)
	}

	xc := Center(x)

	var pc stat.PC
	if ok := pc.PrincipalComponents(xc, nil); !ok {
		return nil, fmt.Errorf("principal components: factorization failed")
	}

	vars := pc.VarsTo(nil)
	if k > len(vars) {
		return nil, fmt.Errorf("only %d components available for %d rows", len(vars), n)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	total := floats.Sum(vars)
	res := &Result{Values: append([]float64{}, vars[:k]...)}
	for ind := 0; ind < k; ind++ {
		res.Ratios = append(res.Ratios, ratio(vars[ind], total))
	}

	res.Vectors = mat.DenseCopyOf(vecs.Slice(0, p, 0, k))
	res.project(xc, k)

	return res, nil
}

// ACPCA finds the top k components of the operator XᵀX - λ Xᵀ(YYᵀ)X, with X and Y centred.  The operator is
// replaced by its symmetric part so the spectrum is real.  Ratios are eigenvalues over the trace of XᵀX.
func ACPCA(x, y mat.Matrix, lambda float64, k int) (*Result, error) {
	n, p := x.Dims()
	ny, _ := y.Dims()
	if n != ny {
		return nil, fmt.Errorf("x has %d rows and y has %d", n, ny)
	}

	if k < 1 || k > p {
		return nil, fmt.Errorf("need 1 <= k <= %d, got %d", p, k)
	}

	xc, yc := Center(x), Center(y)

	var xtx, kern, xtk, pen mat.Dense
	xtx.Mul(xc.T(), xc)
	kern.Mul(yc, yc.T())
	xtk.Mul(xc.T(), &kern)
	pen.Mul(&xtk, xc)

	var op mat.Dense
	op.Scale(-lambda, &pen)
	op.Add(&xtx, &op)

	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, (op.At(i, j)+op.At(j, i))/2)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, fmt.Errorf("AC-PCA: eigen decomposition failed")
	}

	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	order := make([]int, p)
	for ind := range order {
		order[ind] = ind
	}

	sort.SliceStable(order, func(i, j int) bool { return vals[order[i]] > vals[order[j]] })

	total := mat.Trace(&xtx)
	res := &Result{Vectors: mat.NewDense(p, k, nil)}
	col := make([]float64, p)
	for ind := 0; ind < k; ind++ {
		res.Values = append(res.Values, vals[order[ind]])
		res.Ratios = append(res.Ratios, ratio(vals[order[ind]], total))
		mat.Col(col, order[ind], &vecs)
		res.Vectors.SetCol(ind, col)
	}

	res.project(xc, k)

	return res, nil
}

// Table returns the scores as a table keyed by keys
func (r *Result) Table(keyName string, keys []int) (*df.DF, error) {
	n, k := r.Scores.Dims()
	if len(keys) != n {
		return nil, fmt.Errorf("%d keys for %d rows", len(keys), n)
	}

	kc, e := df.NewCol(keys, df.DTint, df.ColName(keyName))
	if e != nil {
		return nil, e
	}

	out, e := df.NewDF(kc)
	if e != nil {
		return nil, e
	}

	for j := 0; j < k; j++ {
		col, e := df.NewCol(mat.Col(nil, j, r.Scores), df.DTfloat, df.ColName(r.Names[j]))
		if e != nil {
			return nil, e
		}

		if e := out.AppendColumn(col, false); e != nil {
			return nil, e
		}
	}

	return out, nil
}

func (r *Result) project(xc *mat.Dense, k int) {
	r.Scores = &mat.Dense{}
	r.Scores.Mul(xc, r.Vectors)

	r.Names = nil
	for ind := 1; ind <= k; ind++ {
		r.Names = append(r.Names, fmt.Sprintf("PC%d", ind))
	}
}

func ratio(v, total float64) float64 {
	if total <= 0 {
		return 0
	}

	return v / total
}
