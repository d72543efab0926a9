package gam

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const InterceptName = "icept"

// Kind is the form a term takes in the linear predictor
type Kind int

const (
	// Linear enters a column as is
	Linear Kind = iota
	// Factor enters one indicator per level of a column, less the first
	Factor
	// Spline expands a column on a basis of Gaussian bumps spread over [0,1]
	Spline
	// Tensor is a distributed-lag cross-basis: the lag columns weighted by bumps spread over the lag index
	Tensor
)

var kindNames = []string{"linear", "factor", "spline", "tensor"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", k)
	}

	return kindNames[k]
}

func ParseKind(s string) (Kind, error) {
	for ind, nm := range kindNames {
		if strings.EqualFold(s, nm) {
			return Kind(ind), nil
		}
	}

	return Linear, fmt.Errorf("unknown term kind %q", s)
}

// Term is one additive piece of the model
type Term struct {
	Kind Kind
	Cols []string
	// Splines is the basis size of Spline and Tensor terms
	Splines int
	// Lambda is the L2 penalty on the term's coefficients
	Lambda float64
	// Levels of a Factor, set on first expansion
	Levels []float64
}

func NewLinear(col string) Term {
	return Term{Kind: Linear, Cols: []string{col}}
}

func NewFactor(col string) Term {
	return Term{Kind: Factor, Cols: []string{col}}
}

func NewSpline(col string, splines int, lambda float64) Term {
	return Term{Kind: Spline, Cols: []string{col}, Splines: splines, Lambda: lambda}
}

func NewTensor(cols []string, splines int, lambda float64) Term {
	return Term{Kind: Tensor, Cols: cols, Splines: splines, Lambda: lambda}
}

// DefaultTerms is a factor on the first design column, a 5-spline smooth on each of the others and a
// penalised cross-basis over the lags
func DefaultTerms(d *Design) []Term {
	terms := []Term{NewFactor(d.Names[0])}
	for _, name := range d.Names[1:] {
		if has(name, d.Lags) {
			continue
		}

		terms = append(terms, NewSpline(name, 5, 0))
	}

	if len(d.Lags) > 0 {
		terms = append(terms, NewTensor(d.Lags, 5, 1))
	}

	return terms
}

func (t *Term) validate() error {
	if len(t.Cols) == 0 {
		return fmt.Errorf("%s term has no columns", t.Kind)
	}

	switch t.Kind {
	case Linear, Factor, Spline:
		if len(t.Cols) != 1 {
			return fmt.Errorf("%s term takes one column, got %d", t.Kind, len(t.Cols))
		}
	case Tensor:
	default:
		return fmt.Errorf("unknown term kind %v", t.Kind)
	}

	if (t.Kind == Spline || t.Kind == Tensor) && t.Splines < 1 {
		return fmt.Errorf("%s term on %s needs at least one spline", t.Kind, t.Cols[0])
	}

	if t.Lambda < 0 {
		return fmt.Errorf("negative penalty %v", t.Lambda)
	}

	return nil
}

// expand returns the basis columns of the term on d, with their names
func (t *Term) expand(d *Design) (names []string, cols [][]float64, err error) {
	if e := t.validate(); e != nil {
		return nil, nil, e
	}

	x := make([][]float64, len(t.Cols))
	for ind, c := range t.Cols {
		if x[ind], err = d.Column(c); err != nil {
			return nil, nil, err
		}
	}

	switch t.Kind {
	case Linear:
		return []string{t.Cols[0]}, [][]float64{x[0]}, nil
	case Factor:
		return t.indicators(x[0])
	case Spline:
		for j, b := range bumps(x[0], t.Splines, 0, 1) {
			names = append(names, fmt.Sprintf("s(%s)_%d", t.Cols[0], j))
			cols = append(cols, b)
		}

		return names, cols, nil
	}

	return t.crossBasis(x)
}

func (t *Term) indicators(x []float64) (names []string, cols [][]float64, err error) {
	if t.Levels == nil {
		seen := make(map[float64]bool)
		for _, v := range x {
			if !seen[v] {
				seen[v] = true
				t.Levels = append(t.Levels, v)
			}
		}

		sort.Float64s(t.Levels)
	}

	for _, lvl := range t.Levels[1:] {
		ind := make([]float64, len(x))
		for r, v := range x {
			if v == lvl {
				ind[r] = 1
			}
		}

		names = append(names, fmt.Sprintf("f(%s)_%v", t.Cols[0], lvl))
		cols = append(cols, ind)
	}

	return names, cols, nil
}

// crossBasis returns sum over lags m of B_j(m) x_m for each lag bump B_j
func (t *Term) crossBasis(x [][]float64) (names []string, cols [][]float64, err error) {
	lags := make([]float64, len(x))
	for m := range lags {
		lags[m] = float64(m)
	}

	n := len(x[0])
	for j, b := range bumps(lags, t.Splines, 0, float64(len(x)-1)) {
		col := make([]float64, n)
		for m, w := range b {
			for r, v := range x[m] {
				col[r] += w * v
			}
		}

		names = append(names, fmt.Sprintf("te_%d", j))
		cols = append(cols, col)
	}

	return names, cols, nil
}

// bumps evaluates q Gaussian bumps, centred evenly over [lo, hi] with width the spacing, at each x
func bumps(x []float64, q int, lo, hi float64) [][]float64 {
	g, s := 0.0, hi-lo
	if q > 1 {
		g = (hi - lo) / float64(q-1)
		s = g
	}

	if s <= 0 {
		s = 1
	}

	out := make([][]float64, q)
	for j := 0; j < q; j++ {
		c := lo + float64(j)*g
		if q == 1 {
			c = (lo + hi) / 2
		}

		b := make([]float64, len(x))
		for i, v := range x {
			u := (v - c) / s
			b[i] = math.Exp(-u * u / 2)
		}

		out[j] = b
	}

	return out
}

// expand builds the model matrix of terms on d: an intercept followed by each term's basis.  penalty maps the
// penalised columns to their weight.
func expand(d *Design, terms []Term) (names []string, cols [][]float64, penalty map[string]float64, err error) {
	one := make([]float64, d.Rows())
	for ind := range one {
		one[ind] = 1
	}

	names, cols = []string{InterceptName}, [][]float64{one}
	penalty = make(map[string]float64)

	for ind := range terms {
		nm, cl, e := terms[ind].expand(d)
		if e != nil {
			return nil, nil, nil, e
		}

		for _, n := range nm {
			if has(n, names) {
				return nil, nil, nil, fmt.Errorf("column %s enters the model twice", n)
			}

			if terms[ind].Lambda > 0 {
				penalty[n] = terms[ind].Lambda
			}
		}

		names = append(names, nm...)
		cols = append(cols, cl...)
	}

	return names, cols, penalty, nil
}
