package gam

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// Model is a fitted set of terms
type Model struct {
	RunID  string
	Family string
	Terms  []Term

	// Names, Params and VCov (row-major) cover the intercept and every basis column
	Names  []string
	Params []float64
	VCov   []float64

	Rows    int
	Created time.Time
}

// Coefficient returns the fitted coefficient and its standard error
func (m *Model) Coefficient(name string) (coef, se float64, err error) {
	p := len(m.Params)
	for ind, nm := range m.Names {
		if nm != name {
			continue
		}

		se = math.NaN()
		if len(m.VCov) == p*p {
			se = math.Sqrt(m.VCov[ind*p+ind])
		}

		return m.Params[ind], se, nil
	}

	return math.NaN(), math.NaN(), fmt.Errorf("model has no coefficient %s", name)
}

// Predict returns the fitted mean at each row of d.  Factor levels not seen in the fit take the reference level.
func (m *Model) Predict(d *Design) ([]float64, error) {
	terms := make([]Term, len(m.Terms))
	copy(terms, m.Terms)

	names, cols, _, e := expand(d, terms)
	if e != nil {
		return nil, e
	}

	if len(names) != len(m.Params) {
		return nil, fmt.Errorf("design gives %d columns, model has %d", len(names), len(m.Params))
	}

	out := make([]float64, d.Rows())
	for j, col := range cols {
		if names[j] != m.Names[j] {
			return nil, fmt.Errorf("design column %s where model has %s", names[j], m.Names[j])
		}

		for r, v := range col {
			out[r] += m.Params[j] * v
		}
	}

	if m.Family == Poisson || m.Family == Gamma {
		for r, eta := range out {
			out[r] = math.Exp(eta)
		}
	}

	return out, nil
}

// Save writes the model to fileName as gzipped gob, creating the directory if needed
func (m *Model) Save(fileName string) error {
	if e := os.MkdirAll(filepath.Dir(fileName), 0o755); e != nil {
		return e
	}

	f, e := os.Create(fileName)
	if e != nil {
		return e
	}
	defer func() { _ = f.Close() }()

	gz := gzip.NewWriter(f)
	if e := gob.NewEncoder(gz).Encode(m); e != nil {
		return fmt.Errorf("encoding model: %w", e)
	}

	if e := gz.Close(); e != nil {
		return e
	}

	return f.Close()
}

func Load(fileName string) (*Model, error) {
	f, e := os.Open(fileName)
	if e != nil {
		return nil, e
	}
	defer func() { _ = f.Close() }()

	gz, e := gzip.NewReader(f)
	if e != nil {
		return nil, fmt.Errorf("reading model %s: %w", fileName, e)
	}
	defer func() { _ = gz.Close() }()

	m := &Model{}
	if e := gob.NewDecoder(gz).Decode(m); e != nil {
		return nil, fmt.Errorf("decoding model %s: %w", fileName, e)
	}

	return m, nil
}
