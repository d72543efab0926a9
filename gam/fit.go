package gam

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
)

const (
	Gaussian = "gaussian"
	Poisson  = "poisson"
	Gamma    = "gamma"
)

// Fitter fits terms to a design
type Fitter interface {
	Fit(ctx context.Context, d *Design, terms []Term) (*Model, error)
}

// GLMFitter fits the expanded terms as a penalised generalized linear model
type GLMFitter struct {
	family   string
	gradient float64
	maxIter  int
	runID    string
	logger   *zap.Logger
}

type FitterOpt func(f *GLMFitter) error

// Family sets the response distribution: gaussian, poisson or gamma.  Poisson and gamma use the log link.
func Family(name string) FitterOpt {
	return func(f *GLMFitter) error {
		name = strings.ToLower(name)
		if name != Gaussian && name != Poisson && name != Gamma {
			return fmt.Errorf("unsupported family %s", name)
		}

		f.family = name
		return nil
	}
}

// GradientThreshold sets the convergence tolerance of the gradient fit
func GradientThreshold(tol float64) FitterOpt {
	return func(f *GLMFitter) error {
		if tol <= 0 {
			return fmt.Errorf("gradient threshold must be positive")
		}

		f.gradient = tol
		return nil
	}
}

func MaxIterations(n int) FitterOpt {
	return func(f *GLMFitter) error {
		if n < 1 {
			return fmt.Errorf("max iterations must be positive")
		}

		f.maxIter = n
		return nil
	}
}

// RunID stamps fitted models with id in place of a fresh one
func RunID(id string) FitterOpt {
	return func(f *GLMFitter) error {
		f.runID = id
		return nil
	}
}

func Logger(logger *zap.Logger) FitterOpt {
	return func(f *GLMFitter) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}

		f.logger = logger
		return nil
	}
}

func NewGLMFitter(opts ...FitterOpt) (*GLMFitter, error) {
	f := &GLMFitter{family: Gamma, gradient: 1e-4, maxIter: 1000, logger: zap.NewNop()}
	for _, opt := range opts {
		if e := opt(f); e != nil {
			return nil, e
		}
	}

	return f, nil
}

// ID is the run id stamped on models.  Empty means each Fit draws a fresh one.
func (f *GLMFitter) ID() string {
	return f.runID
}

func (f *GLMFitter) FamilyName() string {
	return f.family
}

func (f *GLMFitter) config(penalty map[string]float64) *glm.Config {
	config := glm.DefaultConfig()

	switch f.family {
	case Poisson:
		config.Family = glm.NewFamily(glm.PoissonFamily)
	case Gamma:
		config.Family = glm.NewFamily(glm.GammaFamily)
		config.Link = glm.NewLink(glm.LogLink)
	default:
		config.Family = glm.NewFamily(glm.GaussianFamily)
	}

	if len(penalty) > 0 {
		config.L2Penalty = penalty
		config.FitMethod = "gradient"
	}

	return config
}

// Fit expands terms on d and fits them.  Factor levels found here are kept on the model's terms.
func (f *GLMFitter) Fit(ctx context.Context, d *Design, terms []Term) (*Model, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("no terms to fit")
	}

	if e := f.checkResponse(d.Y); e != nil {
		return nil, e
	}

	// copy so learned factor levels stay with the model
	own := make([]Term, len(terms))
	for ind, t := range terms {
		own[ind] = t
		own[ind].Cols = append([]string{}, t.Cols...)
		own[ind].Levels = append([]float64(nil), t.Levels...)
	}

	names, cols, penalty, e := expand(d, own)
	if e != nil {
		return nil, e
	}

	if len(names) >= d.Rows() {
		return nil, fmt.Errorf("%d coefficients for %d rows", len(names), d.Rows())
	}

	if e := ctx.Err(); e != nil {
		return nil, e
	}

	const outcome = "y"
	data := append([][]statmodel.Dtype{d.Y}, cols...)
	dataset := statmodel.NewDataset(data, append([]string{outcome}, names...))

	model, e := glm.NewGLM(dataset, outcome, names, f.config(penalty))
	if e != nil {
		return nil, fmt.Errorf("glm: %w", e)
	}

	model = model.OptSettings(&optimize.Settings{GradientThreshold: f.gradient, MajorIterations: f.maxIter})

	start := time.Now()
	result := model.Fit()

	out := &Model{
		RunID:   f.runID,
		Family:  f.family,
		Terms:   own,
		Names:   names,
		Params:  append([]float64{}, result.Params()...),
		VCov:    append([]float64{}, result.VCov()...),
		Rows:    d.Rows(),
		Created: time.Now(),
	}

	if out.RunID == "" {
		out.RunID = uuid.NewString()
	}

	for _, p := range out.Params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("fit did not converge")
		}
	}

	f.logger.Info("model fit", zap.String("run_id", out.RunID), zap.String("family", f.family),
		zap.Int("rows", d.Rows()), zap.Int("coefficients", len(names)), zap.Int("penalised", len(penalty)),
		zap.Duration("elapsed", time.Since(start)))
	f.logger.Debug("model summary", zap.String("summary", fmt.Sprintf("%v", result.Summary())))

	return out, nil
}

func (f *GLMFitter) checkResponse(y []float64) error {
	if len(y) == 0 {
		return fmt.Errorf("empty response")
	}

	for ind, v := range y {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return fmt.Errorf("response row %d is not finite", ind)
		case f.family == Gamma && v <= 0:
			return fmt.Errorf("gamma response must be positive, row %d is %v", ind, v)
		case f.family == Poisson && v < 0:
			return fmt.Errorf("poisson response must be non-negative, row %d is %v", ind, v)
		}
	}

	return nil
}
