// Package study runs the stages of the county mortality study: load the snapshots, build the feature table,
// reduce the covariates and fit the model.
package study

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/invertedv/covidmort/align"
	"github.com/invertedv/covidmort/config"
	"github.com/invertedv/covidmort/df"
	"github.com/invertedv/covidmort/features"
	"github.com/invertedv/covidmort/gam"
	"github.com/invertedv/covidmort/loader"
	"github.com/invertedv/covidmort/pca"
)

// Result collects the outputs of a run.  Stages not run leave their fields nil.
type Result struct {
	Features *df.DF
	Report   *features.Report
	PCA      *pca.Result
	Design   *gam.Design
	Model    *gam.Model
}

type Study struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string
}

type Opt func(s *Study) error

// RunID stamps the fitted model with the id of the run that produced it
func RunID(id string) Opt {
	return func(s *Study) error {
		if id == "" {
			return fmt.Errorf("empty run id")
		}

		s.runID = id
		return nil
	}
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Opt) (*Study, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no config")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Study{cfg: cfg, logger: logger}
	for _, opt := range opts {
		if e := opt(s); e != nil {
			return nil, e
		}
	}

	return s, nil
}

// Inputs loads the snapshots the feature table is built from.  The clusters snapshot is optional.
func (s *Study) Inputs() (features.Inputs, error) {
	var in features.Inputs

	l, e := loader.New(s.cfg.Data, s.logger)
	if e != nil {
		return in, e
	}

	deaths, e := l.Deaths(loader.DeathsOptions{DropGeo: true, StandardizeDates: true})
	if e != nil {
		return in, fmt.Errorf("deaths: %w", e)
	}

	hosp, e := l.Hospitals()
	if e != nil {
		return in, fmt.Errorf("hospitals: %w", e)
	}

	od, e := l.OriginDestination(true)
	if e != nil {
		return in, fmt.Errorf("mobility: %w", e)
	}

	counties, e := l.Counties()
	if e != nil {
		return in, fmt.Errorf("counties: %w", e)
	}

	in = features.Inputs{Deaths: deaths.Data, Hospitals: hosp.Data, Mobility: od.Data, Counties: counties.Data}

	clusters, e := l.Clusters()
	switch {
	case errors.Is(e, loader.ErrNoSnapshot):
		s.logger.Info("no clusters snapshot, skipping")
	case e != nil:
		return in, fmt.Errorf("clusters: %w", e)
	default:
		in.Clusters = clusters.Data
	}

	s.logger.Info("snapshots loaded", zap.String("deaths", deaths.Date), zap.String("hospitals", hosp.Date),
		zap.String("mobility", od.Date), zap.String("counties", counties.Date))

	return in, nil
}

// Features builds the feature table, writes it to the output directory and, if a database is configured,
// saves it there too
func (s *Study) Features(ctx context.Context) (*df.DF, *features.Report, error) {
	in, e := s.Inputs()
	if e != nil {
		return nil, nil, e
	}

	table, rep, e := features.Build(ctx, in, s.cfg.Features.Options, s.logger)
	if e != nil {
		return nil, rep, e
	}

	if e := s.save(s.cfg.Output.Features, table); e != nil {
		return nil, nil, e
	}

	if s.cfg.DB.Dialect != "" {
		if e := s.store(table); e != nil {
			return nil, nil, e
		}
	}

	return table, rep, nil
}

// Reduce runs PCA or AC-PCA on the configured columns and returns table with the scores joined on
func (s *Study) Reduce(table *df.DF) (*df.DF, *pca.Result, error) {
	key := s.cfg.Features.KeyCol
	x, e := pca.Matrix(table, s.cfg.PCA.Columns)
	if e != nil {
		return nil, nil, e
	}

	x = pca.Standardize(x)

	var res *pca.Result
	switch s.cfg.PCA.Method {
	case "acpca":
		y, ex := pca.Matrix(table, s.cfg.PCA.Confounders)
		if ex != nil {
			return nil, nil, fmt.Errorf("confounders: %w", ex)
		}

		res, e = pca.ACPCA(x, y, s.cfg.PCA.Lambda, s.cfg.PCA.Components)
	default:
		res, e = pca.Fit(x, s.cfg.PCA.Components)
	}

	if e != nil {
		return nil, nil, e
	}

	s.logger.Info("components", zap.String("method", s.cfg.PCA.Method), zap.Float64s("ratios", res.Ratios))

	keys, e := table.Int(key)
	if e != nil {
		return nil, nil, e
	}

	scores, e := res.Table(key, keys)
	if e != nil {
		return nil, nil, e
	}

	if e := s.save(s.cfg.Output.Scores, scores); e != nil {
		return nil, nil, e
	}

	out, e := table.Join(scores, key, false)
	if e != nil {
		return nil, nil, e
	}

	return out, res, nil
}

// Fit assembles the county-day design from a daily feature table with component scores and fits the model
func (s *Study) Fit(ctx context.Context, table *df.DF) (*gam.Design, *gam.Model, error) {
	if s.cfg.Features.Options.Mode != features.Daily {
		return nil, nil, fmt.Errorf("the model needs the daily feature table")
	}

	d, e := gam.Assemble(table, s.cfg.Model.Assemble)
	if e != nil {
		return nil, nil, e
	}

	dt, e := d.Table(s.cfg.Features.KeyCol)
	if e != nil {
		return nil, nil, e
	}

	if e := s.save(s.cfg.Output.Design, dt); e != nil {
		return nil, nil, e
	}

	fitter, e := s.fitter()
	if e != nil {
		return nil, nil, e
	}

	m, e := fitter.Fit(ctx, d, s.Terms(d))
	if e != nil {
		return nil, nil, e
	}

	if s.cfg.Output.Model != "" {
		path := s.cfg.Path(s.cfg.Output.Model)
		if e := m.Save(path); e != nil {
			return nil, nil, e
		}

		s.logger.Info("model saved", zap.String("path", path), zap.String("run_id", m.RunID))
	}

	return d, m, nil
}

func (s *Study) fitter() (*gam.GLMFitter, error) {
	opts := []gam.FitterOpt{gam.Family(s.cfg.Model.Family), gam.GradientThreshold(s.cfg.Model.GradientThreshold),
		gam.MaxIterations(s.cfg.Model.MaxIterations), gam.Logger(s.logger)}
	if s.runID != "" {
		opts = append(opts, gam.RunID(s.runID))
	}

	return gam.NewGLMFitter(opts...)
}

// Terms are the default terms with the configured basis sizes and penalties
func (s *Study) Terms(d *gam.Design) []gam.Term {
	terms := gam.DefaultTerms(d)
	for ind := range terms {
		switch terms[ind].Kind {
		case gam.Spline:
			terms[ind].Splines, terms[ind].Lambda = s.cfg.Model.Splines, s.cfg.Model.SplineLambda
		case gam.Tensor:
			terms[ind].Splines, terms[ind].Lambda = s.cfg.Model.LagSplines, s.cfg.Model.LagLambda
		}
	}

	return terms
}

// Run does every stage.  The model is fit only for the daily table.
func (s *Study) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	var e error
	if res.Features, res.Report, e = s.Features(ctx); e != nil {
		return nil, e
	}

	reduced, pc, e := s.Reduce(res.Features)
	if e != nil {
		return nil, e
	}

	res.PCA = pc

	if s.cfg.Features.Options.Mode != features.Daily {
		s.logger.Info("cumulative table, no model fit")
		return res, nil
	}

	if res.Design, res.Model, e = s.Fit(ctx, reduced); e != nil {
		return nil, e
	}

	return res, nil
}

// Align loads two CSV tables and aligns them at lag, saving the result to outFile if it is not empty
func (s *Study) Align(causeFile, effectFile, matchCol string, lag int, outFile string) (*align.Result, error) {
	f, e := df.NewFiles()
	if e != nil {
		return nil, e
	}

	cause, e := f.Load(causeFile)
	if e != nil {
		return nil, e
	}

	effect, e := f.Load(effectFile)
	if e != nil {
		return nil, e
	}

	res, e := align.Lagged(cause, effect, matchCol, lag, align.WithLogger(s.logger),
		align.SourceNames(filepath.Base(causeFile), filepath.Base(effectFile)))
	if e != nil {
		return nil, e
	}

	if outFile != "" {
		if e := s.save(outFile, res.Table); e != nil {
			return nil, e
		}
	}

	return res, nil
}

// save writes table to name under the output directory; an empty name skips it
func (s *Study) save(name string, table *df.DF) error {
	if name == "" {
		return nil
	}

	path := s.cfg.Path(name)
	if e := os.MkdirAll(filepath.Dir(path), 0o755); e != nil {
		return e
	}

	f, e := df.NewFiles()
	if e != nil {
		return e
	}

	if e := f.Save(path, table); e != nil {
		return fmt.Errorf("saving %s: %w", path, e)
	}

	s.logger.Info("table saved", zap.String("path", path), zap.Int("rows", table.RowCount()))

	return nil
}

func (s *Study) store(table *df.DF) error {
	db := s.cfg.DB
	d, e := df.Connect(db.Dialect, db.Host, db.User, db.Password, db.Database)
	if e != nil {
		return e
	}
	defer func() { _ = d.Close() }()

	if e := d.Save(db.Table, s.cfg.Features.KeyCol, true, table); e != nil {
		return fmt.Errorf("saving to %s: %w", db.Dialect, e)
	}

	s.logger.Info("table stored", zap.String("dialect", db.Dialect), zap.String("table", db.Table))

	return nil
}
