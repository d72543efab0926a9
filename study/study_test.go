package study

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/invertedv/covidmort/config"
	"github.com/invertedv/covidmort/df"
	"github.com/invertedv/covidmort/features"
	"github.com/invertedv/covidmort/gam"
	"github.com/invertedv/covidmort/loader"
)

func write(t *testing.T, dir, name, data string) {
	assert.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
}

// snapshots writes a small set of raw snapshots for three counties
func snapshots(t *testing.T) string {
	dir := t.TempDir()
	write(t, dir, loader.DeathsName+"_03-09-20.csv",
		"UID,FIPS,Admin2,3/1/20,3/2/20,3/3/20,3/4/20,3/5/20,3/6/20,3/7/20,3/8/20\n"+
			"1,1001.0,Autauga,0,1,3,4,5,6,7,8\n"+
			"2,1003.0,Baldwin,3,4,5,6,7,8,9,10\n"+
			"3,1005.0,Barbour,0,0,3,3,4,6,8,9\n"+
			"4,,Unassigned,0,0,0,0,0,0,0,0\n")
	write(t, dir, loader.HospitalsName+"_03-09-20.csv",
		"STATUS,TYPE,COUNTYFIPS,BEDS\nOPEN,GENERAL ACUTE CARE,01001,120\nCLOSED,GENERAL ACUTE CARE,01003,80\n")
	write(t, dir, loader.OriginDestinationName+"_03-09-20.csv",
		"FIPS,2020-03-01,2020-03-02,2020-03-03,2020-03-04,2020-03-05,2020-03-06,2020-03-07,2020-03-08\n"+
			"1001,1,2,3,4,5,6,7,8\n"+
			"1003,2,2,2,2,2,2,2,2\n")
	write(t, dir, loader.CountiesName+"_03-09-20.csv",
		"FIPS,X1,X2,"+features.PopulationCol+","+features.Age65Col+"\n"+
			"01001,1,5,1000,100\n"+
			"01003,2,3,2000,300\n"+
			"01005,4,1,3000,600\n")

	return dir
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Data = loader.Config{RawDir: snapshots(t)}
	cfg.Output.Dir = t.TempDir()

	cfg.Features.Mode = features.Cumulative.String()
	cfg.Features.Days = 2
	cfg.Features.MobilityLag = 2
	cfg.Features.MAWindow = 1
	cfg.Features.BaselineDays = 2
	cfg.Features.SnapshotLag = 1
	cfg.Features.Covariates = []string{"X1", "X2", features.PopulationCol, features.Age65Col}
	cfg.Features.Outliers = nil

	cfg.PCA.Columns = []string{"X1", "X2"}
	cfg.PCA.Components = 1

	assert.Nil(t, cfg.Validate())

	return cfg
}

func TestStudy_Run(t *testing.T) {
	cfg := testConfig(t)
	s, e := New(cfg, zap.NewNop())
	assert.Nil(t, e)

	res, e := s.Run(context.Background())
	assert.Nil(t, e)

	assert.Equal(t, 3, res.Features.RowCount())
	assert.Equal(t, 3, res.Report.Retained)
	assert.Equal(t, []string{"PC1"}, res.PCA.Names)
	assert.InDelta(t, 1.0, res.PCA.Ratios[0], 0.5)
	assert.Nil(t, res.Model)
	assert.Nil(t, res.Design)

	on := res.Features.Column(features.OnsetCol).AsString()
	assert.Equal(t, []string{"03-03-20", "03-01-20", "03-03-20"}, on)

	d, _ := res.Features.Float(features.DeathsTotalCol)
	assert.Equal(t, []float64{5, 5, 4}, d)

	ct, _ := res.Features.Float(features.HospCountCol)
	assert.Equal(t, []float64{1, 0, 0}, ct)

	for _, name := range []string{cfg.Output.Features, cfg.Output.Scores} {
		_, e := os.Stat(cfg.Path(name))
		assert.Nil(t, e)
	}

	f, e := df.NewFiles()
	assert.Nil(t, e)
	back, e := f.Load(cfg.Path(cfg.Output.Scores))
	assert.Nil(t, e)
	assert.Equal(t, []string{"FIPS", "PC1"}, back.ColumnNames())
	assert.Equal(t, 3, back.RowCount())

	_, _, e = s.Fit(context.Background(), res.Features)
	assert.NotNil(t, e)
}

func TestStudy_MissingSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.RawDir = t.TempDir()
	s, e := New(cfg, nil)
	assert.Nil(t, e)

	_, e = s.Run(context.Background())
	assert.ErrorIs(t, e, loader.ErrNoSnapshot)

	_, e = New(nil, nil)
	assert.NotNil(t, e)
}

func TestStudy_RunID(t *testing.T) {
	cfg := testConfig(t)
	s, e := New(cfg, nil, RunID("run-1"))
	assert.Nil(t, e)

	f, e := s.fitter()
	assert.Nil(t, e)
	assert.Equal(t, "run-1", f.ID())
	assert.Equal(t, cfg.Model.Family, f.FamilyName())

	s, _ = New(cfg, nil)
	f, e = s.fitter()
	assert.Nil(t, e)
	assert.Equal(t, "", f.ID())

	_, e = New(cfg, nil, RunID(""))
	assert.NotNil(t, e)
}

func TestStudy_Terms(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Splines, cfg.Model.SplineLambda = 4, 0.5
	cfg.Model.LagSplines, cfg.Model.LagLambda = 3, 2
	s, _ := New(cfg, nil)

	d := &gam.Design{Names: []string{"onset_relative", "PC1", "t0", "t1"}, Lags: []string{"t0", "t1"}}
	terms := s.Terms(d)
	assert.Equal(t, 3, len(terms))
	assert.Equal(t, gam.Factor, terms[0].Kind)
	assert.Equal(t, 4, terms[1].Splines)
	assert.Equal(t, 0.5, terms[1].Lambda)
	assert.Equal(t, 3, terms[2].Splines)
	assert.Equal(t, 2.0, terms[2].Lambda)
}

func TestStudy_Align(t *testing.T) {
	cfg := testConfig(t)
	s, _ := New(cfg, nil)

	dir := t.TempDir()
	write(t, dir, "cause.csv", "FIPS,03-01-20,03-02-20,03-03-20\n1,1,2,3\n2,4,5,6\n")
	write(t, dir, "effect.csv", "FIPS,03-01-20,03-02-20,03-03-20\n2,7,8,9\n3,1,1,1\n")

	res, e := s.Align(filepath.Join(dir, "cause.csv"), filepath.Join(dir, "effect.csv"), "FIPS", 0, "aligned.csv")
	assert.Nil(t, e)
	assert.Equal(t, []int{0, 1, 2}, res.Offsets)
	assert.Equal(t, 2, res.Table.RowCount())

	_, e = os.Stat(cfg.Path("aligned.csv"))
	assert.Nil(t, e)

	_, e = s.Align(filepath.Join(dir, "cause.csv"), filepath.Join(dir, "effect.csv"), "FIPS", -1, "")
	assert.NotNil(t, e)
}
