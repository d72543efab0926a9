package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/invertedv/covidmort/features"
)

// clearEnv hides any ambient overrides
func clearEnv(t *testing.T) {
	for _, k := range []string{"host", "user", "password", "db", "COVIDMORT_DIALECT", "COVIDMORT_RAW", "COVIDMORT_PROCESSED"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, e := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(t, e)
	assert.Equal(t, features.Daily, cfg.Features.Options.Mode)
	assert.Equal(t, 30, cfg.Features.Days)
	assert.Equal(t, 30, cfg.Model.Assemble.MobilityLag)
	assert.Equal(t, []string{"PC1", "PC2", "PC3", "PC4"}, cfg.Model.Assemble.Components)
	assert.Equal(t, filepath.Join("output", "features.csv"), cfg.Path(cfg.Output.Features))
	assert.Equal(t, "/abs/x.csv", cfg.Path("/abs/x.csv"))
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "covidmort.yaml")
	data := `
name: test
data:
  raw_dir: /data/raw
features:
  mode: cumulative
  days: 20
  threshold: 5
pca:
  method: acpca
  components: 2
model:
  family: poisson
`
	assert.Nil(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, e := Load(path)
	assert.Nil(t, e)
	assert.Equal(t, "test", cfg.Name)
	assert.Equal(t, "/data/raw", cfg.Data.RawDir)
	assert.Equal(t, "data/processed", cfg.Data.ProcessedDir)
	assert.Equal(t, features.Cumulative, cfg.Features.Options.Mode)
	assert.Equal(t, 20, cfg.Features.Days)
	assert.Equal(t, 5.0, cfg.Features.Threshold)
	assert.Equal(t, 30, cfg.Features.MobilityLag)
	assert.Equal(t, 20, cfg.Model.Assemble.Days)
	assert.Equal(t, []string{"PC1", "PC2"}, cfg.Model.Assemble.Components)
	assert.Equal(t, "poisson", cfg.Model.Family)

	// round trip
	out := filepath.Join(t.TempDir(), "sub", "saved.yaml")
	assert.Nil(t, cfg.Save(out))
	back, e := Load(out)
	assert.Nil(t, e)
	assert.Equal(t, cfg.Features.Options, back.Features.Options)
	assert.Equal(t, cfg.PCA, back.PCA)
}

func TestLoad_Bad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cases := map[string]string{
		"mode":    "features:\n  mode: weekly\n",
		"method":  "pca:\n  method: ica\n",
		"family":  "model:\n  family: binomial\n",
		"dialect": "db:\n  dialect: sqlite\n",
		"host":    "db:\n  dialect: postgres\n",
		"yaml":    "features: [\n",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			assert.Nil(t, os.WriteFile(path, []byte(data), 0o644))

			_, e := Load(path)
			assert.NotNil(t, e)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("host", "10.0.0.1")
	t.Setenv("user", "me")
	t.Setenv("password", "secret")
	t.Setenv("db", "covid")
	t.Setenv("COVIDMORT_DIALECT", "postgres")
	t.Setenv("COVIDMORT_RAW", "/raw")

	cfg := Default()
	cfg.applyEnvOverrides()

	assert.Equal(t, DBConfig{Dialect: "postgres", Host: "10.0.0.1", User: "me", Password: "secret",
		Database: "covid", Table: "covidmort.features"}, cfg.DB)
	assert.Equal(t, "/raw", cfg.Data.RawDir)
	assert.Nil(t, cfg.Validate())
}
