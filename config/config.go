// Package config holds the settings of a covidmort run, read from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/invertedv/covidmort/features"
	"github.com/invertedv/covidmort/gam"
	"github.com/invertedv/covidmort/loader"
)

type Config struct {
	Name string `yaml:"name"`

	Data     loader.Config  `yaml:"data"`
	Features FeaturesConfig `yaml:"features"`
	PCA      PCAConfig      `yaml:"pca"`
	Model    ModelConfig    `yaml:"model"`
	DB       DBConfig       `yaml:"db"`
	Output   OutputConfig   `yaml:"output"`
}

// FeaturesConfig is features.Options with the mode spelled out
type FeaturesConfig struct {
	features.Options `yaml:",inline"`

	Mode string `yaml:"mode"` // cumulative, daily
}

type PCAConfig struct {
	Method      string   `yaml:"method"` // pca, acpca
	Components  int      `yaml:"components"`
	Lambda      float64  `yaml:"lambda"`
	Columns     []string `yaml:"columns"`
	Confounders []string `yaml:"confounders"`
}

type ModelConfig struct {
	Family            string  `yaml:"family"` // gamma, poisson, gaussian
	GradientThreshold float64 `yaml:"gradient_threshold"`
	MaxIterations     int     `yaml:"max_iterations"`

	Splines      int     `yaml:"splines"`
	SplineLambda float64 `yaml:"spline_lambda"`
	LagSplines   int     `yaml:"lag_splines"`
	LagLambda    float64 `yaml:"lag_lambda"`

	Assemble gam.AssembleOptions `yaml:"assemble"`
}

// DBConfig selects an optional database copy of the feature table.  An empty Dialect disables it.
type DBConfig struct {
	Dialect  string `yaml:"dialect"` // clickhouse, postgres
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Features string `yaml:"features"`
	Design   string `yaml:"design"`
	Scores   string `yaml:"scores"`
	Model    string `yaml:"model"`
}

func Default() *Config {
	return &Config{
		Name: "covidmort",
		Data: loader.Config{RawDir: "data/raw", ProcessedDir: "data/processed"},
		Features: FeaturesConfig{
			Options: features.DefaultOptions(),
			Mode:    features.Daily.String(),
		},
		PCA: PCAConfig{
			Method:      "pca",
			Components:  4,
			Lambda:      20,
			Columns:     DefaultPCAColumns(),
			Confounders: []string{"cluster"},
		},
		Model: ModelConfig{
			Family:            gam.Gamma,
			GradientThreshold: 1e-4,
			MaxIterations:     1000,
			Splines:           5,
			SplineLambda:      0,
			LagSplines:        5,
			LagLambda:         1,
			Assemble:          gam.DefaultAssembleOptions(),
		},
		DB: DBConfig{Database: "default", Table: "covidmort.features"},
		Output: OutputConfig{
			Dir:      "output",
			Features: "features.csv",
			Design:   "design.csv",
			Scores:   "scores.csv",
			Model:    "models/gam.gob.gz",
		},
	}
}

// DefaultPCAColumns are the socio-economic covariates reduced by PCA
func DefaultPCAColumns() []string {
	return []string{
		"Density per square mile of land area - Population",
		"Density per square mile of land area - Housing units",
		"Percent of adults with less than a high school diploma 2014-18",
		"PCTPOVALL_2018",
		"Unemployment_rate_2018",
		features.PctAge65Col,
		features.PopulationCol,
		"MEDHHINC_2018",
		"Percent of adults with a bachelor's degree or higher 2014-18",
		"Percent of adults with a high school diploma only 2014-18",
		"Total households!!Average household size",
	}
}

// Load reads path over the defaults.  A missing file gives the defaults.  A .env file in the working directory
// is loaded first; environment values override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, e := os.ReadFile(path)
	switch {
	case os.IsNotExist(e):
	case e != nil:
		return nil, fmt.Errorf("reading config: %w", e)
	default:
		if e := yaml.Unmarshal(data, cfg); e != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, e)
		}
	}

	cfg.applyEnvOverrides()

	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	return cfg, nil
}

func (c *Config) Save(path string) error {
	if e := os.MkdirAll(filepath.Dir(path), 0o755); e != nil {
		return fmt.Errorf("creating config directory: %w", e)
	}

	data, e := yaml.Marshal(c)
	if e != nil {
		return fmt.Errorf("marshalling config: %w", e)
	}

	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides takes the database credentials and data directories from the environment
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("host"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("user"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("password"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("db"); v != "" {
		c.DB.Database = v
	}
	if v := os.Getenv("COVIDMORT_DIALECT"); v != "" {
		c.DB.Dialect = v
	}
	if v := os.Getenv("COVIDMORT_RAW"); v != "" {
		c.Data.RawDir = v
	}
	if v := os.Getenv("COVIDMORT_PROCESSED"); v != "" {
		c.Data.ProcessedDir = v
	}
}

// Validate checks the settings.  It sets Features.Options.Mode from Features.Mode and copies the key, follow-up
// and lag of the features into the model's assembly options.
func (c *Config) Validate() error {
	mode, e := features.ParseMode(c.Features.Mode)
	if e != nil {
		return e
	}

	c.Features.Options.Mode = mode

	switch c.PCA.Method {
	case "pca", "acpca":
	default:
		return fmt.Errorf("unknown pca method %q (valid: pca, acpca)", c.PCA.Method)
	}

	if c.PCA.Components < 1 {
		return fmt.Errorf("pca components must be positive, got %d", c.PCA.Components)
	}

	if c.PCA.Method == "acpca" && len(c.PCA.Confounders) == 0 {
		return fmt.Errorf("acpca needs confounder columns")
	}

	switch c.Model.Family {
	case gam.Gamma, gam.Poisson, gam.Gaussian:
	default:
		return fmt.Errorf("unknown model family %q", c.Model.Family)
	}

	switch c.DB.Dialect {
	case "", "clickhouse", "postgres":
	default:
		return fmt.Errorf("unknown database dialect %q", c.DB.Dialect)
	}

	if c.DB.Dialect != "" && c.DB.Host == "" {
		return fmt.Errorf("database %s has no host", c.DB.Dialect)
	}

	c.Model.Assemble.KeyCol = c.Features.KeyCol
	c.Model.Assemble.Days = c.Features.Days
	c.Model.Assemble.MobilityLag = c.Features.MobilityLag
	c.Model.Assemble.Components = c.ComponentNames()

	return nil
}

// Path joins name to the output directory
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(c.Output.Dir, name)
}

// ComponentNames are PC1 .. PC<Components>
func (c *Config) ComponentNames() []string {
	var out []string
	for ind := 1; ind <= c.PCA.Components; ind++ {
		out = append(out, fmt.Sprintf("PC%d", ind))
	}

	return out
}
