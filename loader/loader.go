// Package loader reads the timestamped CSV snapshots of each data source and normalises them.
//
// Snapshots are named <name>_<date>.csv where <date> is in the canonical layout of package dates.
// The newest snapshot of each source is used.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/invertedv/covidmort/dates"
	"github.com/invertedv/covidmort/df"
)

// Version of the normalisation rules applied by the loader
const Version = "2.0"

// snapshot names
const (
	DeathsName             = "time_series_covid19_deaths_US"
	InterventionsName      = "interventions"
	GoogleMobilityName     = "google_mobility_report"
	CountiesName           = "counties"
	MobilityTimeSeriesName = "mobility_time_series"
	HospitalsName          = "hospitals"
	OriginDestinationName  = "origin_destination"
	ClustersName           = "clusters"
)

// ErrNoSnapshot is returned when no file in a directory matches a source's naming pattern
var ErrNoSnapshot = errors.New("no snapshot found")

type Config struct {
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
}

// Snapshot is a loaded source table with the date of its file
type Snapshot struct {
	Data *df.DF
	Date string
	Path string
}

type Loader struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Loader, error) {
	if cfg.RawDir == "" {
		return nil, fmt.Errorf("loader: raw directory not set")
	}

	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = cfg.RawDir
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{cfg: cfg, logger: logger.With(zap.String("loader", Version))}, nil
}

func (l *Loader) Config() Config {
	return l.cfg
}

// Latest returns the newest file in dir named name_<date>.csv and its date
func Latest(dir, name string) (path, date string, err error) {
	entries, e := os.ReadDir(dir)
	if e != nil {
		return "", "", fmt.Errorf("reading %s: %w", dir, e)
	}

	query := regexp.MustCompile("^" + regexp.QuoteMeta(name) + `_(.+?)\.csv$`)

	var newest time.Time
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}

		match := query.FindStringSubmatch(ent.Name())
		if match == nil {
			continue
		}

		dt, ex := dates.Parse(match[1])
		if ex != nil {
			continue
		}

		if path == "" || dt.After(newest) {
			path, date, newest = filepath.Join(dir, ent.Name()), match[1], dt
		}
	}

	if path == "" {
		return "", "", fmt.Errorf("%s in %s: %w", name, dir, ErrNoSnapshot)
	}

	return path, date, nil
}

// read loads the newest snapshot of name in dir
func (l *Loader) read(dir, name string, opts ...df.FileOpt) (*Snapshot, error) {
	path, date, e := Latest(dir, name)
	if e != nil {
		return nil, e
	}

	f, e := df.NewFiles(opts...)
	if e != nil {
		return nil, e
	}

	data, e := f.Load(path)
	if e != nil {
		return nil, fmt.Errorf("loading %s: %w", name, e)
	}

	l.logger.Info("loaded snapshot", zap.String("source", name), zap.String("date", date),
		zap.Int("rows", data.RowCount()), zap.Int("columns", data.ColumnCount()))

	return &Snapshot{Data: data, Date: date, Path: path}, nil
}
