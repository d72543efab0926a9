package loader

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/invertedv/covidmort/dates"
	"github.com/invertedv/covidmort/df"
)

const (
	// RuralUrbanCol is the county code joined to the death series
	RuralUrbanCol = "Rural-urban_Continuum Code_2013"

	// deathsDateLayout is the layout of the date columns of the deaths snapshot
	deathsDateLayout = "1/2/06"

	// odDateLayout is the layout of the date columns of the origin-destination snapshot
	odDateLayout = "2006-01-02"
)

// geographic columns of the deaths snapshot other than FIPS
var geoCols = []string{"UID", "iso2", "iso3", "code3", "Admin2", "Province_State", "Country_Region", "Lat", "Long_",
	"Combined_Key", "Population"}

type DeathsOptions struct {
	// JoinCountyCodes drops the geographic columns and inner-joins RuralUrbanCol from the counties snapshot
	JoinCountyCodes bool
	// DropGeo drops the geographic columns
	DropGeo bool
	// StandardizeDates relabels the date columns into the canonical layout
	StandardizeDates bool
}

func DefaultDeathsOptions() DeathsOptions {
	return DeathsOptions{StandardizeDates: true}
}

// Deaths loads the cumulative deaths by county
func (l *Loader) Deaths(opt DeathsOptions) (*Snapshot, error) {
	snap, e := l.read(l.cfg.RawDir, DeathsName)
	if e != nil {
		return nil, e
	}

	data := snap.Data
	if opt.DropGeo || opt.JoinCountyCodes {
		l.dropPresent(data, geoCols...)
	}

	if opt.JoinCountyCodes {
		counties, ex := l.Counties()
		if ex != nil {
			return nil, ex
		}

		codes, ex := counties.Data.KeepColumns("FIPS", RuralUrbanCol)
		if ex != nil {
			return nil, fmt.Errorf("county codes: %w", ex)
		}

		if data, ex = joinOnFIPS(data, codes, l.logger); ex != nil {
			return nil, fmt.Errorf("joining county codes: %w", ex)
		}
	}

	if opt.StandardizeDates {
		l.relabel(data, deathsDateLayout)
	}

	snap.Data = data

	return snap, nil
}

// Interventions loads the county intervention dates.  If standardize is true, columns 3 on are read as
// ordinal day numbers and converted to canonical date strings.  Cells that don't convert are kept as is.
func (l *Loader) Interventions(standardize bool) (*Snapshot, error) {
	snap, e := l.read(l.cfg.RawDir, InterventionsName)
	if e != nil {
		return nil, e
	}

	if !standardize {
		return snap, nil
	}

	fallbacks := 0
	names := snap.Data.ColumnNames()
	for ind, name := range names {
		if ind < 3 {
			continue
		}

		col := snap.Data.Column(name)
		out := make([]string, col.Len())
		for r := 0; r < col.Len(); r++ {
			if col.IsMissing(r) {
				continue
			}

			tok, _ := df.ToString(col.Element(r))
			s, ex := dates.FromOrdinal(tok.(string))
			if ex != nil {
				fallbacks++
				l.logger.Debug("ordinal kept as is", zap.String("column", name), zap.Error(ex))
			}

			out[r] = s
		}

		nc, ex := df.NewCol(out, df.DTstring, df.ColName(name))
		if ex != nil {
			return nil, ex
		}

		if ex := snap.Data.Replace(nc); ex != nil {
			return nil, ex
		}
	}

	if fallbacks > 0 {
		l.logger.Info("intervention cells not converted from ordinal", zap.Int("cells", fallbacks))
	}

	return snap, nil
}

// GoogleMobility loads the Google community mobility report.  If removeForeign is true only U.S. counties are kept,
// the country columns are dropped and sub_region_1/sub_region_2 become state/county.
func (l *Loader) GoogleMobility(removeForeign bool) (*Snapshot, error) {
	snap, e := l.read(l.cfg.RawDir, GoogleMobilityName)
	if e != nil {
		return nil, e
	}

	if !removeForeign {
		return snap, nil
	}

	data := snap.Data
	if !data.HasColumns("country_region_code", "country_region", "sub_region_1", "sub_region_2") {
		return nil, fmt.Errorf("%s: missing region columns", GoogleMobilityName)
	}

	code, sub1, sub2 := data.Column("country_region_code"), data.Column("sub_region_1"), data.Column("sub_region_2")
	keep := make([]bool, data.RowCount())
	for r := range keep {
		keep[r] = blankless(code, r) && code.AsString()[r] == "US" && blankless(sub1, r) && blankless(sub2, r)
	}

	if data, e = data.Where(keep); e != nil {
		return nil, e
	}

	if e := data.DropColumns("country_region_code", "country_region"); e != nil {
		return nil, e
	}

	if e := data.Rename("sub_region_1", "state"); e != nil {
		return nil, e
	}

	if e := data.Rename("sub_region_2", "county"); e != nil {
		return nil, e
	}

	snap.Data = data

	return snap, nil
}

// Counties loads the county attributes
func (l *Loader) Counties() (*Snapshot, error) {
	return l.read(l.cfg.RawDir, CountiesName)
}

// MobilityTimeSeries loads the processed mobility series
func (l *Loader) MobilityTimeSeries() (*Snapshot, error) {
	return l.read(l.cfg.ProcessedDir, MobilityTimeSeriesName)
}

// Hospitals loads the hospital listing
func (l *Loader) Hospitals() (*Snapshot, error) {
	return l.read(l.cfg.RawDir, HospitalsName)
}

// OriginDestination loads the origin-destination mobility series.  If standardize is true, date columns are
// relabelled into the canonical layout.
func (l *Loader) OriginDestination(standardize bool) (*Snapshot, error) {
	snap, e := l.read(l.cfg.RawDir, OriginDestinationName)
	if e != nil {
		return nil, e
	}

	if standardize {
		l.relabel(snap.Data, odDateLayout)
	}

	return snap, nil
}

// Clusters loads the county cluster assignments
func (l *Loader) Clusters() (*Snapshot, error) {
	return l.read(l.cfg.ProcessedDir, ClustersName)
}

// relabel renames columns in layout into the canonical layout; other columns keep their names
func (l *Loader) relabel(data *df.DF, layout string) {
	renamed := 0
	for _, name := range data.ColumnNames() {
		s, e := dates.Switch(name, layout)
		if e != nil {
			l.logger.Debug("column is not a date", zap.String("column", name))
			continue
		}

		if e := data.Rename(name, s); e != nil {
			l.logger.Warn("cannot relabel date column", zap.String("column", name), zap.Error(e))
			continue
		}

		renamed++
	}

	l.logger.Debug("date columns relabelled", zap.Int("columns", renamed))
}

func (l *Loader) dropPresent(data *df.DF, cols ...string) {
	for _, c := range cols {
		if data.Column(c) == nil {
			l.logger.Debug("column to drop not present", zap.String("column", c))
			continue
		}

		_ = data.DropColumns(c)
	}
}

// joinOnFIPS inner-joins right to left on FIPS after dropping rows of left with no key
func joinOnFIPS(left, right *df.DF, logger *zap.Logger) (*df.DF, error) {
	lk, dropped, e := left.IntKey("FIPS")
	if e != nil {
		return nil, e
	}

	if dropped > 0 {
		logger.Info("rows without FIPS dropped", zap.Int("rows", dropped))
	}

	rk, _, e := right.IntKey("FIPS")
	if e != nil {
		return nil, e
	}

	return lk.Join(rk, "FIPS", false)
}

// blankless is true if element r of col is present
func blankless(col *df.Col, r int) bool {
	if col.DataType() == df.DTstring {
		return col.AsString()[r] != ""
	}

	return !col.IsMissing(r)
}
