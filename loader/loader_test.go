package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func write(t *testing.T, dir, name, data string) {
	assert.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
}

func newLoader(t *testing.T) (*Loader, string) {
	dir := t.TempDir()
	l, e := New(Config{RawDir: dir}, zap.NewNop())
	assert.Nil(t, e)
	assert.Equal(t, dir, l.Config().ProcessedDir)

	return l, dir
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "counties_03-27-20.csv", "FIPS\n1\n")
	write(t, dir, "counties_12-01-20.csv", "FIPS\n1\n")
	write(t, dir, "counties_04-02-20.csv", "FIPS\n1\n")
	write(t, dir, "counties_latest.csv", "FIPS\n1\n")
	write(t, dir, "old_counties_12-31-20.csv", "FIPS\n1\n")

	path, date, e := Latest(dir, "counties")
	assert.Nil(t, e)
	assert.Equal(t, "12-01-20", date)
	assert.Equal(t, filepath.Join(dir, "counties_12-01-20.csv"), path)

	_, _, e = Latest(dir, "deaths")
	assert.True(t, errors.Is(e, ErrNoSnapshot))

	_, e = New(Config{}, nil)
	assert.NotNil(t, e)
}

func TestLoader_Deaths(t *testing.T) {
	l, dir := newLoader(t)
	write(t, dir, DeathsName+"_04-01-20.csv",
		"UID,iso2,iso3,code3,FIPS,Admin2,Province_State,Country_Region,Lat,Long_,Combined_Key,Population,3/1/20,3/2/20\n"+
			"84001001,US,USA,840,1001.0,Autauga,Alabama,US,32.5,-86.6,\"Autauga, Alabama, US\",55869,0,1\n"+
			"84001003,US,USA,840,1003.0,Baldwin,Alabama,US,30.7,-87.7,\"Baldwin, Alabama, US\",223234,2,3\n"+
			"84090001,US,USA,840,,Unassigned,Alabama,US,0,0,\"Unassigned, Alabama, US\",0,0,0\n")
	write(t, dir, CountiesName+"_04-01-20.csv",
		"FIPS,"+RuralUrbanCol+",POP_ESTIMATE_2018\n01001,2,55601\n01003,3,218022\n")

	snap, e := l.Deaths(DefaultDeathsOptions())
	assert.Nil(t, e)
	assert.Equal(t, "04-01-20", snap.Date)
	assert.True(t, snap.Data.HasColumns("UID", "03-01-20", "03-02-20"))
	assert.Equal(t, 3, snap.Data.RowCount())

	snap, e = l.Deaths(DeathsOptions{DropGeo: true})
	assert.Nil(t, e)
	assert.Equal(t, []string{"FIPS", "3/1/20", "3/2/20"}, snap.Data.ColumnNames())

	snap, e = l.Deaths(DeathsOptions{JoinCountyCodes: true, StandardizeDates: true})
	assert.Nil(t, e)
	assert.Equal(t, []string{"FIPS", "03-01-20", "03-02-20", RuralUrbanCol}, snap.Data.ColumnNames())
	fips, _ := snap.Data.Int("FIPS")
	assert.Equal(t, []int{1001, 1003}, fips)
	codes, _ := snap.Data.Int(RuralUrbanCol)
	assert.Equal(t, []int{2, 3}, codes)
}

func TestLoader_Interventions(t *testing.T) {
	l, dir := newLoader(t)
	write(t, dir, InterventionsName+"_04-01-20.csv",
		"FIPS,STATE,AREA_NAME,stay at home,public schools\n"+
			"1001,AL,Autauga County,737503.0,\n"+
			"1003,AL,Baldwin County,737425.0,737500.0\n")

	snap, e := l.Interventions(true)
	assert.Nil(t, e)
	assert.Equal(t, []string{"FIPS", "STATE", "AREA_NAME", "stay at home", "public schools"}, snap.Data.ColumnNames())
	assert.Equal(t, []string{"03-19-20", "01-01-20"}, snap.Data.Column("stay at home").AsString())
	assert.Equal(t, []string{"", "03-16-20"}, snap.Data.Column("public schools").AsString())

	snap, e = l.Interventions(false)
	assert.Nil(t, e)
	x, _ := snap.Data.Float("stay at home")
	assert.Equal(t, 737503.0, x[0])
}

func TestLoader_GoogleMobility(t *testing.T) {
	l, dir := newLoader(t)
	write(t, dir, GoogleMobilityName+"_04-01-20.csv",
		"country_region_code,country_region,sub_region_1,sub_region_2,date,retail\n"+
			"US,United States,,,2020-03-01,1\n"+
			"US,United States,Alabama,,2020-03-01,2\n"+
			"US,United States,Alabama,Autauga County,2020-03-01,3\n"+
			"CA,Canada,Ontario,Toronto,2020-03-01,4\n")

	snap, e := l.GoogleMobility(true)
	assert.Nil(t, e)
	assert.Equal(t, []string{"state", "county", "date", "retail"}, snap.Data.ColumnNames())
	assert.Equal(t, 1, snap.Data.RowCount())
	assert.Equal(t, "Autauga County", snap.Data.Column("county").Element(0))

	snap, e = l.GoogleMobility(false)
	assert.Nil(t, e)
	assert.Equal(t, 4, snap.Data.RowCount())
}

func TestLoader_OriginDestination(t *testing.T) {
	l, dir := newLoader(t)
	write(t, dir, OriginDestinationName+"_04-01-20.csv", "FIPS,2020-03-01,2020-03-02\n1001,0.5,0.6\n")

	snap, e := l.OriginDestination(true)
	assert.Nil(t, e)
	assert.Equal(t, []string{"FIPS", "03-01-20", "03-02-20"}, snap.Data.ColumnNames())

	_, e = l.Clusters()
	assert.True(t, errors.Is(e, ErrNoSnapshot))
}

func TestLoader_Processed(t *testing.T) {
	raw, processed := t.TempDir(), t.TempDir()
	write(t, processed, MobilityTimeSeriesName+"_04-01-20.csv", "FIPS,03-01-20\n1001,1\n")
	write(t, processed, ClustersName+"_04-01-20.csv", "FIPS,cluster\n1001,2\n")
	write(t, raw, HospitalsName+"_04-01-20.csv", "COUNTYFIPS,BEDS\n01001,10\n")

	l, e := New(Config{RawDir: raw, ProcessedDir: processed}, nil)
	assert.Nil(t, e)

	snap, e := l.MobilityTimeSeries()
	assert.Nil(t, e)
	assert.Equal(t, 1, snap.Data.RowCount())

	snap, e = l.Clusters()
	assert.Nil(t, e)
	assert.True(t, snap.Data.HasColumns("cluster"))

	snap, e = l.Hospitals()
	assert.Nil(t, e)
	assert.Equal(t, filepath.Join(raw, HospitalsName+"_04-01-20.csv"), snap.Path)
}
