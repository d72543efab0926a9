// Package gam fits a penalised additive model of daily deaths per capita on the reduced county features and
// the distributed lag of mobility.
package gam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/invertedv/covidmort/df"
	"github.com/invertedv/covidmort/features"
	"github.com/invertedv/covidmort/pca"
)

const (
	TargetName = "deaths"
	DayName    = "dt"
)

// LagName is the design column of mobility m days before the death day
func LagName(m int) string {
	return fmt.Sprintf("t%d", m)
}

// Design is the stacked county-day data.  X is column-major; X[j] goes with Names[j].
type Design struct {
	Names []string
	Lags  []string // the lag columns, a suffix of Names
	X     [][]float64
	Y     []float64

	Keys []int // county of each row
	Days []int // day after onset of each row
}

func (d *Design) Rows() int {
	return len(d.Y)
}

// Column returns the column called name
func (d *Design) Column(name string) ([]float64, error) {
	for ind, nm := range d.Names {
		if nm == name {
			return d.X[ind], nil
		}
	}

	return nil, fmt.Errorf("design has no column %s", name)
}

type AssembleOptions struct {
	KeyCol      string `yaml:"key"`
	Days        int    `yaml:"days"`
	MobilityLag int    `yaml:"mobility_lag"`

	// Components and Hypothesis follow onset_relative, in order
	Components []string `yaml:"components"`
	Hypothesis []string `yaml:"hypothesis"`
	Population string   `yaml:"population"`

	// Counties restricts the rows to these keys; empty keeps every county
	Counties []int `yaml:"counties"`
	// Scale min-max scales every column after the first
	Scale bool `yaml:"scale"`
}

func DefaultAssembleOptions() AssembleOptions {
	return AssembleOptions{
		KeyCol:      "FIPS",
		Days:        30,
		MobilityLag: 30,
		Components:  []string{"PC1", "PC2", "PC3", "PC4"},
		Hypothesis:  []string{features.HospCountCol, features.HospBedsCol},
		Population:  features.PopulationCol,
		Counties:    DefaultStudyCounties(),
		Scale:       true,
	}
}

// DefaultStudyCounties are the metropolitan counties of the replication study
func DefaultStudyCounties() []int {
	return []int{
		6001, 6037, 6059, 6075, 6081, 6085,
		17031, 17043, 17089, 17097, 17111, 17197,
		18089,
		22051, 22071, 22075, 22087, 22103,
		26099, 26125, 26163,
		53033, 53061,
	}
}

// Assemble stacks a daily feature table into one row per county and day after onset.  For day d = 1..Days the
// row holds the county's fixed columns, t0..t{MobilityLag-1} with t_m the mobility m days before day d, and the
// target deaths_d / population.  Rows with a missing value are dropped.
func Assemble(table *df.DF, opt AssembleOptions) (*Design, error) {
	if opt.Days < 1 || opt.MobilityLag < 1 {
		return nil, fmt.Errorf("days and mobility lag must be positive, got %d and %d", opt.Days, opt.MobilityLag)
	}

	keys, e := table.Int(opt.KeyCol)
	if e != nil {
		return nil, e
	}

	pop, e := table.Float(opt.Population)
	if e != nil {
		return nil, e
	}

	fixedNames := append([]string{features.OnsetRelativeCol}, opt.Components...)
	fixedNames = append(fixedNames, opt.Hypothesis...)

	fixed, e := floatCols(table, fixedNames)
	if e != nil {
		return nil, e
	}

	var deathNames, mobNames []string
	for d := 1; d <= opt.Days; d++ {
		deathNames = append(deathNames, features.DeathsCol(d))
	}

	for k := 1; k <= opt.Days+opt.MobilityLag-1; k++ {
		mobNames = append(mobNames, features.MobilityLagCol(k))
	}

	deaths, e := floatCols(table, deathNames)
	if e != nil {
		return nil, e
	}

	mob, e := floatCols(table, mobNames)
	if e != nil {
		return nil, e
	}

	des := &Design{Names: fixedNames}
	for m := 0; m < opt.MobilityLag; m++ {
		des.Lags = append(des.Lags, LagName(m))
	}

	des.Names = append(des.Names, des.Lags...)
	des.X = make([][]float64, len(des.Names))

	row := make([]float64, len(des.Names))
	for r, key := range keys {
		if len(opt.Counties) > 0 && !has(key, opt.Counties) {
			continue
		}

		for d := 0; d < opt.Days; d++ {
			for j := range fixed {
				row[j] = fixed[j][r]
			}

			// mobility_k sits at onset+k-L+1, so m days before onset+d+1 is k = d+L-m
			for m := 0; m < opt.MobilityLag; m++ {
				row[len(fixed)+m] = mob[d+opt.MobilityLag-m-1][r]
			}

			y := deaths[d][r] / pop[r]
			if !complete(row) || !complete([]float64{y}) || pop[r] <= 0 {
				continue
			}

			for j, v := range row {
				des.X[j] = append(des.X[j], v)
			}

			des.Y = append(des.Y, y)
			des.Keys = append(des.Keys, key)
			des.Days = append(des.Days, d+1)
		}
	}

	if des.Rows() == 0 {
		return nil, fmt.Errorf("no complete county-day rows")
	}

	if opt.Scale {
		des.scale()
	}

	return des, nil
}

// scale min-max scales every column after the first
func (d *Design) scale() {
	x := mat.NewDense(d.Rows(), len(d.Names), nil)
	for j, col := range d.X {
		x.SetCol(j, col)
	}

	s := pca.MinMax(x, 1)
	for j := range d.X {
		d.X[j] = mat.Col(nil, j, s)
	}
}

// Table returns the design as a table, with the key, day and target columns first
func (d *Design) Table(keyCol string) (*df.DF, error) {
	kc, _ := df.NewCol(d.Keys, df.DTint, df.ColName(keyCol))
	dc, _ := df.NewCol(d.Days, df.DTint, df.ColName(DayName))
	yc, _ := df.NewCol(d.Y, df.DTfloat, df.ColName(TargetName))

	out, e := df.NewDF(kc, dc, yc)
	if e != nil {
		return nil, e
	}

	for j, name := range d.Names {
		col, e := df.NewCol(d.X[j], df.DTfloat, df.ColName(name))
		if e != nil {
			return nil, e
		}

		if e := out.AppendColumn(col, false); e != nil {
			return nil, e
		}
	}

	return out, nil
}

func floatCols(table *df.DF, names []string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for ind, name := range names {
		x, e := table.Float(name)
		if e != nil {
			return nil, fmt.Errorf("assemble: %w", e)
		}

		out[ind] = x
	}

	return out, nil
}

func complete(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

func has[C comparable](needle C, haystack []C) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}

	return false
}
