package features

import (
	"fmt"

	"github.com/invertedv/covidmort/df"
)

const (
	PopulationCol = "POP_ESTIMATE_2018"
	Age65Col      = "Total_age65plus"
	PctAge65Col   = "Pct_age65plus"
)

// DefaultCovariates are the socio-economic columns of the counties snapshot used by the model
func DefaultCovariates() []string {
	return []string{
		"Rural-urban_Continuum Code_2013",
		"Density per square mile of land area - Population",
		"Density per square mile of land area - Housing units",
		"Percent of adults with less than a high school diploma 2014-18",
		"PCTPOVALL_2018",
		"Unemployment_rate_2018",
		Age65Col,
		PopulationCol,
		"MEDHHINC_2018",
		"Percent of adults with a bachelor's degree or higher 2014-18",
		"Percent of adults with a high school diploma only 2014-18",
		"Total households!!Average household size",
	}
}

// DefaultOutliers are the New York City boroughs, whose deaths are reported together
func DefaultOutliers() []int {
	return []int{36061, 36047, 36081, 36005, 36085}
}

// covariates selects keyCol and cols from counties, dropping rows with any missing value.  Pct_age65plus is
// added when its inputs are present.  dropped counts the rows removed.
func covariates(counties *df.DF, keyCol string, cols []string) (out *df.DF, dropped int, err error) {
	ck, dropped, e := counties.IntKey(keyCol)
	if e != nil {
		return nil, 0, fmt.Errorf("counties: %w", e)
	}

	if e := ck.UniqueKey(keyCol); e != nil {
		return nil, 0, fmt.Errorf("counties: %w", e)
	}

	names := []string{keyCol}
	for _, c := range cols {
		if c == keyCol || has(c, names) {
			continue
		}

		names = append(names, c)
	}

	if out, e = ck.KeepColumns(names...); e != nil {
		return nil, 0, fmt.Errorf("counties: %w", e)
	}

	keep := make([]bool, out.RowCount())
	for r := range keep {
		keep[r] = true
		for c := out.Next(true); c != nil; c = out.Next(false) {
			if c.IsMissing(r) || (c.DataType() == df.DTstring && c.AsString()[r] == "") {
				keep[r] = false
				break
			}
		}

		if !keep[r] {
			dropped++
		}
	}

	if out, e = out.Where(keep); e != nil {
		return nil, 0, e
	}

	if out.HasColumns(Age65Col, PopulationCol) {
		age, e1 := out.Float(Age65Col)
		pop, e2 := out.Float(PopulationCol)
		if e1 != nil || e2 != nil {
			return nil, 0, fmt.Errorf("%s and %s must be numeric", Age65Col, PopulationCol)
		}

		pct := make([]float64, len(age))
		for ind := range age {
			pct[ind] = df.Missing()
			if pop[ind] > 0 {
				pct[ind] = age[ind] / pop[ind]
			}
		}

		col, _ := df.NewCol(pct, df.DTfloat, df.ColName(PctAge65Col))
		if e := out.AppendColumn(col, true); e != nil {
			return nil, 0, e
		}
	}

	return out, dropped, nil
}

func has[C comparable](needle C, haystack []C) bool {
	for _, straw := range haystack {
		if needle == straw {
			return true
		}
	}

	return false
}
