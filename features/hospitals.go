package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/invertedv/covidmort/df"
)

// hospital listing columns and the values kept
const (
	hospStatus   = "STATUS"
	hospType     = "TYPE"
	hospFIPS     = "COUNTYFIPS"
	hospBeds     = "BEDS"
	hospOpen     = "OPEN"
	hospAcute    = "GENERAL ACUTE CARE"
	HospCountCol = "HospCt"
	HospBedsCol  = "Beds"
)

// HospitalCapacity aggregates open general acute care hospitals by county: HospCt is their count and Beds the
// sum of their beds.  Negative bed counts are a "not available" code and add nothing.  Rows without a usable
// county code are skipped.
func HospitalCapacity(hospitals *df.DF, keyCol string) (*df.DF, error) {
	if !hospitals.HasColumns(hospStatus, hospType, hospFIPS, hospBeds) {
		return nil, fmt.Errorf("hospitals need columns %s, %s, %s, %s", hospStatus, hospType, hospFIPS, hospBeds)
	}

	status := hospitals.Column(hospStatus).AsString()
	typ := hospitals.Column(hospType).AsString()
	fips := hospitals.Column(hospFIPS)
	beds := hospitals.Column(hospBeds)

	count := make(map[int]int)
	total := make(map[int]float64)
	for r := 0; r < hospitals.RowCount(); r++ {
		if strings.TrimSpace(status[r]) != hospOpen || strings.TrimSpace(typ[r]) != hospAcute {
			continue
		}

		k, ok := df.ToInt(fips.Element(r))
		if !ok {
			continue
		}

		key := k.(int)
		count[key]++
		if b := beds.ElementFloat(r); !df.IsMissing(b) && b >= 0 {
			total[key] += b
		}
	}

	if len(count) == 0 {
		return nil, fmt.Errorf("no open general acute care hospitals")
	}

	var keys []int
	for k := range count {
		keys = append(keys, k)
	}

	sort.Ints(keys)

	cts := make([]int, len(keys))
	bs := make([]float64, len(keys))
	for ind, k := range keys {
		cts[ind], bs[ind] = count[k], total[k]
	}

	kc, _ := df.NewCol(keys, df.DTint, df.ColName(keyCol))
	cc, _ := df.NewCol(cts, df.DTint, df.ColName(HospCountCol))
	bc, _ := df.NewCol(bs, df.DTfloat, df.ColName(HospBedsCol))

	return df.NewDF(kc, cc, bc)
}
