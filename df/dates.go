package df

import (
	"time"

	"github.com/invertedv/covidmort/dates"
)

// DateColumns returns the column names that parse as dates, as dates, in column order.
func (df *DF) DateColumns() []time.Time {
	var out []time.Time
	for h := df.head; h != nil; h = h.next {
		if dt, e := dates.Parse(h.col.Name()); e == nil {
			out = append(out, dt)
		}
	}

	return out
}

// DateColumnNames is DateColumns returned in canonical string form.
func (df *DF) DateColumnNames() []string {
	var out []string
	for _, dt := range df.DateColumns() {
		out = append(out, dates.Format(dt))
	}

	return out
}

// DateIndex maps each date column to its column name.
func (df *DF) DateIndex() map[time.Time]string {
	out := make(map[time.Time]string)
	for h := df.head; h != nil; h = h.next {
		if dt, e := dates.Parse(h.col.Name()); e == nil {
			out[dt] = h.col.Name()
		}
	}

	return out
}
