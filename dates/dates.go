// Package dates handles the short date strings used as column labels and snapshot suffixes.
//
// Conversions that may fail return the input unchanged together with an error, so callers decide
// whether to fall back to the input or to propagate.
package dates

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical date form: month-day-year, e.g. 03-27-20
const Layout = "01-02-06"

const secondsPerDay = 24 * 60 * 60

// ordinal day 1 is January 1 of year 1
var ordinalEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// FormatError is returned when a string is not a date in the expected layout
type FormatError struct {
	Value  string
	Layout string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%q is not a date of form %s", e.Value, e.Layout)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Parse parses s in the canonical layout
func Parse(s string) (time.Time, error) {
	return parseLayout(s, Layout)
}

func parseLayout(s, layout string) (time.Time, error) {
	t, e := time.Parse(layout, strings.TrimSpace(s))
	if e != nil {
		return time.Time{}, &FormatError{Value: s, Layout: layout, Err: e}
	}

	return t, nil
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

// Today returns the current date in canonical form
func Today() string {
	return Format(time.Now())
}

// TodayDate returns midnight UTC of the current date
func TodayDate() time.Time {
	t, _ := Parse(Today())
	return t
}

// Lag shifts t by days.  backwards moves toward the past.
func Lag(t time.Time, days int, backwards bool) time.Time {
	if backwards {
		days = -days
	}

	return t.AddDate(0, 0, days)
}

// LagString is Lag on canonical strings.
func LagString(s string, days int, backwards bool) (string, error) {
	t, e := Parse(s)
	if e != nil {
		return s, e
	}

	return Format(Lag(t, days, backwards)), nil
}

// FromOrdinal converts a proleptic Gregorian ordinal (day 1 = 0001-01-01) to canonical form.  Tokens such as
// "737503.0" are accepted.  On failure tok is returned along with the error.
func FromOrdinal(tok string) (string, error) {
	f, e := strconv.ParseFloat(strings.TrimSpace(tok), 64)
	if e != nil {
		return tok, fmt.Errorf("ordinal %q: %w", tok, e)
	}

	if math.IsNaN(f) || f < 1 || f != math.Trunc(f) || f > 3652059 {
		return tok, fmt.Errorf("ordinal %q out of range", tok)
	}

	return Format(ordinalEpoch.AddDate(0, 0, int(f)-1)), nil
}

// ToOrdinal is the inverse of FromOrdinal
func ToOrdinal(t time.Time) int {
	return Days(ordinalEpoch, t) + 1
}

// Switch re-formats s from fromLayout into the canonical layout.  On failure s is returned along with the error.
func Switch(s, fromLayout string) (string, error) {
	t, e := parseLayout(s, fromLayout)
	if e != nil {
		return s, e
	}

	return Format(t), nil
}

// Days is the number of calendar days from "from" to "to"
func Days(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	// Unix seconds, not Sub: a Duration saturates past 292 years
	return int((t.Unix() - f.Unix()) / secondsPerDay)
}

// Range returns every date from "from" through "to", inclusive.  It is empty if to is before from.
func Range(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}

	return out
}

// Min and Max of a non-empty slice
func Min(ds []time.Time) time.Time {
	m := ds[0]
	for _, d := range ds[1:] {
		if d.Before(m) {
			m = d
		}
	}

	return m
}

func Max(ds []time.Time) time.Time {
	m := ds[0]
	for _, d := range ds[1:] {
		if d.After(m) {
			m = d
		}
	}

	return m
}
