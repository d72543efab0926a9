package df

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var dateFormats = []string{"2006-01-02", "20060102", "1/2/2006", "01/02/2006", "Jan 2, 2006", "January 2, 2006",
	"Jan 2 2006", "January 2 2006"}

// missingTokens are CSV cell values read as a missing float
var missingTokens = []string{"", "NA", "NaN", "nan", "null", "NULL"}

// *********** Conversions ***********

func ToFloat(x any) (any, bool) {
	if f, ok := x.(float64); ok {
		return f, true
	}

	if s, ok := x.(string); ok {
		s = strings.TrimSpace(s)
		if has(s, missingTokens) {
			return math.NaN(), true
		}

		if f, e := strconv.ParseFloat(s, 64); e == nil {
			return f, true
		}

		return nil, false
	}

	xv := reflect.ValueOf(x)
	if xv.CanFloat() {
		return xv.Float(), true
	}

	if xv.CanInt() {
		return float64(xv.Int()), true
	}

	if xv.CanUint() {
		return float64(xv.Uint()), true
	}

	return nil, false
}

func ToInt(x any) (any, bool) {
	if i, ok := x.(int); ok {
		return i, true
	}

	if f, ok := x.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, false
		}

		return int(f), true
	}

	if s, ok := x.(string); ok {
		if i, e := strconv.ParseInt(strings.TrimSpace(s), 10, 64); e == nil {
			return int(i), true
		}

		// keys like "1001.0"
		if f, e := strconv.ParseFloat(strings.TrimSpace(s), 64); e == nil {
			return ToInt(f)
		}

		return nil, false
	}

	xv := reflect.ValueOf(x)
	if xv.CanInt() {
		return int(xv.Int()), true
	}

	if xv.CanUint() {
		return int(xv.Uint()), true
	}

	return nil, false
}

func ToString(x any) (any, bool) {
	if s, ok := x.(string); ok {
		return s, true
	}

	if f, ok := x.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}

	if i, ok := x.(int); ok {
		return strconv.Itoa(i), true
	}

	if s, ok := x.(time.Time); ok {
		return s.Format("2006-01-02"), true
	}

	return nil, false
}

func ToDate(x any) (any, bool) {
	if d, ok := x.(time.Time); ok {
		return d, true
	}

	if d, ok := x.(string); ok {
		for _, fmtx := range dateFormats {
			if dt, e := time.Parse(fmtx, strings.ReplaceAll(d, "'", "")); e == nil {
				return dt, true
			}
		}
	}

	return nil, false
}

func toDataType(x any, dt DataTypes) (any, bool) {
	switch dt {
	case DTfloat:
		return ToFloat(x)
	case DTint:
		return ToInt(x)
	case DTdate:
		return ToDate(x)
	case DTstring:
		return ToString(x)
	}

	return nil, false
}

// bestType finds the narrowest type every element of xs converts to.  Order of preference is
// int, float, string.  Missing tokens force a float.
func bestType(xs []string) DataTypes {
	isInt, isFloat := true, true
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if has(x, missingTokens) {
			isInt = false
			continue
		}

		if isInt {
			if _, e := strconv.ParseInt(x, 10, 64); e != nil {
				isInt = false
			}
		}

		if isFloat {
			if _, e := strconv.ParseFloat(x, 64); e != nil {
				isFloat = false
			}
		}

		if !isInt && !isFloat {
			return DTstring
		}
	}

	switch {
	case isInt && len(xs) > 0:
		return DTint
	case isFloat:
		return DTfloat
	default:
		return DTstring
	}
}

// toSlc converts a slice of strings to a slice of type dt
func toSlc(xs []string, dt DataTypes) (any, error) {
	v := MakeVector(dt, len(xs))
	for ind, x := range xs {
		val, ok := toDataType(x, dt)
		if !ok {
			return nil, fmt.Errorf("cannot convert %q to %s", x, dt)
		}

		assign(v, val, ind)
	}

	return v.AsAny(), nil
}
