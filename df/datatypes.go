package df

import (
	"fmt"
	"math"
	"time"
)

// DataTypes are the types of data that the package supports
type DataTypes uint8

// values of DataTypes
const (
	DTunknown DataTypes = 0 + iota
	DTstring
	DTfloat
	DTint
	DTdate
)

// max value of DataTypes type
const MaxDT = DTdate

var dtNames = []string{"DTunknown", "DTstring", "DTfloat", "DTint", "DTdate"}

func (dt DataTypes) String() string {
	if dt > MaxDT {
		return fmt.Sprintf("DataTypes(%d)", dt)
	}

	return dtNames[dt]
}

func DTFromString(nm string) DataTypes {
	pos := position(nm, dtNames)
	if pos < 0 {
		return DTunknown
	}

	return DataTypes(uint8(pos))
}

// WhatAmI returns the DataTypes of val, which may be a scalar or a slice.
func WhatAmI(val any) DataTypes {
	switch val.(type) {
	case float64, []float64:
		return DTfloat
	case int, []int:
		return DTint
	case string, []string:
		return DTstring
	case time.Time, []time.Time:
		return DTdate
	default:
		return DTunknown
	}
}

// Missing is the value used for an absent float observation.
func Missing() float64 {
	return math.NaN()
}

func IsMissing(x float64) bool {
	return math.IsNaN(x)
}
