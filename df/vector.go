package df

import (
	"fmt"
	"math"
	"time"
)

// Vector is a typed slice: []float64, []int, []string or []time.Time
type Vector struct {
	dt DataTypes

	data any
}

func NewVector(data any, dt DataTypes) (*Vector, error) {
	if WhatAmI(data) == dt {
		switch data.(type) {
		case []float64, []int, []string, []time.Time:
			return &Vector{dt: dt, data: data}, nil
		}
	}

	if xs, ok := data.([]string); ok {
		x, e := toSlc(xs, dt)
		if e != nil {
			return nil, e
		}

		return &Vector{dt: dt, data: x}, nil
	}

	return nil, fmt.Errorf("cannot make vector of type %s from %T", dt, data)
}

func MakeVector(dt DataTypes, n int) *Vector {
	switch dt {
	case DTfloat:
		return &Vector{dt: dt, data: make([]float64, n)}
	case DTint:
		return &Vector{dt: dt, data: make([]int, n)}
	case DTstring:
		return &Vector{dt: dt, data: make([]string, n)}
	case DTdate:
		return &Vector{dt: dt, data: make([]time.Time, n)}
	default:
		panic(fmt.Errorf("cannot make Vector with data type %s", dt))
	}
}

func (v *Vector) VectorType() DataTypes {
	return v.dt
}

func (v *Vector) AsAny() any {
	return v.data
}

// AsFloat returns the data as []float64.  For DTfloat the underlying slice is returned.
func (v *Vector) AsFloat() ([]float64, error) {
	switch v.dt {
	case DTfloat:
		return v.data.([]float64), nil
	case DTint:
		xOut := make([]float64, v.Len())
		for ind, xx := range v.data.([]int) {
			xOut[ind] = float64(xx)
		}

		return xOut, nil
	case DTstring:
		xOut := make([]float64, v.Len())
		for ind, xx := range v.data.([]string) {
			f, ok := ToFloat(xx)
			if !ok {
				return nil, fmt.Errorf("cannot convert %q to float", xx)
			}

			xOut[ind] = f.(float64)
		}

		return xOut, nil
	}

	return nil, fmt.Errorf("cannot convert %s to float", v.dt)
}

// AsInt returns the data as []int.  Floats must be whole numbers.
func (v *Vector) AsInt() ([]int, error) {
	if v.dt == DTint {
		return v.data.([]int), nil
	}

	xOut := make([]int, v.Len())
	for ind := 0; ind < v.Len(); ind++ {
		x, ok := ToInt(v.Element(ind))
		if !ok {
			return nil, fmt.Errorf("cannot convert %v to int", v.Element(ind))
		}

		xOut[ind] = x.(int)
	}

	return xOut, nil
}

func (v *Vector) AsString() []string {
	if v.dt == DTstring {
		return v.data.([]string)
	}

	xOut := make([]string, v.Len())
	for ind := 0; ind < v.Len(); ind++ {
		x, _ := ToString(v.Element(ind))
		xOut[ind] = x.(string)
	}

	return xOut
}

func (v *Vector) AsDate() ([]time.Time, error) {
	if v.dt == DTdate {
		return v.data.([]time.Time), nil
	}

	xOut := make([]time.Time, v.Len())
	for ind := 0; ind < v.Len(); ind++ {
		x, ok := ToDate(v.Element(ind))
		if !ok {
			return nil, fmt.Errorf("cannot convert %v to date", v.Element(ind))
		}

		xOut[ind] = x.(time.Time)
	}

	return xOut, nil
}

func (v *Vector) Element(indx int) any {
	if indx < 0 || indx >= v.Len() {
		panic(fmt.Errorf("index out of range"))
	}

	switch v.dt {
	case DTfloat:
		return v.data.([]float64)[indx]
	case DTint:
		return v.data.([]int)[indx]
	case DTstring:
		return v.data.([]string)[indx]
	case DTdate:
		return v.data.([]time.Time)[indx]
	default:
		panic(fmt.Errorf("error in Element"))
	}
}

// ElementFloat returns element indx as a float; values that cannot convert are missing.
func (v *Vector) ElementFloat(indx int) float64 {
	if v.dt == DTfloat {
		return v.data.([]float64)[indx]
	}

	if val, ok := ToFloat(v.Element(indx)); ok {
		return val.(float64)
	}

	return math.NaN()
}

// IsMissing is true if element indx is a missing float
func (v *Vector) IsMissing(indx int) bool {
	return v.dt == DTfloat && math.IsNaN(v.data.([]float64)[indx])
}

func (v *Vector) Len() int {
	switch v.dt {
	case DTfloat:
		return len(v.data.([]float64))
	case DTint:
		return len(v.data.([]int))
	case DTstring:
		return len(v.data.([]string))
	case DTdate:
		return len(v.data.([]time.Time))
	default:
		panic(fmt.Errorf("unexpected error in Vector.Len"))
	}
}

// Less compares elements i and j. Missing floats sort last.
func (v *Vector) Less(i, j int) bool {
	switch v.dt {
	case DTfloat:
		x, y := v.data.([]float64)[i], v.data.([]float64)[j]
		if math.IsNaN(x) {
			return false
		}

		return math.IsNaN(y) || x < y
	case DTint:
		return v.data.([]int)[i] < v.data.([]int)[j]
	case DTstring:
		return v.data.([]string)[i] < v.data.([]string)[j]
	case DTdate:
		return v.data.([]time.Time)[i].Before(v.data.([]time.Time)[j])
	default:
		panic(fmt.Errorf("unexpected error in vector.Less"))
	}
}

// AppendVector returns a new vector with the elements of vAdd after those of v.  int and float vectors may be mixed,
// the result is float.
func (v *Vector) AppendVector(vAdd *Vector) (*Vector, error) {
	if v.dt != vAdd.dt {
		if (v.dt == DTint || v.dt == DTfloat) && (vAdd.dt == DTint || vAdd.dt == DTfloat) {
			x, _ := v.AsFloat()
			y, _ := vAdd.AsFloat()
			out := make([]float64, 0, len(x)+len(y))

			return &Vector{dt: DTfloat, data: append(append(out, x...), y...)}, nil
		}

		return nil, fmt.Errorf("appending different vector types: %s and %s", v.dt, vAdd.dt)
	}

	out := v.Copy()
	switch v.dt {
	case DTfloat:
		out.data = append(out.data.([]float64), vAdd.data.([]float64)...)
	case DTint:
		out.data = append(out.data.([]int), vAdd.data.([]int)...)
	case DTstring:
		out.data = append(out.data.([]string), vAdd.data.([]string)...)
	case DTdate:
		out.data = append(out.data.([]time.Time), vAdd.data.([]time.Time)...)
	}

	return out, nil
}

func (v *Vector) Copy() *Vector {
	vCopy := &Vector{dt: v.dt}
	switch v.dt {
	case DTfloat:
		x := make([]float64, v.Len())
		copy(x, v.data.([]float64))
		vCopy.data = x
	case DTint:
		x := make([]int, v.Len())
		copy(x, v.data.([]int))
		vCopy.data = x
	case DTstring:
		x := make([]string, v.Len())
		copy(x, v.data.([]string))
		vCopy.data = x
	case DTdate:
		x := make([]time.Time, v.Len())
		copy(x, v.data.([]time.Time))
		vCopy.data = x
	default:
		panic(fmt.Errorf("unexpected error in Vector.Copy"))
	}

	return vCopy
}

// Rows returns a new vector made of the elements at rows, in that order
func (v *Vector) Rows(rows []int) *Vector {
	out := MakeVector(v.dt, len(rows))
	for ind, r := range rows {
		assign(out, v.Element(r), ind)
	}

	return out
}

// Coerce returns a copy of v converted to type to, or nil if some element won't convert
func (v *Vector) Coerce(to DataTypes) *Vector {
	xOut := MakeVector(to, v.Len())
	for ind := 0; ind < v.Len(); ind++ {
		vOut, ok := toDataType(v.Element(ind), to)
		if !ok {
			return nil
		}

		assign(xOut, vOut, ind)
	}

	return xOut
}

// assign sets element indx of v to val, val must already be of v's type
func assign(v *Vector, val any, indx int) {
	switch x := val.(type) {
	case float64:
		v.data.([]float64)[indx] = x
	case int:
		v.data.([]int)[indx] = x
	case string:
		v.data.([]string)[indx] = x
	case time.Time:
		v.data.([]time.Time)[indx] = x
	default:
		panic(fmt.Errorf("unsupported data type in assign"))
	}
}
