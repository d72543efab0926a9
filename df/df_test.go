package df

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func makeDF(t *testing.T) *DF {
	fips, e := NewCol([]int{3, 1, 2, 1}, DTint, ColName("FIPS"))
	assert.Nil(t, e)
	x, e := NewCol([]float64{30, 10, 20, 11}, DTfloat, ColName("x"))
	assert.Nil(t, e)
	s, e := NewCol([]string{"c", "a", "b", "a2"}, DTstring, ColName("s"))
	assert.Nil(t, e)

	df, e := NewDF(fips, x, s)
	assert.Nil(t, e)

	return df
}

func TestNewVector(t *testing.T) {
	v, e := NewVector([]string{"1", "2", "3"}, DTint)
	assert.Nil(t, e)
	assert.Equal(t, []int{1, 2, 3}, v.AsAny())

	v, e = NewVector([]string{"1.5", "", "NA"}, DTfloat)
	assert.Nil(t, e)
	x, _ := v.AsFloat()
	assert.Equal(t, 1.5, x[0])
	assert.True(t, math.IsNaN(x[1]))
	assert.True(t, v.IsMissing(2))

	_, e = NewVector([]string{"a"}, DTint)
	assert.NotNil(t, e)

	_, e = NewVector([]float64{1}, DTint)
	assert.NotNil(t, e)
}

func TestVector_AsInt(t *testing.T) {
	v, _ := NewVector([]float64{1001, 2}, DTfloat)
	xi, e := v.AsInt()
	assert.Nil(t, e)
	assert.Equal(t, []int{1001, 2}, xi)

	v, _ = NewVector([]float64{1.5}, DTfloat)
	_, e = v.AsInt()
	assert.NotNil(t, e)
}

func TestVector_AppendVector(t *testing.T) {
	v1, _ := NewVector([]int{1, 2}, DTint)
	v2, _ := NewVector([]float64{3.5}, DTfloat)
	v3, e := v1.AppendVector(v2)
	assert.Nil(t, e)
	assert.Equal(t, DTfloat, v3.VectorType())
	assert.Equal(t, []float64{1, 2, 3.5}, v3.AsAny())

	v4, _ := NewVector([]string{"a"}, DTstring)
	_, e = v1.AppendVector(v4)
	assert.NotNil(t, e)
}

func TestCol_Name(t *testing.T) {
	_, e := NewCol([]int{1}, DTint, ColName("Total households!!Average household size"))
	assert.Nil(t, e)

	_, e = NewCol([]int{1}, DTint, ColName("1/22/20"))
	assert.Nil(t, e)

	_, e = NewCol([]int{1}, DTint, ColName(""))
	assert.NotNil(t, e)

	_, e = NewCol([]int{1}, DTint, ColName("a`b"))
	assert.NotNil(t, e)
}

func TestDF_Column(t *testing.T) {
	df := makeDF(t)
	assert.Equal(t, 4, df.RowCount())
	assert.Equal(t, 3, df.ColumnCount())
	assert.Equal(t, []string{"FIPS", "x", "s"}, df.ColumnNames())
	assert.Nil(t, df.Column("nope"))
	assert.True(t, df.HasColumns("x", "s"))
	assert.False(t, df.HasColumns("x", "nope"))

	x, e := df.Float("FIPS")
	assert.Nil(t, e)
	assert.Equal(t, []float64{3, 1, 2, 1}, x)
}

func TestDF_AppendColumn(t *testing.T) {
	df := makeDF(t)
	c, _ := NewCol([]int{1, 2}, DTint, ColName("short"))
	assert.NotNil(t, df.AppendColumn(c, false))

	c, _ = NewCol([]int{1, 2, 3, 4}, DTint, ColName("x"))
	assert.NotNil(t, df.AppendColumn(c, false))
	assert.Nil(t, df.AppendColumn(c, true))
	assert.Equal(t, []string{"FIPS", "s", "x"}, df.ColumnNames())
	assert.Equal(t, DTint, df.Column("x").DataType())
}

func TestDF_DropKeep(t *testing.T) {
	df := makeDF(t)
	kept, e := df.KeepColumns("s", "FIPS")
	assert.Nil(t, e)
	assert.Equal(t, []string{"s", "FIPS"}, kept.ColumnNames())

	assert.Nil(t, df.DropColumns("FIPS"))
	assert.Equal(t, []string{"x", "s"}, df.ColumnNames())
	assert.NotNil(t, df.DropColumns("FIPS"))

	// the copy is independent
	assert.Equal(t, 3, kept.Column("FIPS").Element(0))
}

func TestDF_Sort(t *testing.T) {
	df := makeDF(t)
	assert.Nil(t, df.Sort(true, "FIPS"))

	fips, _ := df.Int("FIPS")
	assert.Equal(t, []int{1, 1, 2, 3}, fips)

	// stable: ties keep their original order, other columns don't break ties
	assert.Equal(t, []string{"a", "a2", "b", "c"}, df.Column("s").AsString())

	assert.Nil(t, df.Sort(false, "x"))
	x, _ := df.Float("x")
	assert.Equal(t, []float64{30, 20, 11, 10}, x)

	assert.NotNil(t, df.Sort(true, "nope"))
}

func TestDF_Sort_Missing(t *testing.T) {
	c, _ := NewCol([]float64{2, math.NaN(), 1}, DTfloat, ColName("x"))
	df, _ := NewDF(c)
	assert.Nil(t, df.Sort(true, "x"))
	x, _ := df.Float("x")
	assert.Equal(t, 1.0, x[0])
	assert.Equal(t, 2.0, x[1])
	assert.True(t, math.IsNaN(x[2]))
}

func TestDF_Where(t *testing.T) {
	df := makeDF(t)
	out, e := df.Where([]bool{true, false, true, false})
	assert.Nil(t, e)
	assert.Equal(t, []string{"c", "b"}, out.Column("s").AsString())

	_, e = df.Where([]bool{true})
	assert.NotNil(t, e)
}

func TestDF_AppendRows(t *testing.T) {
	df := makeDF(t)
	df2 := df.Copy()
	out, e := df.AppendRows(df2)
	assert.Nil(t, e)
	assert.Equal(t, 8, out.RowCount())
	assert.Equal(t, 4, df.RowCount())

	df3, _ := df.KeepColumns("FIPS", "x")
	_, e = df.AppendRows(df3)
	assert.NotNil(t, e)
}

func TestDF_UniqueKey(t *testing.T) {
	df := makeDF(t)
	assert.NotNil(t, df.UniqueKey("FIPS"))
	assert.NotNil(t, df.UniqueKey("x"))

	out, e := df.Where([]bool{true, true, true, false})
	assert.Nil(t, e)
	assert.Nil(t, out.UniqueKey("FIPS"))
}

func TestDF_IntKey(t *testing.T) {
	k, _ := NewCol([]string{"01001", "", "1003.0", "abc"}, DTstring, ColName("FIPS"))
	v, _ := NewCol([]float64{1, 2, 3, 4}, DTfloat, ColName("v"))
	df, _ := NewDF(k, v)

	out, dropped, e := df.IntKey("FIPS")
	assert.Nil(t, e)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []string{"FIPS", "v"}, out.ColumnNames())
	fips, _ := out.Int("FIPS")
	assert.Equal(t, []int{1001, 1003}, fips)
	vv, _ := out.Float("v")
	assert.Equal(t, []float64{1, 3}, vv)
}

func TestDF_Join(t *testing.T) {
	l := makeDF(t)
	l, _ = l.Where([]bool{true, true, true, false})

	rk, _ := NewCol([]int{1, 3, 9}, DTint, ColName("FIPS"))
	rv, _ := NewCol([]int{100, 300, 900}, DTint, ColName("beds"))
	rx, _ := NewCol([]string{"r1", "r3", "r9"}, DTstring, ColName("x"))
	r, _ := NewDF(rk, rv, rx)

	inner, e := l.Join(r, "FIPS", false)
	assert.Nil(t, e)
	assert.Equal(t, 2, inner.RowCount())
	assert.Equal(t, []string{"FIPS", "x", "s", "beds", "xDUP"}, inner.ColumnNames())
	beds, _ := inner.Int("beds")
	assert.Equal(t, []int{300, 100}, beds)

	left, e := l.Join(r, "FIPS", true)
	assert.Nil(t, e)
	assert.Equal(t, 3, left.RowCount())
	assert.Equal(t, DTfloat, left.Column("beds").DataType())
	lb, _ := left.Float("beds")
	assert.True(t, math.IsNaN(lb[2]))
	assert.Equal(t, "", left.Column("xDUP").Element(2))

	dup, _ := NewDF(rk.Copy(), rv.Copy())
	dup, _ = dup.AppendRows(dup)
	_, e = l.Join(dup, "FIPS", false)
	assert.NotNil(t, e)
}

func TestDF_DateColumns(t *testing.T) {
	k, _ := NewCol([]int{1}, DTint, ColName("FIPS"))
	d1, _ := NewCol([]float64{1}, DTfloat, ColName("03-02-20"))
	d2, _ := NewCol([]float64{1}, DTfloat, ColName("1/22/20"))
	d3, _ := NewCol([]float64{1}, DTfloat, ColName("02-29-20"))
	d4, _ := NewCol([]float64{1}, DTfloat, ColName("03-01-20"))
	df, _ := NewDF(k, d1, d2, d3, d4)

	before := df.ColumnNames()
	got := df.DateColumnNames()
	assert.Equal(t, []string{"03-02-20", "02-29-20", "03-01-20"}, got)
	assert.Equal(t, before, df.ColumnNames())

	dts := df.DateColumns()
	assert.Equal(t, time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), dts[1])

	idx := df.DateIndex()
	assert.Equal(t, "03-01-20", idx[time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)])
	assert.Len(t, idx, 3)
}
