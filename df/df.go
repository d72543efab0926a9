package df

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DF is an in-memory table: an ordered list of equal-length named columns
type DF struct {
	head    *columnList
	current *columnList
}

type columnList struct {
	col *Col

	prior *columnList
	next  *columnList
}

func NewDF(cols ...*Col) (*DF, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns in NewDF")
	}

	df := &DF{}
	for _, col := range cols {
		if e := df.AppendColumn(col, false); e != nil {
			return nil, e
		}
	}

	return df, nil
}

///////////// DF methods

// Next iterates through the columns.  Next(true) returns the first column.
func (df *DF) Next(reset bool) *Col {
	if reset || df.current == nil {
		df.current = df.head
		if df.current == nil {
			return nil
		}

		return df.current.col
	}

	if df.current.next == nil {
		df.current = nil
		return nil
	}

	df.current = df.current.next
	return df.current.col
}

func (df *DF) RowCount() int {
	if df.head == nil {
		return 0
	}

	return df.head.col.Len()
}

func (df *DF) ColumnCount() int {
	cols := 0
	for c := df.head; c != nil; c = c.next {
		cols++
	}

	return cols
}

func (df *DF) ColumnNames() []string {
	var names []string

	for h := df.head; h != nil; h = h.next {
		names = append(names, h.col.Name())
	}

	return names
}

// Column returns the column colName, or nil if there isn't one
func (df *DF) Column(colName string) *Col {
	for h := df.head; h != nil; h = h.next {
		if h.col.Name() == colName {
			return h.col
		}
	}

	return nil
}

func (df *DF) HasColumns(colNames ...string) bool {
	for _, cn := range colNames {
		if df.Column(cn) == nil {
			return false
		}
	}

	return true
}

// Float returns column colName as []float64
func (df *DF) Float(colName string) ([]float64, error) {
	col := df.Column(colName)
	if col == nil {
		return nil, fmt.Errorf("column %s not found", colName)
	}

	return col.AsFloat()
}

// Int returns column colName as []int
func (df *DF) Int(colName string) ([]int, error) {
	col := df.Column(colName)
	if col == nil {
		return nil, fmt.Errorf("column %s not found", colName)
	}

	return col.AsInt()
}

// AppendColumn adds col as the last column.  If replace is true, an existing column of the same name is dropped first.
func (df *DF) AppendColumn(col *Col, replace bool) error {
	if col == nil || col.Name() == "" {
		return fmt.Errorf("cannot append unnamed column")
	}

	if df.Column(col.Name()) != nil {
		if !replace {
			return fmt.Errorf("duplicate column name: %s", col.Name())
		}

		if e := df.DropColumns(col.Name()); e != nil {
			return e
		}
	}

	if df.head != nil && col.Len() != df.RowCount() {
		return fmt.Errorf("length mismatch: DF - %d, append col - %d", df.RowCount(), col.Len())
	}

	node := &columnList{col: col}
	if df.head == nil {
		df.head = node
		return nil
	}

	var tail *columnList
	for tail = df.head; tail.next != nil; tail = tail.next {
	}

	node.prior = tail
	tail.next = node

	return nil
}

func (df *DF) node(colName string) (node *columnList, err error) {
	for h := df.head; h != nil; h = h.next {
		if h.col.Name() == colName {
			return h, nil
		}
	}

	return nil, fmt.Errorf("column %s not found", colName)
}

func (df *DF) DropColumns(colNames ...string) error {
	for _, cName := range colNames {
		var (
			node *columnList
			e    error
		)

		if node, e = df.node(cName); e != nil {
			return e
		}

		df.current = nil
		if node == df.head {
			df.head = df.head.next
			if df.head != nil {
				df.head.prior = nil
			}

			continue
		}

		node.prior.next = node.next
		if node.next != nil {
			node.next.prior = node.prior
		}
	}

	return nil
}

// KeepColumns returns a new DF made of copies of the named columns, in the order given
func (df *DF) KeepColumns(colNames ...string) (*DF, error) {
	var cols []*Col

	for _, cn := range colNames {
		col := df.Column(cn)
		if col == nil {
			return nil, fmt.Errorf("column %s not found", cn)
		}

		cols = append(cols, col.Copy())
	}

	return NewDF(cols...)
}

func (df *DF) Copy() *DF {
	out := &DF{}
	for h := df.head; h != nil; h = h.next {
		// can't fail: names and lengths already checked
		_ = out.AppendColumn(h.col.Copy(), false)
	}

	return out
}

func (df *DF) Rename(oldName, newName string) error {
	col := df.Column(oldName)
	if col == nil {
		return fmt.Errorf("column %s not found", oldName)
	}

	if oldName != newName && df.Column(newName) != nil {
		return fmt.Errorf("cannot rename %s: column %s exists", oldName, newName)
	}

	return col.Rename(newName)
}

// Rows returns a new DF with the rows in the order given by rows
func (df *DF) Rows(rows []int) (*DF, error) {
	n := df.RowCount()
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, fmt.Errorf("row %d out of range", r)
		}
	}

	out := &DF{}
	for h := df.head; h != nil; h = h.next {
		col := &Col{Vector: h.col.Rows(rows), name: h.col.Name()}
		if e := out.AppendColumn(col, false); e != nil {
			return nil, e
		}
	}

	return out, nil
}

// Where returns the rows for which keep is true
func (df *DF) Where(keep []bool) (*DF, error) {
	if len(keep) != df.RowCount() {
		return nil, fmt.Errorf("Where: need %d indicators, got %d", df.RowCount(), len(keep))
	}

	var rows []int
	for ind, k := range keep {
		if k {
			rows = append(rows, ind)
		}
	}

	return df.Rows(rows)
}

// Sort sorts the rows in place by the key columns only.  The sort is stable so rows with equal keys
// keep their relative order.
func (df *DF) Sort(ascending bool, keys ...string) error {
	var by []*Col
	for _, k := range keys {
		col := df.Column(k)
		if col == nil {
			return fmt.Errorf("sort key %s not found", k)
		}

		by = append(by, col)
	}

	if len(by) == 0 {
		return fmt.Errorf("no sort keys")
	}

	perm := make([]int, df.RowCount())
	for ind := range perm {
		perm[ind] = ind
	}

	sort.SliceStable(perm, func(i, j int) bool {
		a, b := perm[i], perm[j]
		for _, col := range by {
			if col.Less(a, b) {
				return ascending
			}

			if col.Less(b, a) {
				return !ascending
			}
		}

		return false
	})

	for h := df.head; h != nil; h = h.next {
		h.col.Vector = h.col.Rows(perm)
	}

	return nil
}

// AppendRows stacks df2 below df.  Columns are matched by name; both must have the same set of columns.
func (df *DF) AppendRows(df2 *DF) (*DF, error) {
	if df.ColumnCount() != df2.ColumnCount() {
		return nil, fmt.Errorf("AppendRows: column counts differ: %d and %d", df.ColumnCount(), df2.ColumnCount())
	}

	out := &DF{}
	for h := df.head; h != nil; h = h.next {
		c2 := df2.Column(h.col.Name())
		if c2 == nil {
			return nil, fmt.Errorf("AppendRows: column %s missing from second DF", h.col.Name())
		}

		v, e := h.col.AppendVector(c2.Vector)
		if e != nil {
			return nil, fmt.Errorf("AppendRows: column %s: %w", h.col.Name(), e)
		}

		if e := out.AppendColumn(&Col{Vector: v, name: h.col.Name()}, false); e != nil {
			return nil, e
		}
	}

	return out, nil
}

// UniqueKey checks that colName is an int column with no repeated values
func (df *DF) UniqueKey(colName string) error {
	col := df.Column(colName)
	if col == nil {
		return fmt.Errorf("key %s not found", colName)
	}

	if col.DataType() != DTint {
		return fmt.Errorf("key %s must be DTint, is %s", colName, col.DataType())
	}

	seen := make(map[int]bool)
	for _, k := range col.AsAny().([]int) {
		if seen[k] {
			return fmt.Errorf("key %s has duplicate value %d", colName, k)
		}

		seen[k] = true
	}

	return nil
}

// IntKey returns a copy of df with colName cast to int.  Rows whose key is missing or not a whole number are dropped;
// dropped is the number of such rows.
func (df *DF) IntKey(colName string) (out *DF, dropped int, err error) {
	col := df.Column(colName)
	if col == nil {
		return nil, 0, fmt.Errorf("key %s not found", colName)
	}

	keep := make([]bool, df.RowCount())
	keys := make([]int, 0, df.RowCount())
	for ind := 0; ind < col.Len(); ind++ {
		if k, ok := ToInt(col.Element(ind)); ok {
			keep[ind] = true
			keys = append(keys, k.(int))
			continue
		}

		dropped++
	}

	if out, err = df.Where(keep); err != nil {
		return nil, 0, err
	}

	keyCol, _ := NewCol(keys, DTint, ColName(colName))
	if e := out.Replace(keyCol); e != nil {
		return nil, 0, e
	}

	return out, dropped, nil
}

// Replace swaps in col for the column of the same name, keeping its position
func (df *DF) Replace(col *Col) error {
	node, e := df.node(col.Name())
	if e != nil {
		return e
	}

	if col.Len() != df.RowCount() {
		return fmt.Errorf("length mismatch replacing %s", col.Name())
	}

	node.col = col

	return nil
}

// Join joins right to df on the int column on.  The key must be unique in right.  If left is false, only rows of df
// with a match are kept; otherwise unmatched rows get missing values (int columns of right become float).  Columns
// of right that duplicate names in df get the suffix "DUP".
func (df *DF) Join(right *DF, on string, left bool) (*DF, error) {
	var (
		lKeys, rKeys []int
		e            error
	)
	if lKeys, e = df.Int(on); e != nil {
		return nil, e
	}

	if rKeys, e = right.Int(on); e != nil {
		return nil, e
	}

	rPos := make(map[int]int)
	for ind, k := range rKeys {
		if _, dup := rPos[k]; dup {
			return nil, fmt.Errorf("join key %s repeats value %d in right DF", on, k)
		}

		rPos[k] = ind
	}

	var lRows, rRows []int
	for ind, k := range lKeys {
		rInd, ok := rPos[k]
		if !ok && !left {
			continue
		}

		if !ok {
			rInd = -1
		}

		lRows = append(lRows, ind)
		rRows = append(rRows, rInd)
	}

	var out *DF
	if out, e = df.Rows(lRows); e != nil {
		return nil, e
	}

	for h := right.head; h != nil; h = h.next {
		if h.col.Name() == on {
			continue
		}

		v := matchRows(h.col.Vector, rRows)
		name := h.col.Name()
		if out.Column(name) != nil {
			name += "DUP"
		}

		if ex := out.AppendColumn(&Col{Vector: v, name: name}, false); ex != nil {
			return nil, ex
		}
	}

	return out, nil
}

// matchRows pulls rows from v; a row of -1 is missing
func matchRows(v *Vector, rows []int) *Vector {
	missing := false
	for _, r := range rows {
		if r < 0 {
			missing = true
			break
		}
	}

	if !missing {
		return v.Rows(rows)
	}

	switch v.VectorType() {
	case DTint, DTfloat:
		x, _ := v.AsFloat()
		out := make([]float64, len(rows))
		for ind, r := range rows {
			out[ind] = math.NaN()
			if r >= 0 {
				out[ind] = x[r]
			}
		}

		return &Vector{dt: DTfloat, data: out}
	default:
		out := MakeVector(v.VectorType(), len(rows))
		for ind, r := range rows {
			if r >= 0 {
				assign(out, v.Element(r), ind)
			}
		}

		return out
	}
}

func (df *DF) String() string {
	const maxRows = 5

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("rows: %d, columns: %d\n", df.RowCount(), df.ColumnCount()))
	for h := df.head; h != nil; h = h.next {
		n := h.col.Len()
		if n > maxRows {
			n = maxRows
		}

		var vals []string
		for ind := 0; ind < n; ind++ {
			s, _ := ToString(h.col.Element(ind))
			vals = append(vals, s.(string))
		}

		sb.WriteString(fmt.Sprintf("%s (%s): %s\n", h.col.Name(), h.col.DataType(), strings.Join(vals, ", ")))
	}

	return sb.String()
}

/////////// helpers

func has[C comparable](needle C, haystack []C) bool {
	return position(needle, haystack) >= 0
}

func position[C comparable](needle C, haystack []C) int {
	for ind, straw := range haystack {
		if needle == straw {
			return ind
		}
	}

	return -1
}
