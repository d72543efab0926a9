package df

import (
	"fmt"
	"strings"
)

// Col is a named Vector
type Col struct {
	*Vector

	name string
}

type ColOpt func(c *Col) error

// ColName sets the name of a new column.
func ColName(name string) ColOpt {
	return func(c *Col) error {
		if c == nil {
			return fmt.Errorf("nil column to ColName")
		}

		if c.name != "" {
			return fmt.Errorf("column already named -- use Rename method")
		}

		if e := validName(name); e != nil {
			return e
		}

		c.name = name

		return nil
	}
}

// NewCol creates a column.  data is either a *Vector or a slice of a supported type.
func NewCol(data any, dt DataTypes, opts ...ColOpt) (*Col, error) {
	var col *Col
	if v, ok := data.(*Vector); ok {
		col = &Col{Vector: v}
	}

	if col == nil {
		var (
			v *Vector
			e error
		)
		if v, e = NewVector(data, dt); e != nil {
			return nil, e
		}

		col = &Col{Vector: v}
	}

	for _, opt := range opts {
		if e := opt(col); e != nil {
			return nil, e
		}
	}

	return col, nil
}

func (c *Col) Name() string {
	return c.name
}

func (c *Col) DataType() DataTypes {
	return c.VectorType()
}

func (c *Col) Rename(newName string) error {
	if e := validName(newName); e != nil {
		return e
	}

	c.name = newName

	return nil
}

func (c *Col) Copy() *Col {
	return &Col{Vector: c.Vector.Copy(), name: c.name}
}

func (c *Col) String() string {
	return fmt.Sprintf("column: %s\ntype: %s\nlength: %d", c.name, c.DataType(), c.Len())
}

func validName(name string) error {
	// source files carry names like "Total households!!Average household size" and "1/22/20"
	const illegal = "`\n\r" + `"`

	if name == "" || strings.ContainsAny(name, illegal) {
		return fmt.Errorf("invalid column name: %q", name)
	}

	return nil
}
