package df

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"
)

// All code interacting with files is here

const (
	Sep         = ','
	EOL         = '\n'
	StringDelim = '"'
	DateFormat  = "2006-01-02"
	FloatFormat = "%g"
	Header      = true
)

type Files struct {
	FieldNames  []string
	FieldTypes  []DataTypes
	EOL         byte
	Sep         byte
	StringDelim byte
	DateFormat  string
	FloatFormat string
	Header      bool

	file     *os.File
	fileName string
}

type FileOpt func(f *Files) error

func FileSep(sep byte) FileOpt {
	return func(f *Files) error {
		if sep == f.StringDelim || sep == f.EOL {
			return fmt.Errorf("illegal separator %q", sep)
		}

		f.Sep = sep
		return nil
	}
}

func FileHeader(header bool) FileOpt {
	return func(f *Files) error {
		f.Header = header
		return nil
	}
}

func FileFieldNames(names []string) FileOpt {
	return func(f *Files) error {
		f.FieldNames = names
		return nil
	}
}

func FileFieldTypes(types []DataTypes) FileOpt {
	return func(f *Files) error {
		f.FieldTypes = types
		return nil
	}
}

func FileFloatFormat(format string) FileOpt {
	return func(f *Files) error {
		f.FloatFormat = format
		return nil
	}
}

func FileDateFormat(format string) FileOpt {
	return func(f *Files) error {
		f.DateFormat = format
		return nil
	}
}

func NewFiles(opts ...FileOpt) (*Files, error) {
	f := &Files{
		EOL:         byte(EOL),
		Sep:         byte(Sep),
		StringDelim: byte(StringDelim),
		DateFormat:  DateFormat,
		FloatFormat: FloatFormat,
		Header:      Header,
	}

	for _, opt := range opts {
		if e := opt(f); e != nil {
			return nil, e
		}
	}

	return f, nil
}

func (f *Files) Open(fileName string) error {
	var e error
	f.fileName = fileName
	f.file, e = os.Open(fileName)

	return e
}

func (f *Files) Create(fileName string) error {
	var e error
	f.fileName = fileName
	f.file, e = os.Create(fileName)

	return e
}

func (f *Files) FileName() string {
	return f.fileName
}

func (f *Files) Close() error {
	if f.file != nil {
		e := f.file.Close()
		f.file = nil
		return e
	}

	return fmt.Errorf("no open files")
}

// Load reads fileName into a DF.  If FieldTypes is not set, each column gets the narrowest of int, float, string
// that all its values convert to.  Empty cells in numeric columns are missing.
func (f *Files) Load(fileName string) (df *DF, err error) {
	if e := f.Open(fileName); e != nil {
		return nil, e
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()

	return f.read(f.file)
}

func (f *Files) read(rdr io.Reader) (*DF, error) {
	cr := csv.NewReader(rdr)
	cr.Comma = rune(f.Sep)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	names := f.FieldNames
	if f.Header {
		head, e := cr.Read()
		if e != nil {
			return nil, fmt.Errorf("reading header of %s: %w", f.fileName, e)
		}

		// excel sometimes leaves a BOM
		if len(head) > 0 {
			head[0] = strings.TrimPrefix(head[0], "\ufeff")
		}

		if names == nil {
			names = head
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("no field names for %s", f.fileName)
	}

	raw := make([][]string, len(names))
	for line := 1; ; line++ {
		row, e := cr.Read()
		if e == io.EOF {
			break
		}

		if e != nil {
			return nil, fmt.Errorf("%s line %d: %w", f.fileName, line, e)
		}

		if len(row) != len(names) {
			return nil, fmt.Errorf("%s line %d: expected %d fields, got %d", f.fileName, line, len(names), len(row))
		}

		for ind, x := range row {
			raw[ind] = append(raw[ind], x)
		}
	}

	if f.FieldTypes != nil && len(f.FieldTypes) != len(names) {
		return nil, fmt.Errorf("have %d field types for %d fields", len(f.FieldTypes), len(names))
	}

	var cols []*Col
	for ind, name := range names {
		dt := DTunknown
		if f.FieldTypes != nil {
			dt = f.FieldTypes[ind]
		}

		if dt == DTunknown {
			dt = bestType(raw[ind])
		}

		if raw[ind] == nil {
			raw[ind] = []string{}
		}

		col, e := NewCol(raw[ind], dt, ColName(name))
		if e != nil {
			return nil, fmt.Errorf("%s field %s: %w", f.fileName, name, e)
		}

		cols = append(cols, col)
	}

	return NewDF(cols...)
}

// Save writes df to fileName
func (f *Files) Save(fileName string, df *DF) (err error) {
	if e := f.Create(fileName); e != nil {
		return e
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()

	f.FieldNames = df.ColumnNames()
	if e := f.WriteHeader(); e != nil {
		return e
	}

	row := make([]any, df.ColumnCount())
	for r := 0; r < df.RowCount(); r++ {
		ind := 0
		for c := df.Next(true); c != nil; c = df.Next(false) {
			row[ind] = c.Element(r)
			ind++
		}

		if e := f.WriteLine(row); e != nil {
			return e
		}
	}

	return nil
}

func (f *Files) WriteLine(v []any) error {
	var line []byte
	for ind := 0; ind < len(v); ind++ {
		var lx []byte
		switch d := v[ind].(type) {
		case float64:
			if !math.IsNaN(d) {
				lx = []byte(fmt.Sprintf(f.FloatFormat, d))
			}
		case int:
			lx = []byte(fmt.Sprintf("%v", d))
		case time.Time:
			lx = []byte(d.Format(f.DateFormat))
		case string:
			lx = []byte(f.quote(d))
		default:
			lx = []byte("#err#")
		}
		line = append(line, lx...)
		if ind < len(v)-1 {
			line = append(line, f.Sep)
		}
	}
	if _, e := f.file.Write(line); e != nil {
		return e
	}
	_, e := f.file.Write([]byte{f.EOL})

	return e
}

func (f *Files) WriteHeader() error {
	if !f.Header {
		return nil
	}

	if f.FieldNames == nil {
		return fmt.Errorf("field names not set in *Files")
	}

	var flds []string
	for _, fn := range f.FieldNames {
		flds = append(flds, f.quote(fn))
	}

	_, e := f.file.WriteString(strings.Join(flds, string(rune(f.Sep))) + string(rune(f.EOL)))

	return e
}

// quote delimits s if it contains a separator, delimiter or EOL
func (f *Files) quote(s string) string {
	if !strings.ContainsAny(s, string([]byte{f.Sep, f.StringDelim, f.EOL})) {
		return s
	}

	delim := string(rune(f.StringDelim))
	return delim + strings.ReplaceAll(s, delim, delim+delim) + delim
}
