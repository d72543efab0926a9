package df

import (
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"strings"
	"time"
)

// All code interacting with a database is here

var (
	//go:embed skeletons/clickhouse/create.txt
	chCreate string
	//go:embed skeletons/postgres/create.txt
	pgCreate string

	//go:embed skeletons/clickhouse/types.txt
	chTypes string
	//go:embed skeletons/postgres/types.txt
	pgTypes string

	//go:embed skeletons/clickhouse/fields.txt
	chFields string
	//go:embed skeletons/postgres/fields.txt
	pgFields string

	//go:embed skeletons/clickhouse/dropIf.txt
	chDropIf string
	//go:embed skeletons/postgres/dropIf.txt
	pgDropIf string

	//go:embed skeletons/clickhouse/insert.txt
	chInsert string
	//go:embed skeletons/postgres/insert.txt
	pgInsert string
)

const (
	ch = "clickhouse"
	pg = "postgres"
)

// Dialect saves DFs to a ClickHouse or Postgres database
type Dialect struct {
	db      *sql.DB
	dialect string

	dtTypes []string
	dbTypes []string

	create string
	insert string
	dropIf string
	fields string

	bufSize int // in MB
}

// NewDialect returns a Dialect for "clickhouse" or "postgres".  db may be nil if only the SQL builders are used.
func NewDialect(dialect string, db *sql.DB) (*Dialect, error) {
	dialect = strings.ToLower(dialect)

	d := &Dialect{db: db, dialect: dialect, bufSize: 16}

	var types string
	switch d.dialect {
	case ch:
		d.create, d.fields, d.dropIf, d.insert = chCreate, chFields, chDropIf, chInsert
		types = chTypes
	case pg:
		d.create, d.fields, d.dropIf, d.insert = pgCreate, pgFields, pgDropIf, pgInsert
		types = pgTypes
	default:
		return nil, fmt.Errorf("no skeletons for database %s", dialect)
	}

	for _, lm := range strings.Split(types, "\n") {
		if strings.TrimSpace(lm) == "" {
			continue
		}

		t := strings.Split(lm, ",")
		if len(t) != 2 {
			return nil, fmt.Errorf("bad type line in %s skeleton: %s", dialect, lm)
		}

		if DTFromString(t[0]) == DTunknown {
			return nil, fmt.Errorf("unknown data type %s in NewDialect", t[0])
		}

		d.dtTypes = append(d.dtTypes, t[0])
		d.dbTypes = append(d.dbTypes, strings.TrimSpace(t[1]))
	}

	return d, nil
}

// ***************** Methods *****************

func (d *Dialect) BufSize() int {
	return d.bufSize
}

func (d *Dialect) SetBufSize(mb int) {
	d.bufSize = mb
}

func (d *Dialect) Close() error {
	if d.db == nil {
		return nil
	}

	return d.db.Close()
}

func (d *Dialect) DB() *sql.DB {
	return d.db
}

func (d *Dialect) DialectName() string {
	return d.dialect
}

// CreateSQL builds the statement(s) that create tableName for the columns of df.  orderBy defaults to the first column.
func (d *Dialect) CreateSQL(tableName, orderBy string, df *DF) (string, error) {
	if df == nil || df.ColumnCount() == 0 {
		return "", fmt.Errorf("no columns to create %s", tableName)
	}

	names := df.ColumnNames()
	if orderBy == "" {
		orderBy = names[0]
	}

	if df.Column(orderBy) == nil {
		return "", fmt.Errorf("order by column %s not in DF", orderBy)
	}

	var flds []string
	for c := df.Next(true); c != nil; c = df.Next(false) {
		dbType, e := d.dbtype(c.DataType())
		if e != nil {
			return "", e
		}

		field := strings.ReplaceAll(d.fields, "?Field", c.Name())
		field = strings.ReplaceAll(field, "?Type", dbType)
		flds = append(flds, "  "+field)
	}

	create := strings.ReplaceAll(d.create, "?TableName", tableName)
	create = strings.ReplaceAll(create, "?OrderBy", d.Identifier(orderBy))
	create = strings.ReplaceAll(create, "?IndexName", indexName(tableName))
	create = strings.Replace(create, "?fields", strings.Join(flds, ",\n"), 1)

	return create, nil
}

// InsertSQL builds INSERT statements for the rows of df, each no longer than the buffer size
func (d *Dialect) InsertSQL(tableName string, df *DF) []string {
	const (
		bSep   = byte(',')
		bOpen  = byte('(')
		bClose = byte(')')
	)

	var ids []string
	for _, n := range df.ColumnNames() {
		ids = append(ids, d.Identifier(n))
	}

	prefix := strings.Replace(d.insert, "?TableName", tableName, 1)
	prefix = strings.Replace(prefix, "?Fields", strings.Join(ids, ","), 1)

	var (
		out    []string
		buffer []byte
	)
	bsize := d.bufSize * 1024 * 1024

	for r := 0; r < df.RowCount(); r++ {
		if buffer != nil {
			buffer = append(buffer, bSep)
		}

		buffer = append(buffer, bOpen)
		for c := df.Next(true); c != nil; c = df.Next(false) {
			buffer = append(append(buffer, []byte(d.ToString(c.Element(r)))...), bSep)
		}

		buffer[len(buffer)-1] = bClose

		if bsize > 0 && len(buffer) >= bsize {
			out = append(out, prefix+string(buffer))
			buffer = nil
		}
	}

	if buffer != nil {
		out = append(out, prefix+string(buffer))
	}

	return out
}

// Save writes df to tableName, replacing the table if overwrite is true
func (d *Dialect) Save(tableName, orderBy string, overwrite bool, df *DF) error {
	if d.db == nil {
		return fmt.Errorf("no database connection for Save")
	}

	exists, e := d.Exists(tableName)
	if e != nil {
		return e
	}

	if exists && !overwrite {
		return fmt.Errorf("table %s exists", tableName)
	}

	if exists {
		if ex := d.DropTable(tableName); ex != nil {
			return ex
		}
	}

	create, e := d.CreateSQL(tableName, orderBy, df)
	if e != nil {
		return e
	}

	for _, stmt := range strings.Split(create, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		if _, ex := d.db.Exec(stmt); ex != nil {
			return fmt.Errorf("creating %s: %w", tableName, ex)
		}
	}

	for _, qry := range d.InsertSQL(tableName, df) {
		if _, ex := d.db.Exec(qry); ex != nil {
			return fmt.Errorf("inserting into %s: %w", tableName, ex)
		}
	}

	return nil
}

func (d *Dialect) DropTable(tableName string) error {
	qry := strings.ReplaceAll(d.dropIf, "?TableName", tableName)
	_, e := d.db.Exec(qry)

	return e
}

func (d *Dialect) Exists(tableName string) (bool, error) {
	var qry string
	switch d.dialect {
	case ch:
		qry = fmt.Sprintf("EXISTS TABLE %s", tableName)
	case pg:
		qry = fmt.Sprintf("SELECT to_regclass('%s') IS NOT NULL", tableName)
	}

	res, e := d.db.Query(qry)
	if e != nil {
		return false, e
	}
	defer func() { _ = res.Close() }()

	if !res.Next() {
		return false, fmt.Errorf("no result from %s", qry)
	}

	if d.dialect == ch {
		var exist uint8
		if ex := res.Scan(&exist); ex != nil {
			return false, ex
		}

		return exist == 1, nil
	}

	var exist bool
	if ex := res.Scan(&exist); ex != nil {
		return false, ex
	}

	return exist, nil
}

// Identifier quotes a column name.  Names such as "1" or "Total households!!..." need it.
func (d *Dialect) Identifier(name string) string {
	if d.dialect == ch {
		return "`" + name + "`"
	}

	return `"` + name + `"`
}

// ToString returns a string version of val that can be placed into SQL
func (d *Dialect) ToString(val any) string {
	switch x := val.(type) {
	case float64:
		if math.IsNaN(x) {
			if d.dialect == ch {
				return "nan"
			}

			return "'NaN'"
		}

		if math.IsInf(x, 0) {
			return "NULL"
		}

		return fmt.Sprintf("%v", x)
	case int:
		return fmt.Sprintf("%d", x)
	case time.Time:
		return "'" + x.Format("2006-01-02") + "'"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	}

	panic(fmt.Errorf("unsupported type %T in Dialect.ToString", val))
}

func (d *Dialect) dbtype(dt DataTypes) (string, error) {
	pos := position(dt.String(), d.dtTypes)
	if pos < 0 {
		return "", fmt.Errorf("cannot find type %s to map to DB type", dt.String())
	}

	return d.dbTypes[pos], nil
}

func indexName(tableName string) string {
	return strings.NewReplacer(".", "_", " ", "_").Replace(tableName) + "_idx"
}
