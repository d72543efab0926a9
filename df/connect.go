package df

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/stdlib"
)

// NewConnectCH establishes a new connection to ClickHouse.  host is an IP address (assumes port 9000).
func NewConnectCH(host, user, password string) (*sql.DB, error) {
	db := clickhouse.OpenDB(
		&clickhouse.Options{
			Addr: []string{host + ":9000"},
			Auth: clickhouse.Auth{
				Database: "default",
				Username: user,
				Password: password,
			},
			DialTimeout: 300 * time.Second,
			Compression: &clickhouse.Compression{
				Method: clickhouse.CompressionLZ4,
				Level:  0,
			},
		})

	if e := db.Ping(); e != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse at %s: %w", host, e)
	}

	return db, nil
}

// NewConnectPG establishes a new connection to Postgres on port 5432
func NewConnectPG(host, user, password, dbName string) (*sql.DB, error) {
	connectionStr := fmt.Sprintf("postgres://%s:%s@%s:5432/%s", user, password, host, dbName)

	db, e := sql.Open("pgx", connectionStr)
	if e != nil {
		return nil, e
	}

	if e := db.Ping(); e != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres at %s: %w", host, e)
	}

	return db, nil
}

// Connect opens a connection for dialect ("clickhouse" or "postgres") and returns its Dialect
func Connect(dialect, host, user, password, dbName string) (*Dialect, error) {
	var (
		db *sql.DB
		e  error
	)

	switch dialect {
	case ch:
		db, e = NewConnectCH(host, user, password)
	case pg:
		db, e = NewConnectPG(host, user, password, dbName)
	default:
		return nil, fmt.Errorf("unsupported database %s", dialect)
	}

	if e != nil {
		return nil, e
	}

	return dialectFor(dialect, db)
}

// dialectFor wraps db in a Dialect, closing db if that fails
func dialectFor(dialect string, db *sql.DB) (*Dialect, error) {
	d, e := NewDialect(dialect, db)
	if e != nil {
		_ = db.Close()
		return nil, e
	}

	return d, nil
}
