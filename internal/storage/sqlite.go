package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Veraticus/ledgersync/internal/service"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect captures the few places SQLite and PostgreSQL disagree.
type dialect struct {
	name      string
	timestamp string
	numbered  bool
}

var (
	sqliteDialect   = dialect{name: DriverSQLite, timestamp: "DATETIME"}
	postgresDialect = dialect{name: DriverPostgres, timestamp: "TIMESTAMPTZ", numbered: true}
)

// rebind rewrites ? placeholders into $n for drivers that need them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStorage implements service.Storage on top of database/sql.
type SQLStorage struct {
	db      *sql.DB
	q       querier
	dialect dialect
	inTx    bool
}

// Open connects to the ledger database with the given driver.
func Open(driver, dsn string) (*SQLStorage, error) {
	switch driver {
	case "", DriverSQLite, "sqlite":
		return NewSQLiteStorage(dsn)
	case DriverPostgres, "postgresql":
		return NewPostgresStorage(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverSQLite, dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStorage{db: db, q: db, dialect: sqliteDialect}, nil
}

// NewPostgresStorage creates a storage instance backed by PostgreSQL.
func NewPostgresStorage(dsn string) (*SQLStorage, error) {
	if err := validateString(dsn, "dsn"); err != nil {
		return nil, err
	}

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStorage{db: db, q: db, dialect: postgresDialect}, nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	if s.inTx {
		return fmt.Errorf("transactions must be committed or rolled back, not closed")
	}
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if s.inTx {
		return nil, fmt.Errorf("nested transactions not supported")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqlTransaction{
		SQLStorage: &SQLStorage{db: s.db, q: tx, dialect: s.dialect, inTx: true},
		tx:         tx,
	}, nil
}

// sqlTransaction scopes every storage method to one sql.Tx.
type sqlTransaction struct {
	*SQLStorage
	tx *sql.Tx
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (s *SQLStorage) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStorage) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStorage) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

var (
	_ service.Storage     = (*SQLStorage)(nil)
	_ service.Transaction = (*sqlTransaction)(nil)
)
