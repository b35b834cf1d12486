// Package connection owns the DuckDB handle shared by every invocation.
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DriverName is the database/sql driver registered by duckdb-go.
const DriverName = "duckdb"

// Manager manages DuckDB connections with proper locking.
//
// Reads may run concurrently; Exec and ExecTx are serialized with a mutex.
type Manager struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewManager creates a new connection manager for the given database.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Open opens the DuckDB database at dsn ("" for in-memory) and verifies it.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", dsn, err)
	}
	return NewManager(db), nil
}

// Conn acquires a single connection from the pool. The caller must Close it.
// Statements run on one Conn see the same session state.
func (m *Manager) Conn(ctx context.Context) (*sql.Conn, error) {
	return m.db.Conn(ctx)
}

// QueryRow executes a query that is expected to return at most one row.
func (m *Manager) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return m.db.QueryRowContext(ctx, query, args...)
}

// Exec executes a write operation (serialized).
func (m *Manager) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.db.ExecContext(ctx, query, args...)
}

// ExecTx executes multiple statements in a transaction.
// If fn returns an error, the transaction is rolled back.
func (m *Manager) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// DB returns the underlying database handle.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Close closes the underlying database.
func (m *Manager) Close() error {
	return m.db.Close()
}
