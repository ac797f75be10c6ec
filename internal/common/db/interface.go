package db

import (
	"context"
)

// Database is the record store used for the execution audit trail.
type Database interface {
	// Exec executes a statement that doesn't return rows
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// QueryRow executes a query that returns at most one row
	QueryRow(ctx context.Context, query string, args ...interface{}) Row

	// Ping verifies a connection to the database is still alive
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// Result summarises an executed statement
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Row is the result of QueryRow
type Row interface {
	Scan(dest ...interface{}) error
}
