// Package postgres persists reminders, reminder types and party records, and
// serves the paged queries the processing and dispatch iterators consume.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides reminder persistence over Postgres.
type Store struct {
	db DB
}

// New creates a store over the given database handle.
func New(db DB) *Store {
	return &Store{db: db}
}
