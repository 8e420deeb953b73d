// Package store persists material records in a single wide-row table keyed by
// (eta id, upload date).
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, key Key) (*Record, error)
	// Latest returns the record with the greatest upload date for etaID.
	Latest(ctx context.Context, etaID string) (*Record, error)
	// Query returns every record for etaID, newest first.
	Query(ctx context.Context, etaID string) ([]Record, error)
	// Scan returns every record matching f, newest first.
	Scan(ctx context.Context, f Filter) ([]Record, error)
	Update(ctx context.Context, key Key, u Update) (*Record, error)
	Close() error
}

// Open picks a backend from the DSN: "memory://", "postgres://..." or a
// sqlite path (optionally prefixed with "sqlite://").
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory://":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewSQLStore("postgres", dsn)
	default:
		return NewSQLStore("sqlite3", strings.TrimPrefix(dsn, "sqlite://"))
	}
}
