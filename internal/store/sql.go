package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLStore keeps records in one "materials" table. It runs on sqlite
// (mattn/go-sqlite3) and postgres (lib/pq); list fields are JSON text columns.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(driver, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err = s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS materials (
            eta_id TEXT NOT NULL,
            upload_date TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            auth0_sub TEXT NOT NULL DEFAULT '',
            context_json TEXT NOT NULL DEFAULT '[]',
            uploads_json TEXT NOT NULL DEFAULT '[]',
            chat_history_json TEXT NOT NULL DEFAULT '[]',
            PRIMARY KEY (eta_id, upload_date)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_materials_email ON materials (email)`,
		`CREATE INDEX IF NOT EXISTS idx_materials_auth0_sub ON materials (auth0_sub)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites '?' placeholders as $1..$n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
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

const selectColumns = "SELECT eta_id, upload_date, name, email, auth0_sub, context_json, uploads_json, chat_history_json FROM materials"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                               Record
		contextJSON, uploadsJSON, history string
	)
	if err := row.Scan(&rec.EtaID, &rec.UploadDate, &rec.Name, &rec.Email, &rec.Auth0Sub, &contextJSON, &uploadsJSON, &history); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(contextJSON), &rec.Context); err != nil {
		return nil, fmt.Errorf("failed to decode context for %s: %w", rec.EtaID, err)
	}
	if err := json.Unmarshal([]byte(uploadsJSON), &rec.Uploads); err != nil {
		return nil, fmt.Errorf("failed to decode uploads for %s: %w", rec.EtaID, err)
	}
	rec.ChatHistory = json.RawMessage(history)
	normalizeEmpty(&rec)
	return &rec, nil
}

func encodeLists(rec *Record) (contextJSON, uploadsJSON, history string, err error) {
	normalizeEmpty(rec)
	c, err := json.Marshal(rec.Context)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode context: %w", err)
	}
	u, err := json.Marshal(rec.Uploads)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode uploads: %w", err)
	}
	if !json.Valid(rec.ChatHistory) {
		return "", "", "", fmt.Errorf("chat history is not valid JSON")
	}
	return string(c), string(u), string(rec.ChatHistory), nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

func (s *SQLStore) Put(ctx context.Context, rec *Record) error {
	contextJSON, uploadsJSON, history, err := encodeLists(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		"INSERT INTO materials (eta_id, upload_date, name, email, auth0_sub, context_json, uploads_json, chat_history_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		rec.EtaID, rec.UploadDate, rec.Name, rec.Email, rec.Auth0Sub, contextJSON, uploadsJSON, history)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key Key) (*Record, error) {
	return s.getWith(ctx, s.db, key)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) getWith(ctx context.Context, q queryRower, key Key) (*Record, error) {
	row := q.QueryRowContext(ctx, s.rebind(selectColumns+" WHERE eta_id = ? AND upload_date = ?"), key.EtaID, key.UploadDate)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) Latest(ctx context.Context, etaID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+" WHERE eta_id = ? ORDER BY upload_date DESC LIMIT 1"), etaID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest record: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) Query(ctx context.Context, etaID string) ([]Record, error) {
	return s.list(ctx, selectColumns+" WHERE eta_id = ? ORDER BY upload_date DESC", etaID)
}

func (s *SQLStore) Scan(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Email != "" {
		where = append(where, "email = ?")
		args = append(args, f.Email)
	}
	if f.Auth0Sub != "" {
		where = append(where, "auth0_sub = ?")
		args = append(args, f.Auth0Sub)
	}
	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.list(ctx, query+" ORDER BY upload_date DESC", args...)
}

func (s *SQLStore) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// Update reads the row, applies u and writes every mutable column back.
// Concurrent updates of the same key are last-writer-wins.
func (s *SQLStore) Update(ctx context.Context, key Key, u Update) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.getWith(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	u.apply(rec)

	contextJSON, uploadsJSON, history, err := encodeLists(rec)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, s.rebind(
		"UPDATE materials SET name = ?, email = ?, auth0_sub = ?, context_json = ?, uploads_json = ?, chat_history_json = ? WHERE eta_id = ? AND upload_date = ?"),
		rec.Name, rec.Email, rec.Auth0Sub, contextJSON, uploadsJSON, history, key.EtaID, key.UploadDate)
	if err != nil {
		return nil, fmt.Errorf("failed to execute record update: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit record update: %w", err)
	}
	return rec, nil
}
