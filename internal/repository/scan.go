package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"familysync/internal/database"
)

// ErrNotFound is returned by updates that matched no row in the caller's family
var ErrNotFound = errors.New("record not found")

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// builder renders squirrel statements with '?' placeholders; the database layer
// rewrites them for the active dialect.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

func newID() string {
	return uuid.New().String()
}

// now is the timestamp written to created_at/updated_at columns. Stored times are UTC.
func now() time.Time {
	return time.Now().UTC()
}

func queryBuilt(ctx context.Context, db database.DBTX, q sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return db.QueryContext(ctx, query, args...)
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
