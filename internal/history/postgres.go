package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS import_runs (
	id          uuid PRIMARY KEY,
	session_id  text        NOT NULL,
	target      text        NOT NULL,
	file_name   text        NOT NULL DEFAULT '',
	format      text        NOT NULL DEFAULT '',
	records     integer     NOT NULL,
	submitted   integer     NOT NULL,
	status      text        NOT NULL CHECK (status IN ('succeeded', 'failed')),
	error       text        NOT NULL DEFAULT '',
	started_at  timestamptz NOT NULL,
	finished_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS import_runs_started_at_idx ON import_runs (started_at DESC);
`

const insertRunSQL = `
INSERT INTO import_runs
	(id, session_id, target, file_name, format, records, submitted, status, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const recentRunsSQL = `
SELECT id, session_id, target, file_name, format, records, submitted, status, error, started_at, finished_at
FROM import_runs
ORDER BY started_at DESC
LIMIT $1`

const purgeRunsSQL = `DELETE FROM import_runs WHERE started_at < $1`

// PostgresStore stores import runs in the import_runs table.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a store backed by db.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the import_runs table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure import_runs schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, err := s.db.Exec(ctx, insertRunSQL,
		pgtype.UUID{Bytes: run.ID, Valid: true},
		run.SessionID,
		run.Target,
		run.FileName,
		run.Format,
		int32(run.Records),
		int32(run.Submitted),
		string(run.Status),
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			id        pgtype.UUID
			status    string
			records   int32
			submitted int32
		)
		if err := rows.Scan(&id, &r.SessionID, &r.Target, &r.FileName, &r.Format,
			&records, &submitted, &status, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		r.ID = uuid.UUID(id.Bytes)
		r.Status = Status(status)
		r.Records = int(records)
		r.Submitted = int(submitted)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import runs: %w", err)
	}
	return runs, nil
}

func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, purgeRunsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge import runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
