package trace

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teranos/samarth/errors"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS qa_traces (
    id TEXT PRIMARY KEY,
    target TEXT NOT NULL UNIQUE,
    question TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    final_answer TEXT NOT NULL,
    error_message TEXT,
    steps JSONB NOT NULL,
    citations JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`

const pgInsert = `
INSERT INTO qa_traces (
    id, target, question, success, final_answer,
    error_message, steps, citations, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps traces in a shared Postgres database
type PostgresStore struct {
	exec pgExecer
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates qa_traces if needed
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to trace database")
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to create qa_traces")
	}
	return &PostgresStore{exec: pool, pool: pool}, nil
}

// Save implements Sink. Saving the same trace twice is a no-op.
func (s *PostgresStore) Save(ctx context.Context, t *Trace, target string) error {
	sql, args, err := insertArgs(t, target)
	if err != nil {
		return err
	}
	if _, err := s.exec.Exec(ctx, sql, args...); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to save trace %s", t.ID), errors.ErrPersistence)
	}
	return nil
}

// Close releases the pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func insertArgs(t *Trace, target string) (string, []any, error) {
	steps, err := json.Marshal(t.Steps)
	if err != nil {
		return "", nil, errors.Wrap(err, "encode steps")
	}
	citations, err := json.Marshal(t.Citations)
	if err != nil {
		return "", nil, errors.Wrap(err, "encode citations")
	}
	var errMsg *string
	if t.Error != "" {
		errMsg = &t.Error
	}
	return pgInsert, []any{
		t.ID, target, t.Question, t.Success, t.FinalAnswer,
		errMsg, steps, citations, t.Timestamp.UTC(),
	}, nil
}
