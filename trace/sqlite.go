package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/samarth/db"
	"github.com/teranos/samarth/errors"
)

// SQLiteStore keeps traces in the qa_traces table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a migrated database
func NewSQLiteStore(conn *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: conn}
}

// Save implements Sink
func (s *SQLiteStore) Save(ctx context.Context, t *Trace, target string) error {
	steps, err := json.Marshal(t.Steps)
	if err != nil {
		return errors.Wrap(err, "encode steps")
	}
	citations, err := json.Marshal(t.Citations)
	if err != nil {
		return errors.Wrap(err, "encode citations")
	}

	var errMsg *string
	if t.Error != "" {
		errMsg = &t.Error
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO qa_traces (
			id, target, question, success, final_answer,
			error_message, steps, citations, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, target, t.Question, t.Success, t.FinalAnswer,
		errMsg, string(steps), string(citations), t.Timestamp.UTC(),
	)
	if err != nil {
		err = errors.Wrapf(err, "failed to save trace %s", t.ID)
		if db.IsDatabaseClosed(err) {
			err = errors.WithHint(err, "the trace store was used after shutdown")
		}
		return errors.Mark(err, errors.ErrPersistence)
	}
	return nil
}

// Summary is one row of a trace listing
type Summary struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Question  string    `json:"question"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the most recent traces first
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, question, success, created_at
		FROM qa_traces
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list traces")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Target, &sum.Question, &sum.Success, &sum.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan trace")
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads one trace by id or target
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Trace, error) {
	var (
		t         Trace
		errMsg    sql.NullString
		steps     string
		citations string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, question, success, final_answer, error_message, steps, citations, created_at
		FROM qa_traces
		WHERE id = ? OR target = ?`, key, key).
		Scan(&t.ID, &t.Question, &t.Success, &t.FinalAnswer, &errMsg, &steps, &citations, &t.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("trace %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load trace %s", key)
	}

	t.Error = errMsg.String
	if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
		return nil, errors.Wrap(err, "decode steps")
	}
	if err := json.Unmarshal([]byte(citations), &t.Citations); err != nil {
		return nil, errors.Wrap(err, "decode citations")
	}
	return &t, nil
}
