package seenset

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/learnbot/opportunity-hunter/internal/model"
)

// SQLStore answers IsSent/MarkSent against the opportunity store's own
// status column rather than a separate table: an opportunity counts as
// sent once its status is model.StatusNotified or later in the
// lifecycle. This avoids a second source of truth when the opportunity
// store backend is already durable.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an existing opportunity database connection.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) IsSent(ctx context.Context, key string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM opportunities WHERE natural_key = $1`, key,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seenset: query %s: %w", key, err)
	}
	return status != string(model.StatusDiscovered) && status != string(model.StatusScored), nil
}

func (s *SQLStore) MarkSent(ctx context.Context, key string) error {
	return s.MarkSentBatch(ctx, []string{key})
}

func (s *SQLStore) MarkSentBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seenset: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE opportunities SET status = $1 WHERE natural_key = $2 AND status IN ($3, $4)`)
	if err != nil {
		return fmt.Errorf("seenset: prepare: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, string(model.StatusNotified), key,
			string(model.StatusDiscovered), string(model.StatusScored)); err != nil {
			return fmt.Errorf("seenset: mark %s sent: %w", key, err)
		}
	}
	return tx.Commit()
}
