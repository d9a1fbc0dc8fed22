// Package storage persists Opportunity records across two
// interchangeable backends: a networked Postgres store and an
// embedded SQLite store, both speaking the same Store contract.
package storage

import (
	"context"

	"github.com/learnbot/opportunity-hunter/internal/model"
)

// Store is the opportunity persistence contract shared by every
// backend.
type Store interface {
	// Upsert inserts or updates one record by natural key, preserving
	// CreatedAt and Status on an existing row.
	Upsert(ctx context.Context, opp *model.Opportunity) error

	// BatchUpsert upserts many records; a single record's failure does
	// not abort the rest. It returns the subset of opps that was
	// actually persisted (so callers never notify or mark-sent a
	// record that failed to upsert) and a joined error naming every
	// individual failure, or nil if all records succeeded.
	BatchUpsert(ctx context.Context, opps []*model.Opportunity) ([]*model.Opportunity, error)

	// GetByNaturalKey fetches one record, or nil if absent.
	GetByNaturalKey(ctx context.Context, key string) (*model.Opportunity, error)

	// GetTopN returns up to n records matching filter, ranked by score
	// descending then created_at ascending.
	GetTopN(ctx context.Context, filter model.SearchFilter) ([]*model.Opportunity, error)

	// ListByStatus returns up to limit records (100 when limit <= 0) in
	// the given status, newest first.
	ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Opportunity, error)

	// ListByPlatform returns up to limit records (100 when limit <= 0)
	// from the given platform, newest first.
	ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]*model.Opportunity, error)

	// UpdateStatus transitions a record's status and notes.
	UpdateStatus(ctx context.Context, key string, status model.Status, notes string) error

	// Stats summarizes the store's current contents.
	Stats(ctx context.Context) (model.Stats, error)

	// Close releases the backend's resources.
	Close() error
}
