// Package seenset tracks which opportunities have already been
// notified, so the pipeline never sends the same record twice.
package seenset

import (
	"context"
)

// Store is an idempotent record of natural keys that have already
// been notified.
type Store interface {
	// IsSent reports whether key has already been marked sent.
	IsSent(ctx context.Context, key string) (bool, error)

	// MarkSent durably records key as sent. Calling it again for the
	// same key is a no-op.
	MarkSent(ctx context.Context, key string) error

	// MarkSentBatch records many keys in a single durable write.
	MarkSentBatch(ctx context.Context, keys []string) error
}
