package repository

import (
	"context"
	"time"
)

// SyncRetry is one entry in the pending-retry set for failed directory
// change-feed syncs.
type SyncRetry struct {
	ExternalID    string
	FirstFailedAt time.Time
	LastAttemptAt time.Time
	Attempts      int
	LastError     string
}

// UpsertSyncRetry records a failed sync for later retry, incrementing the
// attempt counter if an entry already exists.
func (r *Repository) UpsertSyncRetry(ctx context.Context, externalID string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO directory_sync_retries (external_id, last_error)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE SET
			attempts = directory_sync_retries.attempts + 1,
			last_attempt_at = now(),
			last_error = EXCLUDED.last_error
	`, externalID, errMsg)
	return err
}

// ListDueSyncRetries returns entries whose last attempt is older than minAge,
// oldest first.
func (r *Repository) ListDueSyncRetries(ctx context.Context, minAge time.Duration, limit int) ([]SyncRetry, error) {
	if limit < 1 {
		limit = 100
	}
	cutoff := time.Now().Add(-minAge)
	rows, err := r.pool.Query(ctx, `
		SELECT external_id, first_failed_at, last_attempt_at, attempts, last_error
		FROM directory_sync_retries
		WHERE last_attempt_at < $1
		ORDER BY first_failed_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]SyncRetry, 0)
	for rows.Next() {
		var e SyncRetry
		if err := rows.Scan(&e.ExternalID, &e.FirstFailedAt, &e.LastAttemptAt, &e.Attempts, &e.LastError); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteSyncRetry removes an entry after a successful retry.
func (r *Repository) DeleteSyncRetry(ctx context.Context, externalID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM directory_sync_retries WHERE external_id = $1
	`, externalID)
	return err
}
