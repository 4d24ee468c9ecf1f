package database

import (
	"context"
	"fmt"
	"time"

	"phishguard/internal/models"

	"github.com/google/uuid"
)

// FindURLReputations looks up every hash in one query and returns hits keyed by hash
func (d *Database) FindURLReputations(ctx context.Context, urlHashes []string) (map[string]models.URLReputationEntry, error) {
	found := make(map[string]models.URLReputationEntry, len(urlHashes))
	if len(urlHashes) == 0 {
		return found, nil
	}

	args := make([]any, len(urlHashes))
	for i, h := range urlHashes {
		args[i] = h
	}

	rows, err := d.db.QueryContext(ctx, selectURLReputationsPrefix+placeholders(len(urlHashes))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query url reputations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.URLReputationEntry
		if err := rows.Scan(&entry.ID, &entry.URLHash, &entry.IsPhishing, &entry.LastCheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan url reputation: %w", err)
		}
		found[entry.URLHash] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate url reputations: %w", err)
	}
	return found, nil
}

// SaveURLReputation creates or overwrites the verdict for a URL hash
func (d *Database) SaveURLReputation(ctx context.Context, urlHash string, isPhishing bool) error {
	now := d.now()
	err := retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpsertURLReputationQuery, uuid.NewString(), urlHash, isPhishing, now)
		return err
	}, "save url reputation")
	if err != nil {
		return fmt.Errorf("failed to save url reputation: %w", err)
	}
	return nil
}

// DeleteURLReputationsBefore purges verdicts last checked before threshold
func (d *Database) DeleteURLReputationsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	return d.deleteBefore(ctx, DeleteURLReputationsBeforeQuery, threshold, "url cache entries")
}
