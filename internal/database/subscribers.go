package database

import (
	"context"
	"database/sql"
	"fmt"

	"phishguard/internal/models"

	"github.com/google/uuid"
)

// GetSubscriberByHash returns the subscriber for a phone hash, or nil when absent
func (d *Database) GetSubscriberByHash(ctx context.Context, phoneHash string) (*models.Subscriber, error) {
	var phone string
	sub := &models.Subscriber{}

	err := d.db.QueryRowContext(ctx, SelectSubscriberByHashQuery, phoneHash).Scan(
		&sub.ID,
		&sub.PhoneHash,
		&phone,
		&sub.IsActive,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	if sub.PhoneNumber, err = d.encryptor.Decrypt(phone); err != nil {
		return nil, fmt.Errorf("failed to decrypt phone number: %w", err)
	}
	return sub, nil
}

// CreateSubscriber inserts a subscriber. A concurrent insert for the same hash
// surfaces as ErrDuplicate.
func (d *Database) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	phone, err := d.encryptor.Encrypt(sub.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone number: %w", err)
	}

	now := d.now()
	id := uuid.NewString()

	err = retryableDBOperation(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, InsertSubscriberQuery,
			id, sub.PhoneHash, phone, sub.IsActive, 0, now, now)
		return execErr
	}, "insert subscriber")
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save subscriber: %w", err)
	}

	sub.ID = id
	sub.Version = 0
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

// UpdateSubscriberActive flips the active flag if the stored version still matches
func (d *Database) UpdateSubscriberActive(ctx context.Context, sub *models.Subscriber, active bool) error {
	now := d.now()
	var rows int64

	err := retryableDBOperation(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, UpdateSubscriberActiveQuery, active, now, sub.ID, sub.Version)
		if execErr != nil {
			return execErr
		}
		rows, execErr = result.RowsAffected()
		return execErr
	}, "update subscriber")
	if err != nil {
		return fmt.Errorf("failed to update subscriber: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	sub.IsActive = active
	sub.Version++
	sub.UpdatedAt = now
	return nil
}

// CountSubscribersByHash is used to verify the one-row-per-phone invariant
func (d *Database) CountSubscribersByHash(ctx context.Context, phoneHash string) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, CountSubscribersByHashQuery, phoneHash).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return count, nil
}
