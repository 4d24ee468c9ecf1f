package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"phishguard/internal/migrations"
	"phishguard/internal/models"
	"phishguard/internal/security"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned by writes addressed to a row that no longer exists.
	// Lookups report absent rows as nil, nil.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a versioned update matched no row
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

const dsnOptions = "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

type Database struct {
	db        *sql.DB
	encryptor *encryptor
	now       func() time.Time
}

func New(cfg models.DatabaseConfig) (*Database, error) {
	dbPath := cfg.Path
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	closeWith := func(err error, format string) error {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf(format+": %w (close error: %v)", err, closeErr)
		}
		return fmt.Errorf(format+": %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, closeWith(err, "failed to ping database")
	}

	if _, err := migrations.Apply(context.Background(), db); err != nil {
		return nil, closeWith(err, "failed to initialize schema")
	}

	enc, err := NewEncryptor(cfg.EncryptionEnabled, cfg.EncryptionSecret)
	if err != nil {
		return nil, closeWith(err, "failed to initialize encryptor")
	}

	return &Database{db: db, encryptor: enc, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks that the database is reachable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing only when fn succeeds
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback error: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Message ledger

// CreateMessage inserts a new ledger row. The record's ID, version and timestamps
// are assigned here. A clash on the idempotency key returns ErrDuplicate.
func (d *Database) CreateMessage(ctx context.Context, record *models.MessageRecord) error {
	encrypted, err := d.encryptor.encryptAll(record.Sender, record.Recipient, record.Content)
	if err != nil {
		return fmt.Errorf("failed to encrypt message fields: %w", err)
	}

	now := d.now()
	id := uuid.NewString()

	err = retryableDBOperation(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, InsertMessageQuery,
			id, record.IdempotencyKey, encrypted[0], encrypted[1], encrypted[2],
			string(record.Status), 0, now, now,
		)
		return execErr
	}, "insert message")
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save message: %w", err)
	}

	record.ID = id
	record.Version = 0
	record.CreatedAt = now
	record.UpdatedAt = now
	return nil
}

// GetMessage returns the ledger row with the given id, or nil when absent
func (d *Database) GetMessage(ctx context.Context, id string) (*models.MessageRecord, error) {
	return d.queryMessage(ctx, SelectMessageByIDQuery, id)
}

// GetMessageByIdempotencyKey returns the ledger row for key, or nil when absent
func (d *Database) GetMessageByIdempotencyKey(ctx context.Context, key string) (*models.MessageRecord, error) {
	return d.queryMessage(ctx, SelectMessageByIdempotencyKeyQuery, key)
}

func (d *Database) queryMessage(ctx context.Context, query string, arg string) (*models.MessageRecord, error) {
	var sender, recipient, content, status string
	record := &models.MessageRecord{}

	err := d.db.QueryRowContext(ctx, query, arg).Scan(
		&record.ID,
		&record.IdempotencyKey,
		&sender,
		&recipient,
		&content,
		&status,
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	record.Status = models.MessageStatus(status)

	if record.Sender, err = d.encryptor.Decrypt(sender); err != nil {
		return nil, fmt.Errorf("failed to decrypt sender: %w", err)
	}
	if record.Recipient, err = d.encryptor.Decrypt(recipient); err != nil {
		return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
	}
	if record.Content, err = d.encryptor.Decrypt(content); err != nil {
		return nil, fmt.Errorf("failed to decrypt message content: %w", err)
	}

	return record, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// updateStatus performs the version-checked status write on q
func (d *Database) updateStatus(ctx context.Context, q execer, record *models.MessageRecord, status models.MessageStatus, now time.Time) error {
	result, err := q.ExecContext(ctx, UpdateMessageStatusQuery, string(status), now, record.ID, record.Version)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		var count int
		if err := q.QueryRowContext(ctx, SelectMessageExistsQuery, record.ID).Scan(&count); err != nil {
			return fmt.Errorf("failed to check message existence: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// UpdateMessageStatus writes status if the stored version still matches record.Version.
// On success the record carries the new status, version and update time.
func (d *Database) UpdateMessageStatus(ctx context.Context, record *models.MessageRecord, status models.MessageStatus) error {
	now := d.now()
	err := retryableDBOperation(ctx, func() error {
		return d.updateStatus(ctx, d.db, record, status, now)
	}, "update message status")
	if err != nil {
		return err
	}

	record.Status = status
	record.Version++
	record.UpdatedAt = now
	return nil
}

// MarkPendingWithOutbox moves a record to PENDING_ANALYSIS and writes its outbox
// event in one transaction. Either both rows change or neither does.
func (d *Database) MarkPendingWithOutbox(ctx context.Context, record *models.MessageRecord, topic string) (*models.OutboxEntry, error) {
	now := d.now()
	entry := &models.OutboxEntry{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   record.ID,
		CreatedAt: now,
	}

	err := retryableDBOperation(ctx, func() error {
		return d.withTx(ctx, func(tx *sql.Tx) error {
			if err := d.updateStatus(ctx, tx, record, models.StatusPendingAnalysis, now); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, InsertOutboxEventQuery, entry.ID, entry.Topic, entry.Payload, entry.CreatedAt); err != nil {
				return fmt.Errorf("failed to write outbox event: %w", err)
			}
			return nil
		})
	}, "mark pending with outbox")
	if err != nil {
		return nil, err
	}

	record.Status = models.StatusPendingAnalysis
	record.Version++
	record.UpdatedAt = now
	return entry, nil
}

// DeleteMessagesBefore purges ledger rows created before threshold
func (d *Database) DeleteMessagesBefore(ctx context.Context, threshold time.Time) (int64, error) {
	return d.deleteBefore(ctx, DeleteMessagesBeforeQuery, threshold, "messages")
}

func (d *Database) deleteBefore(ctx context.Context, query string, threshold time.Time, what string) (int64, error) {
	var deleted int64
	err := retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, query, threshold.UTC())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	}, "delete old "+what)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old %s: %w", what, err)
	}
	return deleted, nil
}

// Outbox

// ListOutboxEvents returns up to limit events, oldest first
func (d *Database) ListOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	rows, err := d.db.QueryContext(ctx, SelectPendingOutboxEventsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	defer rows.Close()

	var entries []models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}
	return entries, nil
}

// DeleteOutboxEvent removes a relayed event. Deleting an absent event is not an error.
func (d *Database) DeleteOutboxEvent(ctx context.Context, id string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, DeleteOutboxEventQuery, id)
		return err
	}, "delete outbox event")
}

// CountOutboxEvents reports the relay backlog
func (d *Database) CountOutboxEvents(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, CountOutboxEventsQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return count, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
