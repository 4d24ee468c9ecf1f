package database

// Message ledger queries
const (
	InsertMessageQuery = `
		INSERT INTO sms_messages (
			id, idempotency_key, sender, recipient, message_content,
			status, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectMessageColumns = `
		SELECT id, idempotency_key, sender, recipient, message_content,
			   status, version, created_at, updated_at
		FROM sms_messages
	`

	SelectMessageByIDQuery = selectMessageColumns + `WHERE id = ?`

	SelectMessageByIdempotencyKeyQuery = selectMessageColumns + `WHERE idempotency_key = ?`

	UpdateMessageStatusQuery = `
		UPDATE sms_messages
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	SelectMessageExistsQuery = `SELECT COUNT(1) FROM sms_messages WHERE id = ?`

	DeleteMessagesBeforeQuery = `DELETE FROM sms_messages WHERE created_at < ?`
)

// Outbox queries
const (
	InsertOutboxEventQuery = `
		INSERT INTO outbox_events (id, topic, payload, created_at)
		VALUES (?, ?, ?, ?)
	`

	SelectPendingOutboxEventsQuery = `
		SELECT id, topic, payload, created_at
		FROM outbox_events
		ORDER BY created_at, id
		LIMIT ?
	`

	DeleteOutboxEventQuery = `DELETE FROM outbox_events WHERE id = ?`

	CountOutboxEventsQuery = `SELECT COUNT(1) FROM outbox_events`
)

// Subscriber queries
const (
	SelectSubscriberByHashQuery = `
		SELECT id, phone_number_hash, phone_number, is_active, version, created_at, updated_at
		FROM subscribers
		WHERE phone_number_hash = ?
	`

	InsertSubscriberQuery = `
		INSERT INTO subscribers (
			id, phone_number_hash, phone_number, is_active, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	UpdateSubscriberActiveQuery = `
		UPDATE subscribers
		SET is_active = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	CountSubscribersByHashQuery = `SELECT COUNT(1) FROM subscribers WHERE phone_number_hash = ?`
)

// URL reputation cache queries
const (
	// selectURLReputationsPrefix is completed with one placeholder per hash
	selectURLReputationsPrefix = `
		SELECT id, url_hash, is_phishing, last_checked_at
		FROM url_analysis_cache
		WHERE url_hash IN (`

	UpsertURLReputationQuery = `
		INSERT INTO url_analysis_cache (id, url_hash, is_phishing, last_checked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url_hash) DO UPDATE SET
			is_phishing = excluded.is_phishing,
			last_checked_at = excluded.last_checked_at
	`

	DeleteURLReputationsBeforeQuery = `DELETE FROM url_analysis_cache WHERE last_checked_at < ?`
)
