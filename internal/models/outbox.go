package models

import "time"

// OutboxEntry is an event written in the same transaction as the state change it announces.
type OutboxEntry struct {
	ID        string
	Topic     string
	Payload   string
	CreatedAt time.Time
}
