package models

import "time"

// Subscriber records a phone number's opt-in to phishing filtering.
type Subscriber struct {
	ID          string
	PhoneHash   string
	PhoneNumber string
	IsActive    bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
