package models

import (
	"strings"
	"time"
)

// MessageStatus is the lifecycle state of an inbound SMS.
type MessageStatus string

const (
	StatusReceived               MessageStatus = "RECEIVED"
	StatusPendingAnalysis        MessageStatus = "PENDING_ANALYSIS"
	StatusAllowedAnalyzedSafe    MessageStatus = "ALLOWED_ANALYZED_SAFE"
	StatusAllowedNoURLs          MessageStatus = "ALLOWED_NO_URLS"
	StatusAllowedNotSubscribed   MessageStatus = "ALLOWED_NOT_SUBSCRIBED"
	StatusRejectedPhishing       MessageStatus = "REJECTED_PHISHING"
	StatusRejectedAnalysisFailed MessageStatus = "REJECTED_ANALYSIS_FAILED"
	StatusCommandProcessed       MessageStatus = "COMMAND_PROCESSED"
	StatusInvalidCommand         MessageStatus = "INVALID_COMMAND"
)

// IsTerminal reports whether no further transition is expected.
func (s MessageStatus) IsTerminal() bool {
	return s != StatusReceived && s != StatusPendingAnalysis
}

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusPendingAnalysis, StatusAllowedAnalyzedSafe, StatusAllowedNoURLs,
		StatusAllowedNotSubscribed, StatusRejectedPhishing, StatusRejectedAnalysisFailed,
		StatusCommandProcessed, StatusInvalidCommand:
		return true
	}
	return false
}

// ProcessingStatus is the public outcome reported to the submitter.
type ProcessingStatus string

const (
	ProcessingAccepted         ProcessingStatus = "ACCEPTED"
	ProcessingCommandProcessed ProcessingStatus = "COMMAND_PROCESSED"
	ProcessingInvalidCommand   ProcessingStatus = "INVALID_COMMAND"
	ProcessingAllowed          ProcessingStatus = "ALLOWED"
	ProcessingRejectedPhishing ProcessingStatus = "REJECTED_PHISHING"
)

// PublicStatus projects an internal status onto the submitter-facing vocabulary.
// Messages still in flight report ACCEPTED.
func PublicStatus(s MessageStatus) ProcessingStatus {
	switch s {
	case StatusAllowedAnalyzedSafe, StatusAllowedNoURLs, StatusAllowedNotSubscribed:
		return ProcessingAllowed
	case StatusRejectedPhishing, StatusRejectedAnalysisFailed:
		return ProcessingRejectedPhishing
	case StatusCommandProcessed:
		return ProcessingCommandProcessed
	case StatusInvalidCommand:
		return ProcessingInvalidCommand
	default:
		return ProcessingAccepted
	}
}

// MessageRecord is the ledger entry for one inbound SMS.
// Sender, Recipient and Content hold plaintext in memory; the store encrypts them at rest.
type MessageRecord struct {
	ID             string        `json:"id"`
	IdempotencyKey string        `json:"-"`
	Sender         string        `json:"sender"`
	Recipient      string        `json:"recipient"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	Version        int64         `json:"-"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// ProcessResult is returned by the ingestion path.
type ProcessResult struct {
	MessageID        string           `json:"messageId"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
}

// IncomingSMS is an inbound submission from a transport adapter.
type IncomingSMS struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// Command is a subscription command sent to the service number.
type Command string

const (
	CommandStart Command = "START"
	CommandStop  Command = "STOP"
)

// ParseCommand trims and upper-cases text and matches it against the command vocabulary.
func ParseCommand(text string) (Command, bool) {
	switch Command(strings.ToUpper(strings.TrimSpace(text))) {
	case CommandStart:
		return CommandStart, true
	case CommandStop:
		return CommandStop, true
	}
	return "", false
}

// TargetActive is the subscriber state a command asks for.
func (c Command) TargetActive() bool {
	return c == CommandStart
}
