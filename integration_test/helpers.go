package integration_test

import (
	"context"

	"phishguard/internal/models"

	"github.com/stretchr/testify/require"
)

// Submit pushes one SMS through ingestion
func (e *TestEnvironment) Submit(sender, recipient, message string) *models.ProcessResult {
	e.t.Helper()
	result, err := e.Processing.ProcessSMS(context.Background(), models.IncomingSMS{
		Sender:    sender,
		Recipient: recipient,
		Message:   message,
	})
	require.NoError(e.t, err)
	return result
}

// Subscribe sends START for phone to the service number
func (e *TestEnvironment) Subscribe(phone string) {
	e.t.Helper()
	result := e.Submit(phone, servicePhone, "start")
	require.Equal(e.t, models.ProcessingCommandProcessed, result.ProcessingStatus)
}

// Deliver relays the outbox and runs the worker once per published payload,
// returning the handler errors in publish order
func (e *TestEnvironment) Deliver() []error {
	e.t.Helper()
	ctx := context.Background()
	_, err := e.Relay.RelayOnce(ctx)
	require.NoError(e.t, err)

	var errs []error
	for _, msg := range e.Broker.drain() {
		errs = append(errs, e.Worker.Handle(ctx, msg.Payload))
	}
	return errs
}

// Status reads the stored status of a message
func (e *TestEnvironment) Status(id string) models.MessageStatus {
	e.t.Helper()
	record, err := e.Processing.GetMessage(context.Background(), id)
	require.NoError(e.t, err)
	require.NotNil(e.t, record)
	return record.Status
}
