package broker

import (
	"context"
	"fmt"
	"time"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/models"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout  = 5 * time.Second
	reconnectWait   = 2 * time.Second
	publishTimeout  = 5 * time.Second
	defaultAckWait  = 30 * time.Second
	clientName      = "phishguard"
	defaultDupeWait = 2 * time.Minute
)

// Publisher publishes one payload with a broker-side deduplication id
type Publisher interface {
	Publish(ctx context.Context, subject, msgID string, data []byte) error
}

// Client wraps the NATS connection and its JetStream context
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config models.BrokerConfig
	logger *logrus.Logger
}

// Connect dials NATS and opens a JetStream context. Reconnects are unbounded.
func Connect(config models.BrokerConfig, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := nats.Connect(config.URL,
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.WithError(nc.LastError()).Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, apperrors.NewBrokerError("connect", fmt.Errorf("failed to connect to NATS: %w", err))
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, apperrors.NewBrokerError("connect", fmt.Errorf("failed to create JetStream context: %w", err))
	}

	return &Client{conn: conn, js: js, config: config, logger: logger}, nil
}

// EnsureStream creates or updates the stream carrying the analysis and dead-letter subjects
func (c *Client) EnsureStream(ctx context.Context) error {
	window := time.Duration(c.config.DuplicateWindowS) * time.Second
	if window <= 0 {
		window = defaultDupeWait
	}

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       c.config.Stream,
		Subjects:   []string{c.config.AnalysisTopic, c.config.DeadLetterTopic},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: window,
	})
	if err != nil {
		return apperrors.NewBrokerError("create stream", fmt.Errorf("failed to create stream %s: %w", c.config.Stream, err))
	}

	c.logger.WithFields(logrus.Fields{
		"stream":   c.config.Stream,
		"subjects": []string{c.config.AnalysisTopic, c.config.DeadLetterTopic},
	}).Info("JetStream stream ready")
	return nil
}

func (c *Client) Publish(ctx context.Context, subject, msgID string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ack, err := c.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		return apperrors.NewBrokerError("publish", fmt.Errorf("failed to publish to %s: %w", subject, err))
	}
	if ack.Duplicate {
		c.logger.WithFields(logrus.Fields{"subject": subject, "msg_id": msgID}).Debug("Broker discarded duplicate publish")
	}
	return nil
}

// Healthy reports whether the connection is currently usable
func (c *Client) Healthy() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains pending publishes and closes the connection
func (c *Client) Close() {
	if c.conn == nil || c.conn.IsClosed() {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.WithError(err).Warn("Failed to drain NATS connection")
		c.conn.Close()
	}
}
