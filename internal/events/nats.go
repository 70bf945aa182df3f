package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher creates a new NATS-backed publisher
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("landlord-trainer"),
		nats.Timeout(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "events").Logger(),
	}, nil
}

// Close flushes pending messages and closes the NATS connection
func (n *NATSPublisher) Close() {
	if n.conn != nil {
		_ = n.conn.Flush()
		n.conn.Close()
	}
}

// PublishReport publishes report events to <subject>.reports
func (n *NATSPublisher) PublishReport(ctx context.Context, event ReportEvent) error {
	subject := n.subject + ".reports"
	if err := n.publish(subject, event); err != nil {
		return err
	}

	n.logger.Debug().
		Str("run_id", event.RunID).
		Int("episode", event.Episode).
		Str("subject", subject).
		Msg("Published report event")
	return nil
}

// PublishCheckpoint publishes checkpoint events to <subject>.checkpoints
func (n *NATSPublisher) PublishCheckpoint(ctx context.Context, event CheckpointEvent) error {
	subject := n.subject + ".checkpoints"
	if err := n.publish(subject, event); err != nil {
		return err
	}

	n.logger.Debug().
		Str("run_id", event.RunID).
		Str("name", event.Name).
		Str("subject", subject).
		Msg("Published checkpoint event")
	return nil
}

func (n *NATSPublisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish event")
		return err
	}
	return nil
}
