// Package events publishes committed marketplace transitions to RabbitMQ so
// the notification collaborator can fan out emails and SMS. Publication is
// fire-and-forget: failures are logged and never surface to the caller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/fastmount/marketplace/pkg/marketplace"
)

const exchangeName = "marketplace.events"

// RabbitSink holds one connection and channel for the process lifetime and
// publishes each event to a durable topic exchange, routed by event kind.
type RabbitSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// NewRabbitSink dials the broker and declares the marketplace exchange.
func NewRabbitSink(url string, logger *zap.Logger) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitSink{conn: conn, channel: channel, logger: logger}, nil
}

type eventPayload struct {
	Kind            string `json:"kind"`
	BookingID       string `json:"booking_id,omitempty"`
	InstallerID     string `json:"installer_id,omitempty"`
	ProposalID      string `json:"proposal_id,omitempty"`
	AmountCents     int64  `json:"amount_cents,omitempty"`
	OccurredUnixUTC int64  `json:"occurred_unix_utc"`
}

// Publish sends the event with routing key equal to its kind. Messages are
// persistent so they survive a broker restart.
func (sink *RabbitSink) Publish(ctx context.Context, event marketplace.Event) {
	body, err := json.Marshal(eventPayload{
		Kind:            event.Kind,
		BookingID:       event.BookingID,
		InstallerID:     event.InstallerID,
		ProposalID:      event.ProposalID,
		AmountCents:     event.AmountCents,
		OccurredUnixUTC: event.OccurredUnixUTC,
	})
	if err != nil {
		sink.logger.Warn("event marshal failed", zap.String("kind", event.Kind), zap.Error(err))
		return
	}
	publishErr := sink.channel.PublishWithContext(ctx, exchangeName, event.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if publishErr != nil {
		sink.logger.Warn("event publish failed", zap.String("kind", event.Kind), zap.Error(publishErr))
	}
}

// Close releases the channel and connection.
func (sink *RabbitSink) Close() error {
	if sink.channel != nil {
		_ = sink.channel.Close()
	}
	if sink.conn != nil {
		return sink.conn.Close()
	}
	return nil
}
