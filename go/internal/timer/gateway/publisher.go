package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/studyhall/studyhall/go/internal/timer/events"
)

// PublisherConfig holds configuration for the NATS event publisher.
type PublisherConfig struct {
	URL           string
	SubjectPrefix string // e.g. "timer.events"
	MaxRetries    int
	RetryDelay    time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultPublisherConfig returns default publisher configuration.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "timer.events",
		MaxRetries:    3,
		RetryDelay:    time.Second,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes timer events on room-scoped NATS subjects.
// Delivery is best-effort at-least-once to current subscribers; a
// publish failure after a successful state mutation leaves the system
// eventually consistent via the state fetch.
type NATSPublisher struct {
	nc     *nats.Conn
	config PublisherConfig
}

// envelope is the wire frame shared with the event consumer.
type envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	RoomID    string          `json:"roomId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewNATSPublisher connects to NATS and returns a publisher.
func NewNATSPublisher(config PublisherConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc, config: config}, nil
}

// Publish sends one timer event on the room's subject, retrying with
// bounded backoff on transport errors.
func (p *NATSPublisher) Publish(ctx context.Context, roomID uuid.UUID, eventType events.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	env := envelope{
		EventID:   uuid.New().String(),
		EventType: string(eventType),
		RoomID:    roomID.String(),
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}
	messageBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, roomID)

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := p.nc.Publish(subject, messageBytes); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("subject", subject).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}

// Close drains the NATS connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
