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

// ConsumerConfig holds configuration for the NATS event consumer.
type ConsumerConfig struct {
	URL           string
	SubjectFilter string // e.g. "timer.events.>"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns default consumer configuration.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectFilter: "timer.events.>",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer subscribes to the room event subjects and fans incoming
// timer events out to the WebSocket pools. Core NATS gives subscribers
// only events published after subscription, which is exactly the stream
// contract: late joiners seed themselves from the state fetch instead of
// replayed history.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            ConsumerConfig
	messageCh         chan *nats.Msg
}

// NewEventConsumer connects to NATS and prepares a consumer.
func NewEventConsumer(cm *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	messageCh := make(chan *nats.Msg, 100)
	sub, err := nc.ChanSubscribe(config.SubjectFilter, messageCh)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", config.SubjectFilter, err)
	}

	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		sub:               sub,
		config:            config,
		messageCh:         messageCh,
	}, nil
}

// Start processes incoming events until the context ends.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("subject", ec.config.SubjectFilter).
		Msg("starting timer event consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-ec.messageCh:
			if err := ec.processMessage(msg); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject).
					Msg("failed to process message")
			}
		}
	}
}

// processMessage converts one envelope into a wire event and broadcasts it.
func (ec *EventConsumer) processMessage(msg *nats.Msg) error {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	roomID, err := uuid.Parse(env.RoomID)
	if err != nil {
		return fmt.Errorf("parse room ID: %w", err)
	}

	event := &events.TimerEvent{
		ID:        env.EventID,
		RoomID:    env.RoomID,
		Type:      events.EventType(env.EventType),
		Timestamp: env.Timestamp,
		Data:      env.Payload,
	}

	ec.connectionManager.BroadcastToRoom(roomID, event)

	log.Debug().
		Str("event_id", env.EventID).
		Str("room_id", env.RoomID).
		Str("event_type", env.EventType).
		Msg("event broadcasted to WebSocket clients")

	return nil
}

// Stop unsubscribes and closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")

	if ec.sub != nil {
		if err := ec.sub.Unsubscribe(); err != nil {
			return err
		}
	}
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
