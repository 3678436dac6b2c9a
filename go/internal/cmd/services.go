package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/studyhall/studyhall/go/internal/auth"
	"github.com/studyhall/studyhall/go/internal/rooms"
	"github.com/studyhall/studyhall/go/internal/timer"
	"github.com/studyhall/studyhall/go/internal/timer/gateway"
	"github.com/studyhall/studyhall/go/internal/timer/sweep"
)

// Services holds all initialized service instances.
type Services struct {
	Timer             *timer.Service
	Sweep             *sweep.Sweep
	Publisher         *gateway.NATSPublisher
	Consumer          *gateway.EventConsumer
	ConnectionManager *gateway.ConnectionManager
	Handler           *gateway.Handler
}

// setupServices initializes the timer service and its gateway components.
func setupServices(db *sql.DB, cfg *Config, natsURL string) (*Services, error) {
	clock := clockwork.NewRealClock()

	sessionRepo := timer.NewPostgresRepository(db)
	store := timer.NewApp(sessionRepo, clock)

	roomRepo := rooms.NewRepository(db)
	guard := auth.NewGuard(roomRepo, roomRepo)

	publisherCfg := gateway.DefaultPublisherConfig()
	publisherCfg.URL = natsURL
	publisherCfg.SubjectPrefix = cfg.Broadcast.SubjectPrefix
	publisherCfg.MaxRetries = cfg.Broadcast.MaxRetries
	publisherCfg.RetryDelay = cfg.Broadcast.RetryDelay
	publisherCfg.ReconnectWait = cfg.Broadcast.ReconnectWait
	publisher, err := gateway.NewNATSPublisher(publisherCfg)
	if err != nil {
		return nil, err
	}

	// The sweep fires completions back into the service, so it is built
	// first around a late-bound reference.
	var timerService *timer.Service
	completionSweep := sweep.New(clock, func(ctx context.Context, roomID, sessionID uuid.UUID) {
		if err := timerService.ReportCompletion(ctx, roomID, sessionID); err != nil {
			log.Error().
				Err(err).
				Str("room_id", roomID.String()).
				Msg("completion report failed")
		}
	})

	timerService = timer.NewService(store, guard, publisher, completionSweep, clock)

	connCfg := gateway.DefaultConnectionConfig()
	if cfg.WebSocket.WriteTimeoutSec > 0 {
		connCfg.WriteTimeout = secondsToDuration(cfg.WebSocket.WriteTimeoutSec)
	}
	if cfg.WebSocket.ReadTimeoutSec > 0 {
		connCfg.ReadTimeout = secondsToDuration(cfg.WebSocket.ReadTimeoutSec)
	}
	if cfg.WebSocket.PingIntervalSec > 0 {
		connCfg.PingInterval = secondsToDuration(cfg.WebSocket.PingIntervalSec)
	}
	connectionManager := gateway.NewConnectionManager(connCfg)

	consumerCfg := gateway.DefaultConsumerConfig()
	consumerCfg.URL = natsURL
	consumerCfg.SubjectFilter = cfg.Broadcast.SubjectPrefix + ".>"
	consumerCfg.ReconnectWait = cfg.Broadcast.ReconnectWait
	consumer, err := gateway.NewEventConsumer(connectionManager, consumerCfg)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	handler := gateway.NewHandler(timerService, connectionManager)

	return &Services{
		Timer:             timerService,
		Sweep:             completionSweep,
		Publisher:         publisher,
		Consumer:          consumer,
		ConnectionManager: connectionManager,
		Handler:           handler,
	}, nil
}

func secondsToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
