package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/timer/events"
)

// Guard defines what the service needs from the control authority guard.
type Guard interface {
	CanControl(ctx context.Context, actorID, roomID uuid.UUID) (bool, error)
}

// Publisher defines what the service needs from the broadcast channel.
// Publish is best-effort at-least-once; it must not block the command
// path beyond enqueueing.
type Publisher interface {
	Publish(ctx context.Context, roomID uuid.UUID, eventType events.EventType, payload interface{}) error
}

// Scheduler arms and disarms the server-side completion timer for a room,
// so natural expiry fires even with no client connected.
type Scheduler interface {
	Arm(roomID, sessionID uuid.UUID, expiresIn time.Duration)
	Disarm(roomID uuid.UUID)
}

// Service is the timer control service: it validates authority and
// state-machine legality, mutates the state store, and emits exactly one
// event per successful transition.
type Service struct {
	store     *App
	guard     Guard
	publisher Publisher
	scheduler Scheduler
	clock     clockwork.Clock
}

// NewService creates a timer control service.
func NewService(store *App, guard Guard, publisher Publisher, scheduler Scheduler, clock clockwork.Clock) *Service {
	return &Service{
		store:     store,
		guard:     guard,
		publisher: publisher,
		scheduler: scheduler,
		clock:     clock,
	}
}

func (s *Service) authorize(ctx context.Context, actorID, roomID uuid.UUID) error {
	allowed, err := s.guard.CanControl(ctx, actorID, roomID)
	if err != nil {
		return fmt.Errorf("authority check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: actor %s, room %s", ErrForbidden, actorID, roomID)
	}
	return nil
}

// Start activates the room's timer. With no session it creates one at
// focus/session 1; a paused session resumes with its frozen remaining
// time; an already-active session is returned unchanged without emitting
// an event, so retries are idempotent.
func (s *Service) Start(ctx context.Context, roomID, actorID uuid.UUID) (*models.TimerSession, error) {
	if err := s.authorize(ctx, actorID, roomID); err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		if current, err = s.store.Create(ctx, roomID, models.TimerPhaseFocus, 1); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if current.Status == models.TimerStatusActive {
		return current, nil
	}
	resuming := current.Status == models.TimerStatusPaused

	session, err := s.store.ApplyStart(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}

	eventType := events.EventTypeTimerStart
	if resuming {
		eventType = events.EventTypeTimerResume
	}
	s.emit(ctx, roomID, eventType, events.StartPayload{
		SessionID:     session.SessionID.String(),
		ActorID:       actorID.String(),
		Phase:         string(session.Phase),
		SessionNumber: session.SessionNumber,
		RemainingSec:  session.RemainingAtAnchor,
		DurationSec:   session.TotalDuration,
		StartedAt:     *session.AnchorTimestamp,
	})

	s.scheduler.Arm(roomID, session.SessionID, time.Duration(session.RemainingAtAnchor)*time.Second)

	log.Info().
		Str("room_id", roomID.String()).
		Str("actor_id", actorID.String()).
		Str("phase", string(session.Phase)).
		Int("remaining_sec", session.RemainingAtAnchor).
		Bool("resumed", resuming).
		Msg("timer started")

	return session, nil
}

// Pause freezes an active timer; any other state is ErrInvalidState.
func (s *Service) Pause(ctx context.Context, roomID, actorID uuid.UUID) (*models.TimerSession, error) {
	if err := s.authorize(ctx, actorID, roomID); err != nil {
		return nil, err
	}

	session, err := s.store.ApplyPause(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}

	s.scheduler.Disarm(roomID)
	s.emit(ctx, roomID, events.EventTypeTimerPause, events.PausePayload{
		SessionID:     session.SessionID.String(),
		ActorID:       actorID.String(),
		Phase:         string(session.Phase),
		SessionNumber: session.SessionNumber,
		RemainingSec:  session.RemainingAtAnchor,
		PausedAt:      session.UpdatedAt,
	})

	log.Info().
		Str("room_id", roomID.String()).
		Str("actor_id", actorID.String()).
		Int("remaining_sec", session.RemainingAtAnchor).
		Msg("timer paused")

	return session, nil
}

// Reset returns the room to the initial phase and session regardless of
// current state. It always succeeds for an authorized actor.
func (s *Service) Reset(ctx context.Context, roomID, actorID uuid.UUID) (*models.TimerSession, error) {
	if err := s.authorize(ctx, actorID, roomID); err != nil {
		return nil, err
	}

	session, err := s.store.ApplyReset(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}

	s.scheduler.Disarm(roomID)
	s.emit(ctx, roomID, events.EventTypeTimerReset, events.ResetPayload{
		ActorID:       actorID.String(),
		Phase:         string(session.Phase),
		SessionNumber: session.SessionNumber,
		DurationSec:   session.TotalDuration,
		ResetAt:       session.UpdatedAt,
	})

	log.Info().
		Str("room_id", roomID.String()).
		Str("actor_id", actorID.String()).
		Msg("timer reset")

	return session, nil
}

// ReportCompletion handles an expiry signal for a specific run, from the
// server-side sweep or a client near expiry. Reports for a superseded
// session id are logged and dropped without error, which absorbs races
// between a late completion signal and an intervening reset.
func (s *Service) ReportCompletion(ctx context.Context, roomID, sessionID uuid.UUID) error {
	session, err := s.store.ApplyCompletion(ctx, roomID, sessionID)
	if errors.Is(err, ErrStaleCompletion) {
		log.Debug().
			Str("room_id", roomID.String()).
			Str("session_id", sessionID.String()).
			Msg("dropping stale completion report")
		return nil
	}
	if err != nil {
		return err
	}

	s.scheduler.Disarm(roomID)
	s.emit(ctx, roomID, events.EventTypeTimerComplete, events.CompletePayload{
		NextPhase:         string(session.Phase),
		NextSessionNumber: session.SessionNumber,
		DurationSec:       session.TotalDuration,
		CompletedAt:       session.UpdatedAt,
	})

	log.Info().
		Str("room_id", roomID.String()).
		Str("next_phase", string(session.Phase)).
		Int("session_number", session.SessionNumber).
		Msg("timer completed phase")

	return nil
}

// Snapshot returns the room's current timer view with remaining time
// computed at response time.
func (s *Service) Snapshot(ctx context.Context, roomID uuid.UUID) (*Snapshot, error) {
	session, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		RoomID:        session.RoomID.String(),
		Phase:         session.Phase,
		SessionNumber: session.SessionNumber,
		Status:        session.Status,
		Remaining:     session.RemainingAt(s.clock.Now()),
		TotalDuration: session.TotalDuration,
	}
	if session.SessionID != uuid.Nil {
		snap.SessionID = session.SessionID.String()
	}
	return snap, nil
}

// emit publishes the single event for a successful transition. A publish
// failure is logged, not surfaced: the stored session is already correct
// and reconnecting clients recover via the state fetch.
func (s *Service) emit(ctx context.Context, roomID uuid.UUID, eventType events.EventType, payload interface{}) {
	if err := s.publisher.Publish(ctx, roomID, eventType, payload); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID.String()).
			Str("event_type", string(eventType)).
			Msg("failed to publish timer event")
	}
}
