package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ExpireFunc is invoked when a room's phase timer runs out. It receives
// the session id the timer was armed for, so a run superseded by reset
// is recognized downstream and dropped.
type ExpireFunc func(ctx context.Context, roomID, sessionID uuid.UUID)

// Sweep owns one-shot expiry timers keyed by room. Arming a room
// replaces any existing timer; pausing or resetting disarms it. The
// sweep makes natural completion server-authoritative: it fires whether
// or not any client is still connected.
type Sweep struct {
	clock  clockwork.Clock
	expire ExpireFunc

	mu     sync.Mutex
	ctx    context.Context
	timers map[uuid.UUID]clockwork.Timer
}

// New creates a sweep that calls expire when a room's timer fires.
func New(clock clockwork.Clock, expire ExpireFunc) *Sweep {
	return &Sweep{
		clock:  clock,
		expire: expire,
		ctx:    context.Background(),
		timers: make(map[uuid.UUID]clockwork.Timer),
	}
}

// Start binds the sweep to a process-lifetime context. Cancelling it
// stops every armed timer; timers armed afterwards stop immediately.
func (s *Sweep) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	log.Info().Msg("completion sweep started")
}

// Arm schedules expiry for a room's current run. Any previously armed
// timer for the room is cancelled first.
func (s *Sweep) Arm(roomID, sessionID uuid.UUID, expiresIn time.Duration) {
	timer := s.clock.NewTimer(expiresIn)

	s.mu.Lock()
	ctx := s.ctx
	if existing, exists := s.timers[roomID]; exists {
		stopAndDrainTimer(existing)
	}
	s.timers[roomID] = timer
	s.mu.Unlock()

	go func() {
		select {
		case <-timer.Chan():
			s.removeTimer(roomID, timer)
			s.expire(ctx, roomID, sessionID)
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			s.removeTimer(roomID, timer)
		}
	}()

	log.Debug().
		Str("room_id", roomID.String()).
		Str("session_id", sessionID.String()).
		Dur("expires_in", expiresIn).
		Msg("armed completion timer")
}

// Disarm cancels the room's expiry timer if one is armed.
func (s *Sweep) Disarm(roomID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.timers[roomID]; exists {
		stopAndDrainTimer(timer)
		delete(s.timers, roomID)
		log.Debug().Str("room_id", roomID.String()).Msg("disarmed completion timer")
	}
}

// removeTimer clears the room's slot, but only if it still holds the
// timer that fired; a replacement armed in the meantime stays.
func (s *Sweep) removeTimer(roomID uuid.UUID, fired clockwork.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timers[roomID] == fired {
		delete(s.timers, roomID)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, per the
// time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
