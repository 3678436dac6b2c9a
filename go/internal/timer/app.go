package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/studyhall/studyhall/go/internal/models"
)

// App is the timer state store. It owns the per-room TimerSession index
// and serializes mutations per room: operations on the same room take the
// room's lock, operations on different rooms run in parallel. Nothing
// outside this package writes a session directly.
type App struct {
	repo  SessionRepository
	clock clockwork.Clock

	mu    sync.Mutex
	rooms map[uuid.UUID]*roomEntry
}

type roomEntry struct {
	mu      sync.Mutex
	session *models.TimerSession // nil until loaded or created
	loaded  bool
}

// NewApp creates a timer state store backed by the given repository.
func NewApp(repo SessionRepository, clock clockwork.Clock) *App {
	return &App{
		repo:  repo,
		clock: clock,
		rooms: make(map[uuid.UUID]*roomEntry),
	}
}

// entry returns the lock-carrying index slot for a room, creating it on
// first touch.
func (a *App) entry(roomID uuid.UUID) *roomEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.rooms[roomID]
	if !ok {
		e = &roomEntry{}
		a.rooms[roomID] = e
	}
	return e
}

// load populates the entry from the repository once. Callers hold e.mu.
func (a *App) load(ctx context.Context, roomID uuid.UUID, e *roomEntry) error {
	if e.loaded {
		return nil
	}
	session, err := a.repo.LoadSession(ctx, roomID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	e.session = session
	e.loaded = true
	return nil
}

// commit persists the candidate session and only then replaces the
// in-memory state, so a failed write leaves no partial mutation.
func (a *App) commit(ctx context.Context, e *roomEntry, candidate *models.TimerSession) error {
	candidate.UpdatedAt = a.clock.Now()
	if err := a.repo.SaveSession(ctx, candidate); err != nil {
		return err
	}
	e.session = candidate
	return nil
}

// Get returns a copy of the room's session, or ErrNotFound.
func (a *App) Get(ctx context.Context, roomID uuid.UUID) (*models.TimerSession, error) {
	e := a.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := a.load(ctx, roomID, e); err != nil {
		return nil, err
	}
	if e.session == nil {
		return nil, ErrNotFound
	}
	return e.session.Clone(), nil
}

// Create initializes a stopped session for a room that has none. It
// fails with ErrConflict if an active or paused session already exists;
// callers must reset first.
func (a *App) Create(ctx context.Context, roomID uuid.UUID, phase models.TimerPhase, sessionNumber int) (*models.TimerSession, error) {
	e := a.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := a.load(ctx, roomID, e); err != nil {
		return nil, err
	}
	if e.session != nil && e.session.Status != models.TimerStatusStopped {
		return nil, fmt.Errorf("%w: room %s is %s", ErrConflict, roomID, e.session.Status)
	}

	candidate := &models.TimerSession{
		RoomID:            roomID,
		Phase:             phase,
		SessionNumber:     sessionNumber,
		Status:            models.TimerStatusStopped,
		RemainingAtAnchor: DurationOf(phase),
		TotalDuration:     DurationOf(phase),
	}
	if err := a.commit(ctx, e, candidate); err != nil {
		return nil, err
	}
	return candidate.Clone(), nil
}

// ApplyStart transitions stopped|paused → active. Resuming from paused
// keeps the frozen remaining time and the session id; starting from
// stopped begins a fresh run with a new session id and the full phase
// duration. Starting an already-active session is a no-op.
func (a *App) ApplyStart(ctx context.Context, roomID uuid.UUID, actorID uuid.UUID) (*models.TimerSession, error) {
	e := a.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := a.load(ctx, roomID, e); err != nil {
		return nil, err
	}
	if e.session == nil {
		return nil, ErrNotFound
	}
	if e.session.Status == models.TimerStatusActive {
		return e.session.Clone(), nil
	}

	now := a.clock.Now()
	candidate := e.session.Clone()
	candidate.Status = models.TimerStatusActive
	candidate.AnchorTimestamp = &now
	candidate.ControlledBy = &actorID
	if candidate.SessionID == uuid.Nil {
		// Fresh run of the stored phase, not a resume.
		candidate.SessionID = uuid.New()
		candidate.RemainingAtAnchor = candidate.TotalDuration
	}

	if err := a.commit(ctx, e, candidate); err != nil {
		return nil, err
	}
	return candidate.Clone(), nil
}

// ApplyPause transitions active → paused, freezing the remaining time as
// of now. Any other status is ErrInvalidState.
func (a *App) ApplyPause(ctx context.Context, roomID uuid.UUID, actorID uuid.UUID) (*models.TimerSession, error) {
	e := a.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := a.load(ctx, roomID, e); err != nil {
		return nil, err
	}
	if e.session == nil || e.session.Status != models.TimerStatusActive {
		return nil, fmt.Errorf("%w: pause requires an active session", ErrInvalidState)
	}

	candidate := e.session.Clone()
	candidate.RemainingAtAnchor = candidate.RemainingAt(a.clock.Now())
	candidate.Status = models.TimerStatusPaused
	candidate.AnchorTimestamp = nil
	candidate.ControlledBy = &actorID

	if err := a.commit(ctx, e, candidate); err != nil {
		return nil, err
	}
	return candidate.Clone(), nil
}

// ApplyReset unconditionally returns the room to the initial state:
// stopped, focus phase, session 1, session id cleared. Resetting an
// already-stopped room succeeds as a no-op.
func (a *App) ApplyReset(ctx context.Context, roomID uuid.UUID, actorID uuid.UUID) (*models.TimerSession, error) {
	e := a.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := a.load(ctx, roomID, e); err != nil {
		return nil, err
	}

	candidate := &models.TimerSession{
		RoomID:            roomID,
		Phase:             models.TimerPhaseFocus,
		SessionNumber:     1,
		Status:            models.TimerStatusStopped,
		RemainingAtAnchor: FocusDurationSec,
		TotalDuration:     FocusDurationSec,
		ControlledBy:      &actorID,
	}
	if err := a.commit(ctx, e, candidate); err != nil {
		return nil, err
	}
	return candidate.Clone(), nil
}

// ApplyCompletion handles natural expiry of an active session: the room
// advances to the next phase and session number in stopped state, pending
// an explicit start. Reports carrying a superseded session id fail with
// ErrStaleCompletion; reports for a session that still has time left fail
// with ErrInvalidState.
func (a *App) ApplyCompletion(ctx context.Context, roomID uuid.UUID, sessionID uuid.UUID) (*models.TimerSession, error) {
	e := a.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := a.load(ctx, roomID, e); err != nil {
		return nil, err
	}
	if e.session == nil || e.session.SessionID != sessionID {
		return nil, ErrStaleCompletion
	}
	if e.session.Status != models.TimerStatusActive {
		return nil, fmt.Errorf("%w: completion requires an active session", ErrInvalidState)
	}
	if e.session.RemainingAt(a.clock.Now()) > 0 {
		return nil, fmt.Errorf("%w: session has time remaining", ErrInvalidState)
	}

	nextPhase := NextPhase(e.session.Phase, e.session.SessionNumber)
	nextNumber := NextSessionNumber(e.session.Phase, e.session.SessionNumber)

	candidate := e.session.Clone()
	candidate.SessionID = uuid.Nil
	candidate.Phase = nextPhase
	candidate.SessionNumber = nextNumber
	candidate.Status = models.TimerStatusStopped
	candidate.AnchorTimestamp = nil
	candidate.RemainingAtAnchor = DurationOf(nextPhase)
	candidate.TotalDuration = DurationOf(nextPhase)

	if err := a.commit(ctx, e, candidate); err != nil {
		return nil, err
	}

	log.Debug().
		Str("room_id", roomID.String()).
		Str("next_phase", string(nextPhase)).
		Int("session_number", nextNumber).
		Msg("timer phase completed")

	return candidate.Clone(), nil
}
