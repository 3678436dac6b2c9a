package reconcile

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/timer"
	"github.com/studyhall/studyhall/go/internal/timer/events"
)

// Engine reconstructs an observer's countdown from server-timestamped
// events and the local wall clock. It never accumulates local decrements:
// every start/resume event (or active snapshot) becomes a fresh anchor,
// and the displayed time is recomputed from the anchor on each render
// tick, which bounds clock drift to the interval since the last event.
// Duplicate delivery of an event is harmless for the same reason.
type Engine struct {
	clock clockwork.Clock

	mu             sync.Mutex
	phase          models.TimerPhase
	sessionNumber  int
	status         models.TimerStatus
	totalDuration  int
	localAnchor    time.Time // server timestamp of the last start/resume
	localRemaining int       // seconds remaining as of localAnchor
}

// View is what the engine exposes to the rendering layer on a tick.
type View struct {
	Phase         models.TimerPhase
	SessionNumber int
	Status        models.TimerStatus
	Remaining     int
	TotalDuration int
}

// NewEngine creates a reconciliation engine in the initial stopped state.
func NewEngine(clock clockwork.Clock) *Engine {
	e := &Engine{clock: clock}
	e.resetLocked()
	return e
}

func (e *Engine) resetLocked() {
	e.phase = models.TimerPhaseFocus
	e.sessionNumber = 1
	e.status = models.TimerStatusStopped
	e.totalDuration = timer.FocusDurationSec
	e.localRemaining = timer.FocusDurationSec
	e.localAnchor = time.Time{}
}

// SyncSnapshot seeds the engine from a synchronous state fetch. A late
// joiner or reconnecting client calls this before trusting the event
// stream; an active snapshot anchors on the local receive time, since
// the server already computed remaining at response time.
func (e *Engine) SyncSnapshot(snap *timer.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.phase = snap.Phase
	e.sessionNumber = snap.SessionNumber
	e.status = snap.Status
	e.totalDuration = snap.TotalDuration
	e.localRemaining = snap.Remaining
	if snap.Status == models.TimerStatusActive {
		e.localAnchor = e.clock.Now()
	} else {
		e.localAnchor = time.Time{}
	}
}

// ApplyEvent folds one broadcast event into the local state.
func (e *Engine) ApplyEvent(event *events.TimerEvent) error {
	payload, err := events.ParsePayload(event)
	if err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", event.Type, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch p := payload.(type) {
	case events.StartPayload:
		e.phase = models.TimerPhase(p.Phase)
		e.sessionNumber = p.SessionNumber
		e.status = models.TimerStatusActive
		e.totalDuration = p.DurationSec
		e.localRemaining = p.RemainingSec
		e.localAnchor = event.Timestamp

	case events.PausePayload:
		e.phase = models.TimerPhase(p.Phase)
		e.sessionNumber = p.SessionNumber
		e.status = models.TimerStatusPaused
		e.localRemaining = p.RemainingSec
		e.localAnchor = time.Time{}

	case events.ResetPayload:
		e.resetLocked()

	case events.CompletePayload:
		// Advance exactly as the server store does, pending the next
		// start event confirming it.
		e.phase = models.TimerPhase(p.NextPhase)
		e.sessionNumber = p.NextSessionNumber
		e.status = models.TimerStatusStopped
		e.totalDuration = p.DurationSec
		e.localRemaining = p.DurationSec
		e.localAnchor = time.Time{}

	default:
		// Unknown event types are ignored; the next state fetch heals
		// any divergence.
	}

	return nil
}

// Remaining computes the drift-corrected seconds to display right now.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *Engine) remainingLocked() int {
	if e.status != models.TimerStatusActive {
		return e.localRemaining
	}
	elapsed := int(e.clock.Now().Sub(e.localAnchor).Seconds())
	remaining := e.localRemaining - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Tick returns the full display view for a render tick.
func (e *Engine) Tick() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	return View{
		Phase:         e.phase,
		SessionNumber: e.sessionNumber,
		Status:        e.status,
		Remaining:     e.remainingLocked(),
		TotalDuration: e.totalDuration,
	}
}
