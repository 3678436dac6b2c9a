package timer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/timer/events"
)

type fakeGuard struct {
	allowed map[uuid.UUID]bool
	err     error
}

func (g *fakeGuard) CanControl(_ context.Context, actorID, _ uuid.UUID) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return g.allowed[actorID], nil
}

type recordedEvent struct {
	roomID    uuid.UUID
	eventType events.EventType
	payload   interface{}
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, roomID uuid.UUID, eventType events.EventType, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, recordedEvent{roomID: roomID, eventType: eventType, payload: payload})
	return nil
}

type fakeScheduler struct {
	armed    map[uuid.UUID]uuid.UUID
	disarmed int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[uuid.UUID]uuid.UUID)}
}

func (s *fakeScheduler) Arm(roomID, sessionID uuid.UUID, _ time.Duration) {
	s.armed[roomID] = sessionID
}

func (s *fakeScheduler) Disarm(roomID uuid.UUID) {
	delete(s.armed, roomID)
	s.disarmed++
}

type serviceFixture struct {
	service   *Service
	guard     *fakeGuard
	publisher *fakePublisher
	scheduler *fakeScheduler
	clock     *clockwork.FakeClock
	roomID    uuid.UUID
	owner     uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	owner := uuid.New()
	guard := &fakeGuard{allowed: map[uuid.UUID]bool{owner: true}}
	publisher := &fakePublisher{}
	scheduler := newFakeScheduler()
	store := NewApp(NewMemoryRepository(), clock)

	return &serviceFixture{
		service:   NewService(store, guard, publisher, scheduler, clock),
		guard:     guard,
		publisher: publisher,
		scheduler: scheduler,
		clock:     clock,
		roomID:    uuid.New(),
		owner:     owner,
	}
}

func TestStartDeniedForPlainMember(t *testing.T) {
	f := newServiceFixture(t)
	stranger := uuid.New()

	if _, err := f.service.Start(context.Background(), f.roomID, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Start by stranger = %v, want ErrForbidden", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("denied command still published %d events", len(f.publisher.events))
	}
}

func TestStartCreatesAndEmitsOneEvent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	session, err := f.service.Start(ctx, f.roomID, f.owner)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.Phase != models.TimerPhaseFocus || session.SessionNumber != 1 {
		t.Fatalf("first start landed on %s/%d, want focus/1", session.Phase, session.SessionNumber)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.eventType != events.EventTypeTimerStart {
		t.Fatalf("event type = %s, want %s", ev.eventType, events.EventTypeTimerStart)
	}
	payload, ok := ev.payload.(events.StartPayload)
	if !ok {
		t.Fatalf("payload type = %T, want StartPayload", ev.payload)
	}
	if payload.RemainingSec != FocusDurationSec {
		t.Fatalf("payload remaining = %d, want %d", payload.RemainingSec, FocusDurationSec)
	}

	if f.scheduler.armed[f.roomID] != session.SessionID {
		t.Fatal("completion timer not armed for the started run")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.Start(ctx, f.roomID, f.owner); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := f.service.Start(ctx, f.roomID, f.owner); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("retried start published %d events, want 1", len(f.publisher.events))
	}
}

func TestPauseThenResumeEmitsResume(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.Start(ctx, f.roomID, f.owner); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(100 * time.Second)

	paused, err := f.service.Pause(ctx, f.roomID, f.owner)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused.RemainingAtAnchor != FocusDurationSec-100 {
		t.Fatalf("paused remaining = %d, want %d", paused.RemainingAtAnchor, FocusDurationSec-100)
	}
	if len(f.scheduler.armed) != 0 {
		t.Fatal("pause left the completion timer armed")
	}

	if _, err := f.service.Start(ctx, f.roomID, f.owner); err != nil {
		t.Fatalf("resume: %v", err)
	}

	types := make([]events.EventType, 0, len(f.publisher.events))
	for _, ev := range f.publisher.events {
		types = append(types, ev.eventType)
	}
	want := []events.EventType{
		events.EventTypeTimerStart,
		events.EventTypeTimerPause,
		events.EventTypeTimerResume,
	}
	if len(types) != len(want) {
		t.Fatalf("event sequence %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event sequence %v, want %v", types, want)
		}
	}
}

func TestPauseWithoutSession(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Pause(context.Background(), f.roomID, f.owner); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Pause with no session = %v, want ErrInvalidState", err)
	}
}

func TestResetDisarmsAndEmits(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.Start(ctx, f.roomID, f.owner); err != nil {
		t.Fatalf("Start: %v", err)
	}

	session, err := f.service.Reset(ctx, f.roomID, f.owner)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if session.Status != models.TimerStatusStopped || session.Phase != models.TimerPhaseFocus {
		t.Fatalf("reset landed on %s/%s, want stopped focus", session.Status, session.Phase)
	}
	if len(f.scheduler.armed) != 0 {
		t.Fatal("reset left the completion timer armed")
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.eventType != events.EventTypeTimerReset {
		t.Fatalf("last event = %s, want %s", last.eventType, events.EventTypeTimerReset)
	}
}

func TestReportCompletionEmitsComplete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	started, err := f.service.Start(ctx, f.roomID, f.owner)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(FocusDurationSec * time.Second)

	if err := f.service.ReportCompletion(ctx, f.roomID, started.SessionID); err != nil {
		t.Fatalf("ReportCompletion: %v", err)
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.eventType != events.EventTypeTimerComplete {
		t.Fatalf("last event = %s, want %s", last.eventType, events.EventTypeTimerComplete)
	}
	payload, ok := last.payload.(events.CompletePayload)
	if !ok {
		t.Fatalf("payload type = %T, want CompletePayload", last.payload)
	}
	if payload.NextPhase != string(models.TimerPhaseBreak) || payload.NextSessionNumber != 1 {
		t.Fatalf("completion advanced to %s/%d, want break/1", payload.NextPhase, payload.NextSessionNumber)
	}
}

func TestStaleCompletionIsDropped(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	started, err := f.service.Start(ctx, f.roomID, f.owner)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(FocusDurationSec * time.Second)
	if _, err := f.service.Reset(ctx, f.roomID, f.owner); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	eventsBefore := len(f.publisher.events)

	if err := f.service.ReportCompletion(ctx, f.roomID, started.SessionID); err != nil {
		t.Fatalf("stale ReportCompletion = %v, want nil", err)
	}
	if len(f.publisher.events) != eventsBefore {
		t.Fatal("stale completion emitted an event")
	}
}

func TestPublishFailureDoesNotFailCommand(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.err = errors.New("broker down")

	session, err := f.service.Start(context.Background(), f.roomID, f.owner)
	if err != nil {
		t.Fatalf("Start with failing publisher = %v, want nil", err)
	}
	if session.Status != models.TimerStatusActive {
		t.Fatalf("status = %s, want active", session.Status)
	}
}

func TestSnapshotComputesRemaining(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.Start(ctx, f.roomID, f.owner); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(42 * time.Second)

	snap, err := f.service.Snapshot(ctx, f.roomID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Remaining != FocusDurationSec-42 {
		t.Fatalf("snapshot remaining = %d, want %d", snap.Remaining, FocusDurationSec-42)
	}
	if snap.Status != models.TimerStatusActive {
		t.Fatalf("snapshot status = %s, want active", snap.Status)
	}
}
