package events

import (
	"encoding/json"
	"time"
)

// EventType is the wire discriminator carried by every timer event.
type EventType string

const (
	EventTypeTimerStart    EventType = "timer-start"
	EventTypeTimerPause    EventType = "timer-pause"
	EventTypeTimerResume   EventType = "timer-resume"
	EventTypeTimerReset    EventType = "timer-reset"
	EventTypeTimerComplete EventType = "timer-complete"
)

// TimerEvent is the wire-level record broadcast to room subscribers.
// Events are transient; the stored TimerSession is the durable state
// they describe.
type TimerEvent struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"` // server clock, the client's anchor
	Data      json.RawMessage `json:"data"`
}

// StartPayload announces a fresh run or a resume of a room's timer.
// Clients anchor on Timestamp of the enclosing event and count down from
// RemainingSec.
type StartPayload struct {
	SessionID     string    `json:"session_id"`
	ActorID       string    `json:"actor_id"`
	Phase         string    `json:"phase"`
	SessionNumber int       `json:"session_number"`
	RemainingSec  int       `json:"remaining_sec"`
	DurationSec   int       `json:"duration_sec"`
	StartedAt     time.Time `json:"started_at"`
}

// PausePayload freezes the countdown at RemainingSec.
type PausePayload struct {
	SessionID     string    `json:"session_id"`
	ActorID       string    `json:"actor_id"`
	Phase         string    `json:"phase"`
	SessionNumber int       `json:"session_number"`
	RemainingSec  int       `json:"remaining_sec"`
	PausedAt      time.Time `json:"paused_at"`
}

// ResetPayload returns the room to the initial focus phase.
type ResetPayload struct {
	ActorID       string    `json:"actor_id"`
	Phase         string    `json:"phase"`
	SessionNumber int       `json:"session_number"`
	DurationSec   int       `json:"duration_sec"`
	ResetAt       time.Time `json:"reset_at"`
}

// CompletePayload announces natural expiry of a phase and the stopped
// state the room advanced into.
type CompletePayload struct {
	NextPhase         string    `json:"next_phase"`
	NextSessionNumber int       `json:"next_session_number"`
	DurationSec       int       `json:"duration_sec"`
	CompletedAt       time.Time `json:"completed_at"`
}

// ParsePayload decodes the event data into the payload struct for its type.
func ParsePayload(event *TimerEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeTimerStart, EventTypeTimerResume:
		var payload StartPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerPause:
		var payload PausePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerReset:
		var payload ResetPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerComplete:
		var payload CompletePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
