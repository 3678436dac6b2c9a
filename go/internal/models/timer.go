package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerPhase is one of the three fixed study-timer modes.
type TimerPhase string

const (
	TimerPhaseFocus     TimerPhase = "focus"
	TimerPhaseBreak     TimerPhase = "break"
	TimerPhaseLongBreak TimerPhase = "long_break"
)

// TimerStatus is the run state of a room's timer session.
type TimerStatus string

const (
	TimerStatusStopped TimerStatus = "stopped"
	TimerStatusActive  TimerStatus = "active"
	TimerStatusPaused  TimerStatus = "paused"
)

// TimerSession is the authoritative record for one room's timer.
// Exactly one session exists per room; it is mutated in place by control
// commands and survives process restarts through the session repository.
type TimerSession struct {
	RoomID            uuid.UUID   `json:"room_id"`
	SessionID         uuid.UUID   `json:"session_id"` // uuid.Nil while stopped
	Phase             TimerPhase  `json:"phase"`
	SessionNumber     int         `json:"session_number"`
	Status            TimerStatus `json:"status"`
	AnchorTimestamp   *time.Time  `json:"anchor_timestamp,omitempty"`
	RemainingAtAnchor int         `json:"remaining_at_anchor"` // seconds
	TotalDuration     int         `json:"total_duration"`      // seconds, derived from Phase
	ControlledBy      *uuid.UUID  `json:"controlled_by,omitempty"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// RemainingAt computes the seconds left in the current phase as observed
// at the given instant. Active sessions extrapolate from the anchor;
// paused and stopped sessions report the frozen value.
func (s *TimerSession) RemainingAt(now time.Time) int {
	if s.Status == TimerStatusActive && s.AnchorTimestamp != nil {
		elapsed := int(now.Sub(*s.AnchorTimestamp).Seconds())
		remaining := s.RemainingAtAnchor - elapsed
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return s.RemainingAtAnchor
}

// Clone returns a copy safe to hand outside the store's lock.
func (s *TimerSession) Clone() *TimerSession {
	out := *s
	if s.AnchorTimestamp != nil {
		t := *s.AnchorTimestamp
		out.AnchorTimestamp = &t
	}
	if s.ControlledBy != nil {
		id := *s.ControlledBy
		out.ControlledBy = &id
	}
	return &out
}
