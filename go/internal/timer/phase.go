package timer

import "github.com/studyhall/studyhall/go/internal/models"

// Fixed phase durations in seconds. These are server constants and are
// never client-supplied.
const (
	FocusDurationSec     = 1500
	BreakDurationSec     = 300
	LongBreakDurationSec = 900

	// FocusSessionsPerCycle is how many focus sessions run before the
	// long break replaces the short one.
	FocusSessionsPerCycle = 4
)

// DurationOf returns the fixed duration of a phase in seconds.
func DurationOf(phase models.TimerPhase) int {
	switch phase {
	case models.TimerPhaseBreak:
		return BreakDurationSec
	case models.TimerPhaseLongBreak:
		return LongBreakDurationSec
	default:
		return FocusDurationSec
	}
}

// NextPhase returns the phase that follows a completed phase. A focus
// session whose number lands on the cycle boundary flows into the long
// break; every break flows back into focus.
func NextPhase(current models.TimerPhase, sessionNumber int) models.TimerPhase {
	if current == models.TimerPhaseFocus {
		if sessionNumber%FocusSessionsPerCycle == 0 {
			return models.TimerPhaseLongBreak
		}
		return models.TimerPhaseBreak
	}
	return models.TimerPhaseFocus
}

// NextSessionNumber returns the session counter after a completed phase.
// The counter advances as the next focus session begins, i.e. when a
// short break ends. Completing the long break closes out the cycle and
// the counter returns to 1.
func NextSessionNumber(current models.TimerPhase, sessionNumber int) int {
	switch current {
	case models.TimerPhaseBreak:
		return sessionNumber + 1
	case models.TimerPhaseLongBreak:
		return 1
	default:
		return sessionNumber
	}
}
