package timer

import (
	"testing"

	"github.com/studyhall/studyhall/go/internal/models"
)

func TestDurationOf(t *testing.T) {
	if got := DurationOf(models.TimerPhaseFocus); got != FocusDurationSec {
		t.Fatalf("focus duration = %d, want %d", got, FocusDurationSec)
	}
	if got := DurationOf(models.TimerPhaseBreak); got != BreakDurationSec {
		t.Fatalf("break duration = %d, want %d", got, BreakDurationSec)
	}
	if got := DurationOf(models.TimerPhaseLongBreak); got != LongBreakDurationSec {
		t.Fatalf("long break duration = %d, want %d", got, LongBreakDurationSec)
	}
}

func TestNextPhase(t *testing.T) {
	tests := []struct {
		name          string
		phase         models.TimerPhase
		sessionNumber int
		want          models.TimerPhase
	}{
		{"first focus flows into break", models.TimerPhaseFocus, 1, models.TimerPhaseBreak},
		{"mid-cycle focus flows into break", models.TimerPhaseFocus, 3, models.TimerPhaseBreak},
		{"fourth focus flows into long break", models.TimerPhaseFocus, 4, models.TimerPhaseLongBreak},
		{"eighth focus flows into long break", models.TimerPhaseFocus, 8, models.TimerPhaseLongBreak},
		{"break flows back into focus", models.TimerPhaseBreak, 2, models.TimerPhaseFocus},
		{"long break flows back into focus", models.TimerPhaseLongBreak, 4, models.TimerPhaseFocus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextPhase(tt.phase, tt.sessionNumber); got != tt.want {
				t.Fatalf("NextPhase(%s, %d) = %s, want %s", tt.phase, tt.sessionNumber, got, tt.want)
			}
		})
	}
}

func TestNextSessionNumber(t *testing.T) {
	tests := []struct {
		name          string
		phase         models.TimerPhase
		sessionNumber int
		want          int
	}{
		{"focus completion keeps the counter", models.TimerPhaseFocus, 1, 1},
		{"break completion advances the counter", models.TimerPhaseBreak, 1, 2},
		{"long break completion closes the cycle", models.TimerPhaseLongBreak, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextSessionNumber(tt.phase, tt.sessionNumber); got != tt.want {
				t.Fatalf("NextSessionNumber(%s, %d) = %d, want %d", tt.phase, tt.sessionNumber, got, tt.want)
			}
		})
	}
}

// TestFullCycle walks a complete four-focus cycle through the phase
// functions and checks it lands back at focus session 1.
func TestFullCycle(t *testing.T) {
	phase := models.TimerPhaseFocus
	number := 1

	wantPhases := []models.TimerPhase{
		models.TimerPhaseBreak, models.TimerPhaseFocus,
		models.TimerPhaseBreak, models.TimerPhaseFocus,
		models.TimerPhaseBreak, models.TimerPhaseFocus,
		models.TimerPhaseLongBreak, models.TimerPhaseFocus,
	}

	for i, want := range wantPhases {
		nextPhase := NextPhase(phase, number)
		nextNumber := NextSessionNumber(phase, number)
		if nextPhase != want {
			t.Fatalf("step %d: phase = %s, want %s (from %s/%d)", i, nextPhase, want, phase, number)
		}
		phase, number = nextPhase, nextNumber
	}

	if phase != models.TimerPhaseFocus || number != 1 {
		t.Fatalf("after full cycle: %s/%d, want focus/1", phase, number)
	}
}
