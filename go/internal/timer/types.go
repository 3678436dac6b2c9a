package timer

import (
	"github.com/studyhall/studyhall/go/internal/models"
)

// Snapshot is the point-in-time view of a room's timer returned by the
// state fetch surface. Remaining is computed at response time for active
// sessions, so a late joiner can seed its countdown from it.
type Snapshot struct {
	RoomID        string             `json:"room_id"`
	SessionID     string             `json:"session_id,omitempty"`
	Phase         models.TimerPhase  `json:"phase"`
	SessionNumber int                `json:"session_number"`
	Status        models.TimerStatus `json:"status"`
	Remaining     int                `json:"remaining"`
	TotalDuration int                `json:"total_duration"`
}
