package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole is the platform-wide role of an actor.
type UserRole string

const (
	UserRoleMember    UserRole = "member"
	UserRoleModerator UserRole = "moderator"
	UserRoleAdmin     UserRole = "admin"
)

// Elevated reports whether the role grants timer control in any room.
func (r UserRole) Elevated() bool {
	return r == UserRoleModerator || r == UserRoleAdmin
}

// Room is the slice of the room record the timer subsystem needs:
// identity and creator. Chat, notes and membership live elsewhere.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatorID uuid.UUID `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}
