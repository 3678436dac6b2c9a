package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/studyhall/studyhall/go/internal/models"
)

// RoleLookup resolves the current role of an actor. Owned by the
// identity subsystem; the guard only consumes it.
type RoleLookup interface {
	ActorRole(ctx context.Context, actorID uuid.UUID) (models.UserRole, error)
}

// RoomLookup resolves the creator of a room.
type RoomLookup interface {
	RoomCreator(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error)
}

// Guard decides whether an actor may issue timer control commands for a
// room: elevated roles (moderator/admin) or the room's creator may, no
// one else. The check runs on every command and is never cached, since
// roles and ownership can change between commands.
type Guard struct {
	roles RoleLookup
	rooms RoomLookup
}

// NewGuard creates a control authority guard.
func NewGuard(roles RoleLookup, rooms RoomLookup) *Guard {
	return &Guard{roles: roles, rooms: rooms}
}

// CanControl reports whether the actor may control the room's timer.
func (g *Guard) CanControl(ctx context.Context, actorID, roomID uuid.UUID) (bool, error) {
	role, err := g.roles.ActorRole(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve actor role: %w", err)
	}
	if role.Elevated() {
		return true, nil
	}

	creator, err := g.rooms.RoomCreator(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve room creator: %w", err)
	}
	return creator == actorID, nil
}
