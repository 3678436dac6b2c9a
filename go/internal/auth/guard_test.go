package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/rooms"
)

func TestCanControl(t *testing.T) {
	creator := uuid.New()
	member := uuid.New()
	moderator := uuid.New()
	admin := uuid.New()
	roomID := uuid.New()
	otherRoomID := uuid.New()

	repo := rooms.NewMemoryRepository()
	repo.PutRoom(&models.Room{ID: roomID, Name: "study hall", CreatorID: creator})
	repo.PutRoom(&models.Room{ID: otherRoomID, Name: "quiet car", CreatorID: uuid.New()})
	repo.PutRole(creator, models.UserRoleMember)
	repo.PutRole(member, models.UserRoleMember)
	repo.PutRole(moderator, models.UserRoleModerator)
	repo.PutRole(admin, models.UserRoleAdmin)

	guard := NewGuard(repo, repo)

	tests := []struct {
		name    string
		actorID uuid.UUID
		roomID  uuid.UUID
		want    bool
	}{
		{"creator controls own room", creator, roomID, true},
		{"creator cannot control other rooms", creator, otherRoomID, false},
		{"plain member denied", member, roomID, false},
		{"moderator controls any room", moderator, roomID, true},
		{"moderator controls other rooms too", moderator, otherRoomID, true},
		{"admin controls any room", admin, roomID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guard.CanControl(context.Background(), tt.actorID, tt.roomID)
			if err != nil {
				t.Fatalf("CanControl: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CanControl = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanControlUnknownRoom(t *testing.T) {
	repo := rooms.NewMemoryRepository()
	member := uuid.New()
	repo.PutRole(member, models.UserRoleMember)

	guard := NewGuard(repo, repo)

	if _, err := guard.CanControl(context.Background(), member, uuid.New()); err == nil {
		t.Fatal("CanControl on unknown room succeeded, want error")
	}
}

// TestRoleChangeTakesEffectImmediately verifies authority is re-checked
// per command rather than cached.
func TestRoleChangeTakesEffectImmediately(t *testing.T) {
	actor := uuid.New()
	roomID := uuid.New()

	repo := rooms.NewMemoryRepository()
	repo.PutRoom(&models.Room{ID: roomID, Name: "late shift", CreatorID: uuid.New()})
	repo.PutRole(actor, models.UserRoleMember)

	guard := NewGuard(repo, repo)

	allowed, err := guard.CanControl(context.Background(), actor, roomID)
	if err != nil {
		t.Fatalf("CanControl: %v", err)
	}
	if allowed {
		t.Fatal("member allowed before promotion")
	}

	repo.PutRole(actor, models.UserRoleModerator)

	allowed, err = guard.CanControl(context.Background(), actor, roomID)
	if err != nil {
		t.Fatalf("CanControl after promotion: %v", err)
	}
	if !allowed {
		t.Fatal("promoted moderator still denied")
	}
}
