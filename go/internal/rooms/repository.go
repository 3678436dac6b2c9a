package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/studyhall/studyhall/go/internal/models"
)

// ErrRoomNotFound is returned when a room id resolves to nothing.
var ErrRoomNotFound = errors.New("room not found")

// ErrUserNotFound is returned when an actor id resolves to nothing.
var ErrUserNotFound = errors.New("user not found")

// Repository implements the identity/room lookups the timer guard
// consumes, backed by the platform's rooms and users tables.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a Postgres-backed rooms repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetRoom fetches a room by id.
func (r *Repository) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var room models.Room
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, creator_id, created_at FROM rooms WHERE id = $1`, roomID)
	err := row.Scan(&room.ID, &room.Name, &room.CreatorID, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// RoomCreator resolves the creator of a room.
func (r *Repository) RoomCreator(ctx context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return uuid.Nil, err
	}
	return room.CreatorID, nil
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, role, created_at FROM users WHERE id = $1`, userID)
	err := row.Scan(&user.ID, &user.Username, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ActorRole resolves the platform role of an actor.
func (r *Repository) ActorRole(ctx context.Context, actorID uuid.UUID) (models.UserRole, error) {
	user, err := r.GetUser(ctx, actorID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// MemoryRepository is an in-memory lookup source for tests and
// single-process deployments.
type MemoryRepository struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*models.Room
	roles map[uuid.UUID]models.UserRole
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms: make(map[uuid.UUID]*models.Room),
		roles: make(map[uuid.UUID]models.UserRole),
	}
}

// PutRoom registers a room.
func (r *MemoryRepository) PutRoom(room *models.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
}

// PutRole registers an actor's role.
func (r *MemoryRepository) PutRole(actorID uuid.UUID, role models.UserRole) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[actorID] = role
}

func (r *MemoryRepository) RoomCreator(_ context.Context, roomID uuid.UUID) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return uuid.Nil, ErrRoomNotFound
	}
	return room.CreatorID, nil
}

func (r *MemoryRepository) ActorRole(_ context.Context, actorID uuid.UUID) (models.UserRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[actorID]
	if !ok {
		// Unknown actors are plain members; authority then hinges on
		// room ownership alone.
		return models.UserRoleMember, nil
	}
	return role, nil
}
