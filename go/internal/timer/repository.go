package timer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/sqlutil"
)

// SessionRepository persists one TimerSession row per room. The store is
// correct with the in-memory implementation for a single process; the
// Postgres implementation lets sessions survive restarts.
type SessionRepository interface {
	LoadSession(ctx context.Context, roomID uuid.UUID) (*models.TimerSession, error)
	SaveSession(ctx context.Context, session *models.TimerSession) error
}

// PostgresRepository implements SessionRepository on a timer_sessions
// table keyed by room_id.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed session repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const loadSessionQuery = `
SELECT room_id, session_id, phase, session_number, status,
       anchor_timestamp, remaining_at_anchor, total_duration,
       controlled_by, updated_at
FROM timer_sessions
WHERE room_id = $1`

const saveSessionQuery = `
INSERT INTO timer_sessions (
    room_id, session_id, phase, session_number, status,
    anchor_timestamp, remaining_at_anchor, total_duration,
    controlled_by, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (room_id) DO UPDATE SET
    session_id          = EXCLUDED.session_id,
    phase               = EXCLUDED.phase,
    session_number      = EXCLUDED.session_number,
    status              = EXCLUDED.status,
    anchor_timestamp    = EXCLUDED.anchor_timestamp,
    remaining_at_anchor = EXCLUDED.remaining_at_anchor,
    total_duration      = EXCLUDED.total_duration,
    controlled_by       = EXCLUDED.controlled_by,
    updated_at          = EXCLUDED.updated_at`

// LoadSession fetches the session for a room, or ErrNotFound.
func (r *PostgresRepository) LoadSession(ctx context.Context, roomID uuid.UUID) (*models.TimerSession, error) {
	var (
		s         models.TimerSession
		sessionID sql.NullString
		anchor    sql.NullTime
		actor     sql.NullString
	)

	row := r.db.QueryRowContext(ctx, loadSessionQuery, roomID)
	err := row.Scan(&s.RoomID, &sessionID, &s.Phase, &s.SessionNumber, &s.Status,
		&anchor, &s.RemainingAtAnchor, &s.TotalDuration, &actor, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timer session: %w", err)
	}

	if sessionID.Valid {
		id, err := uuid.Parse(sessionID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored session id: %w", err)
		}
		s.SessionID = id
	}
	if anchor.Valid {
		t := anchor.Time
		s.AnchorTimestamp = &t
	}
	if actor.Valid {
		id, err := uuid.Parse(actor.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored actor id: %w", err)
		}
		s.ControlledBy = &id
	}

	return &s, nil
}

// SaveSession upserts the session row for its room.
func (r *PostgresRepository) SaveSession(ctx context.Context, session *models.TimerSession) error {
	var sessionID interface{}
	if session.SessionID != uuid.Nil {
		sessionID = session.SessionID.String()
	}
	var anchor interface{}
	if session.AnchorTimestamp != nil {
		anchor = *session.AnchorTimestamp
	}
	var actor interface{}
	if session.ControlledBy != nil {
		actor = session.ControlledBy.String()
	}

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, saveSessionQuery,
			session.RoomID, sessionID, session.Phase, session.SessionNumber,
			session.Status, anchor, session.RemainingAtAnchor,
			session.TotalDuration, actor, session.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save timer session: %w", err)
	}
	return nil
}

// MemoryRepository is an in-memory SessionRepository for tests and
// single-process deployments.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.TimerSession
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[uuid.UUID]*models.TimerSession)}
}

func (r *MemoryRepository) LoadSession(_ context.Context, roomID uuid.UUID) (*models.TimerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) SaveSession(_ context.Context, session *models.TimerSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.RoomID] = session.Clone()
	return nil
}
