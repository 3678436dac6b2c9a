package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/studyhall/studyhall/go/internal/models"
	"github.com/studyhall/studyhall/go/internal/timer"
)

// Handler exposes the timer command and state-fetch surface plus the
// WebSocket event stream.
type Handler struct {
	service           *timer.Service
	connectionManager *ConnectionManager
}

// NewHandler creates a gateway HTTP handler.
func NewHandler(service *timer.Service, cm *ConnectionManager) *Handler {
	return &Handler{service: service, connectionManager: cm}
}

// RegisterRoutes registers REST and WebSocket routes on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/rooms/{id}/timer/start", h.handleStart).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{id}/timer/pause", h.handlePause).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{id}/timer/reset", h.handleReset).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{id}/timer", h.handleSnapshot).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws/timer", h.handleTimerConnection).Methods(http.MethodGet)
	r.HandleFunc("/ws/stats", h.handleConnectionStats).Methods(http.MethodGet)
}

type commandFunc func(ctx context.Context, roomID, actorID uuid.UUID) (*models.TimerSession, error)

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.handleCommand(w, r, h.service.Start)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.handleCommand(w, r, h.service.Pause)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.handleCommand(w, r, h.service.Reset)
}

// handleCommand runs one control command and responds with the resulting
// timer snapshot.
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request, cmd commandFunc) {
	roomID, err := roomIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	actorID, err := actorIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	session, err := cmd(r.Context(), roomID, actorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionSnapshot(session))
}

// handleSnapshot is the synchronous state fetch late joiners use to seed
// their countdown before relying on the event stream.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := h.service.Snapshot(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleTimerConnection upgrades to a WebSocket subscription on a room's
// event stream.
func (h *Handler) handleTimerConnection(w http.ResponseWriter, r *http.Request) {
	roomIDStr := r.URL.Query().Get("room_id")
	if roomIDStr == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	roomID, err := uuid.Parse(roomIDStr)
	if err != nil {
		http.Error(w, "invalid room_id format", http.StatusBadRequest)
		return
	}

	// In production this would come from the session token.
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID, roomID); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

func (h *Handler) handleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, rooms := h.connectionManager.GetConnectionStats()
	writeJSON(w, http.StatusOK, map[string]int{
		"total_connections": total,
		"active_rooms":      rooms,
	})
}

func roomIDFromRequest(r *http.Request) (uuid.UUID, error) {
	idStr := mux.Vars(r)["id"]
	roomID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid room id %q", idStr)
	}
	return roomID, nil
}

func actorIDFromRequest(r *http.Request) (uuid.UUID, error) {
	idStr := r.Header.Get("X-Actor-ID")
	if idStr == "" {
		return uuid.Nil, errors.New("missing X-Actor-ID header")
	}
	actorID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid actor id %q", idStr)
	}
	return actorID, nil
}

// sessionSnapshot converts a freshly mutated session into the response
// shape; the anchor was just set, so the stored remaining is current.
func sessionSnapshot(session *models.TimerSession) *timer.Snapshot {
	snap := &timer.Snapshot{
		RoomID:        session.RoomID.String(),
		Phase:         session.Phase,
		SessionNumber: session.SessionNumber,
		Status:        session.Status,
		Remaining:     session.RemainingAtAnchor,
		TotalDuration: session.TotalDuration,
	}
	if session.SessionID != uuid.Nil {
		snap.SessionID = session.SessionID.String()
	}
	return snap
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timer.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, timer.ErrInvalidState), errors.Is(err, timer.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, timer.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		log.Error().Err(err).Msg("timer command failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
