package timer

import "errors"

// ErrForbidden is returned when the actor lacks control authority for the room.
var ErrForbidden = errors.New("actor not allowed to control room timer")

// ErrInvalidState is returned when a command is illegal for the current status.
var ErrInvalidState = errors.New("command not valid for current timer state")

// ErrConflict is returned when creating a session for a room that already has
// an active or paused one.
var ErrConflict = errors.New("timer session already exists for room")

// ErrNotFound is returned when a room has no timer session.
var ErrNotFound = errors.New("no timer session for room")

// ErrStaleCompletion marks a completion report whose session id has been
// superseded. It is logged and swallowed at the service boundary, never
// surfaced to callers as a failure.
var ErrStaleCompletion = errors.New("completion report references superseded session")
