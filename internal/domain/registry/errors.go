package registry

import "errors"

// ErrSessionNotFound is returned when no entry exists for a session id.
var ErrSessionNotFound = errors.New("session not found")
