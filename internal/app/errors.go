package service

import (
	"errors"

	"github.com/okian/oratora/internal/adapters/blob"
	"github.com/okian/oratora/internal/adapters/mq/queue"
	"github.com/okian/oratora/internal/domain/registry"
)

// Error kinds returned by Service operations. Callers match them with errors.Is.
var (
	// ErrBadRequest is a missing or malformed field in a submission.
	ErrBadRequest = errors.New("bad request")
	// ErrSlotTaken is a second submission for an already claimed slot.
	ErrSlotTaken = errors.New("slot already submitted")
	// ErrInvalidState is an operation the session's current status does not allow.
	ErrInvalidState = errors.New("invalid session state")
	// ErrAudioTooLarge is an upload above the configured limit.
	ErrAudioTooLarge = errors.New("audio too large")

	ErrSessionNotFound = registry.ErrSessionNotFound
	ErrAudioNotFound   = blob.ErrNotFound
	ErrQueueFull       = queue.ErrFull
	ErrQueueClosed     = queue.ErrClosed
)
