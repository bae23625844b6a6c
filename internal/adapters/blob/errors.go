package blob

import "errors"

// Sentinel kinds for blob store errors.
var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
	ErrTooLarge   = errors.New("blob too large")
)
