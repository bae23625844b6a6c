package queue

import "errors"

// Sentinel kinds for rejected enqueues.
var (
	ErrFull   = errors.New("queue is full")
	ErrClosed = errors.New("queue is closed")
)
