package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/oratora/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrInvalidJSON = errors.New("invalid JSON data in wordList, integratedWords, or missedWords")
)

// OpError records the handler operation that failed, the kind the failure
// is classified as and the underlying cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WrapKind classifies err as kind.
func WrapKind(op string, kind, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// NewKind is a failure with no cause beyond its kind.
func NewKind(op string, kind error) *OpError {
	return &OpError{Op: op, Kind: kind}
}

// Wrap attaches op to err, keeping whatever kind err already carries.
func Wrap(op string, err error) *OpError {
	var oe *OpError
	if errors.As(err, &oe) && oe.Op == op {
		return oe
	}
	return &OpError{Op: op, Err: err}
}

// classify maps an error to its HTTP status and machine-readable code.
func classify(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidJSON), errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, service.ErrAudioNotFound):
		return http.StatusNotFound, "audio_not_found"
	case errors.Is(err, service.ErrSlotTaken):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, service.ErrAudioTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "audio_too_large"
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrQueueClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
