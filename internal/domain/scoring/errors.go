package scoring

import "errors"

// Sentinel error kinds for scoring failures.
var (
	ErrScoringFailed = errors.New("scoring failed")
	ErrEmptyResponse = errors.New("scoring returned no content")
	ErrBlocked       = errors.New("scoring request blocked")
	ErrUnsupported   = errors.New("unsupported game")
	ErrMissingAPIKey = errors.New("api key is required")
)
