package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Terminal pipeline outcomes: the processor persists these on the
	// summary record and returns normally, so the queue never retries them.
	ErrNoRecording            = errors.New("no recording available for this call")
	ErrInsufficientTranscript = errors.New("transcript has insufficient content for analysis")

	// PBX client errors
	ErrPBXUnauthorized = errors.New("pbx authentication failed")
	ErrPBXUnavailable  = errors.New("pbx api unavailable")
)

// IsTerminal reports whether err is a recognized non-retryable business
// outcome rather than a transient failure.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNoRecording) || errors.Is(err, ErrInsufficientTranscript)
}
