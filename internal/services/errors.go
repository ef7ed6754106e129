package services

import (
	"errors"
	"fmt"
)

// Common service errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrForbidden         = errors.New("access denied")
	ErrConflict          = errors.New("invalid state for this operation")
	ErrInvalidPassword   = errors.New("invalid credentials")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrScorerUnavailable = errors.New("scoring service unavailable")
)

// ScorerError carries the upstream status and body of a failed scoring
// call for diagnostics. It is never surfaced to API clients; the
// orchestrator absorbs it into a conservative rejected decision.
type ScorerError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ScorerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scorer error: %v", e.Err)
	}
	return fmt.Sprintf("scorer error: status %d: %s", e.StatusCode, e.Body)
}

func (e *ScorerError) Unwrap() error {
	return e.Err
}
