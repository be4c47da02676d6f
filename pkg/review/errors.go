package review

import (
	"errors"
	"fmt"
)

// ErrAccessDenied is returned when the caller's identity holds no active
// grant. It is raised before any generation call.
var ErrAccessDenied = errors.New("review: no active subscription")

// Validation failure reasons.
const (
	ReasonEmpty    = "empty"
	ReasonTooShort = "too_short"
	ReasonTooLong  = "too_long"
	ReasonHints    = "hints"
)

// ValidationError reports input rejected before any classification work.
type ValidationError struct {
	Reason string
	Length int
	Limit  int
}

func (e *ValidationError) Error() string {
	return "review: invalid input: " + e.Message()
}

// Message is the user-facing description.
func (e *ValidationError) Message() string {
	switch e.Reason {
	case ReasonEmpty:
		return "Please paste a case note"
	case ReasonTooShort:
		return fmt.Sprintf("Case note is too short (minimum %d characters)", e.Limit)
	case ReasonTooLong:
		return fmt.Sprintf("Case note is too long (maximum %d characters)", e.Limit)
	case ReasonHints:
		return fmt.Sprintf("Too many context hints (maximum %d)", e.Limit)
	default:
		return "Invalid case note"
	}
}

// UpstreamError reports a failed or malformed generation. No partial result
// accompanies it.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "review: generation error: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
