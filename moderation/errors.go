package moderation

import (
	"errors"
	"fmt"

	"github.com/forumkit/steward/comments"
	"github.com/forumkit/steward/reputation"
	"github.com/forumkit/steward/store"
)

// Malformed client input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var (
	ErrRateLimited       = errors.New("rate limited: posting too frequently")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid moderation transition")

	ErrNotFound       = store.ErrNotFound
	ErrDepthLimit     = comments.ErrDepthLimit
	ErrLocked         = comments.ErrLocked
	ErrParentMismatch = comments.ErrParentMismatch
)

// Reports whether err was caused by bad input rather than state or infrastructure.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, target := range []error{
		comments.ErrDepthLimit,
		comments.ErrParentMismatch,
		comments.ErrNotPost,
		comments.ErrNotComment,
		reputation.ErrUnknownAction,
		reputation.ErrUnknownViolation,
		reputation.ErrUnknownStatistic,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
