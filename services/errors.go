package services

import (
	"errors"
	"fmt"

	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

var (
	// ErrNotFound reports a missing user, post, thread or reaction.
	ErrNotFound = repository.ErrNotFound
	// ErrValidation reports a malformed reaction type or identifier.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned in strict mode when a user resubmits the
	// reaction type they already hold.
	ErrConflict = errors.New("conflict")
)

// IntegrityError describes a derived value that came out impossible. It is
// logged and the value clamped; it never reaches callers.
type IntegrityError struct {
	Scope string
	ID    uint
	Field string
	Value int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s %d has %s=%d", e.Scope, e.ID, e.Field, e.Value)
}

// ParseReactionType validates a client-supplied reaction type.
func ParseReactionType(s string) (models.ReactionType, error) {
	t, err := models.ParseReactionType(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return t, nil
}
