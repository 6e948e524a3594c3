package models

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. The gateway maps these to HTTP statuses; the
// propagation pipeline keeps its transient failures internal and never
// surfaces them to the original writer.
var (
	// ErrNotFound: id unknown or logically deleted.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: authenticated principal is not the owner.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated: missing or invalid session credential.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError reports malformed or out-of-range input. It is always
// caller-fixable and never retried by the system.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
