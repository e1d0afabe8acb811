package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across features. Handlers translate these into
// HTTP statuses; repositories and services wrap them with context using %w.
var (
	ErrNotFound              = errors.New("requested item not found")
	ErrUsernameExists        = errors.New("username already exists")
	ErrEmailExists           = errors.New("email already exists")
	ErrUnauthenticated       = errors.New("authentication required or invalid credentials")
	ErrEmailNotVerified      = errors.New("email address not verified")
	ErrTokenInvalidOrExpired = errors.New("invalid or expired token")
	ErrForbidden             = errors.New("action forbidden")
	ErrValidation            = errors.New("invalid input")
)

// AccountLockedError reports a temporarily locked account together with the
// remaining lock time in whole minutes (rounded up), which is what the
// client is shown. It is never a raw timestamp.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked. Try again in %d minutes", e.RemainingMinutes)
}
