package services

import (
	"errors"
	"fmt"

	"github.com/librarium/usermanagement/internal/store"
)

var (
	// ErrValidation marks a missing or invalid input field.
	ErrValidation = errors.New("validation error")
	// ErrDuplicateAccount is returned when the email is already registered.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrInvalidCredentials is returned for any failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("account not found")
	ErrForbidden          = errors.New("operation not permitted")
	// ErrStoreUnavailable wraps failures of the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeError maps repository failures onto service errors.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		return ErrDuplicateAccount
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
