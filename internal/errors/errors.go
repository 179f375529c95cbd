package errors

import (
	"errors"
	"fmt"
)

// Common error types for the authorization front end
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingCredentials = errors.New("missing credentials")

	// Ticket errors
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketExpired  = errors.New("ticket expired")
	ErrTicketUsed     = errors.New("ticket already used")

	// Decision backend errors
	ErrBackendUnavailable = errors.New("decision backend unavailable")
	ErrUnknownAction      = errors.New("unknown backend action")

	// Credential store errors
	ErrStoreLoad = errors.New("credential store failed to load")

	// General errors
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInternal      = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
