package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match on these with errors.Is; the specific errors
// below wrap exactly one kind.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidWindow    = errors.New("outside of allowed time window")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrTransientStore   = errors.New("transient store error")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
)

var (
	ErrEventNotFound      = fmt.Errorf("event %w", ErrNotFound)
	ErrInvitationNotFound = fmt.Errorf("invitation %w", ErrNotFound)
	ErrProfileNotFound    = fmt.Errorf("profile %w", ErrNotFound)

	ErrRegistrationClosed = fmt.Errorf("registration closed: %w", ErrInvalidWindow)
	ErrEventStarted       = fmt.Errorf("event already started: %w", ErrInvalidWindow)
	ErrSelectionNotDue    = fmt.Errorf("selection not due: %w", ErrInvalidWindow)
	ErrDeadlinePassed     = fmt.Errorf("invitation deadline passed: %w", ErrInvalidWindow)

	ErrCapacityReached = fmt.Errorf("waitlist full: %w", ErrCapacityExceeded)

	ErrEntrantNotFound = fmt.Errorf("entrant %w", ErrNotFound)

	ErrAlreadyAdmitted = errors.New("entrant already admitted")

	// ErrNotDeliverable means the recipient has no address on a delivery channel.
	ErrNotDeliverable = errors.New("recipient not reachable on this channel")
)

// IsSuccessLike reports whether err means the work was already done elsewhere.
func IsSuccessLike(err error) bool {
	return err == nil || errors.Is(err, ErrAlreadyProcessed)
}
