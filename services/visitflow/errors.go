package visitflow

import (
	"errors"
	"fmt"

	"visitor-gate/models/visit"
)

var (
	// ErrNotFound means the visit id does not resolve to a row.
	ErrNotFound = errors.New("visit not found")
	// ErrVisitorNotFound means the visitor id does not resolve to a row.
	ErrVisitorNotFound = errors.New("visitor not found")
	// ErrForbidden means the actor lacks the role or relation the guard requires.
	ErrForbidden = errors.New("actor not authorized for this transition")
	// ErrBlacklisted blocks creation and check-in for blacklisted visitors.
	ErrBlacklisted = errors.New("visitor is blacklisted")
	// ErrTokenVisitMismatch means the token's embedded pass number does not
	// match the visit's current pass number.
	ErrTokenVisitMismatch = errors.New("token does not match the visit's current pass")
	// ErrStoreConflict means the conditional update lost a race; callers
	// should reload and retry once.
	ErrStoreConflict = errors.New("visit was modified concurrently")
	// ErrDuplicatePass is surfaced by the store when a freshly generated pass
	// number collides with an existing one.
	ErrDuplicatePass = errors.New("pass number already taken")
	// ErrExtensionOutOfRange bounds a single extension call.
	ErrExtensionOutOfRange = fmt.Errorf("extension must be between %d and %d minutes", MinExtensionMinutes, MaxExtensionMinutes)
)

// Event names a requested transition, for error payloads.
type Event string

const (
	EventCompleteRegistration Event = "complete_registration"
	EventApprove              Event = "approve"
	EventReject               Event = "reject"
	EventCheckIn              Event = "check_in"
	EventCheckOut             Event = "check_out"
	EventExtend               Event = "extend"
	EventCancel               Event = "cancel"
)

// InvalidTransitionError reports that the visit's current status does not
// permit the requested event. It always carries the current status so
// clients never have to infer state from message text.
type InvalidTransitionError struct {
	Current visit.Status
	Event   Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s visit with status %s", e.Event, e.Current)
}

// AsInvalidTransition unwraps err into an InvalidTransitionError if it is one.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}
