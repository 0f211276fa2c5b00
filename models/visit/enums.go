package visit

// Status is the single source of truth for every business rule applied to a
// visit. All transitions between statuses go through services/visitflow.
type Status string

const (
	StatusInvited         Status = "INVITED"
	StatusPendingDetails  Status = "PENDING_DETAILS"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusCheckedIn       Status = "CHECKED_IN"
	StatusCheckedOut      Status = "CHECKED_OUT"
	StatusCancelled       Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusInvited, StatusPendingDetails, StatusPendingApproval, StatusApproved,
		StatusRejected, StatusCheckedIn, StatusCheckedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further transition can leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCheckedOut || s == StatusCancelled
}

// IsCancellable returns true if the visit may still be cancelled by its host
// or an admin. Checked-in visitors must be checked out, not cancelled.
func (s Status) IsCancellable() bool {
	switch s {
	case StatusCheckedIn, StatusCheckedOut, StatusCancelled:
		return false
	default:
		return true
	}
}

// AwaitingRegistration returns true while the invited visitor still has to
// complete the registration form.
func (s Status) AwaitingRegistration() bool {
	return s == StatusInvited || s == StatusPendingDetails
}

// GetAllStatuses returns every valid visit status.
func GetAllStatuses() []Status {
	return []Status{
		StatusInvited,
		StatusPendingDetails,
		StatusPendingApproval,
		StatusApproved,
		StatusRejected,
		StatusCheckedIn,
		StatusCheckedOut,
		StatusCancelled,
	}
}

// BlacklistCancellable lists the statuses swept to CANCELLED when the
// visitor is blacklisted. Terminal and in-progress visits are left alone.
func BlacklistCancellable() []Status {
	return []Status{
		StatusInvited,
		StatusPendingDetails,
		StatusPendingApproval,
		StatusApproved,
	}
}
