package visitflow

import (
	"errors"
	"time"

	"visitor-gate/models/notification"
	"visitor-gate/models/user"
	"visitor-gate/models/visit"
	"visitor-gate/services/pass"

	"github.com/google/uuid"
)

const (
	MinExtensionMinutes = 15
	MaxExtensionMinutes = 120

	// WalkInDefaultWindow is the scheduled duration given to a walk-in visit.
	WalkInDefaultWindow = 2 * time.Hour

	passMintAttempts = 3
)

// Actor identifies who is requesting a transition. It is supplied by the
// authentication layer and trusted as-is; the engine only encodes which
// roles and relations satisfy each guard.
type Actor struct {
	ID   string
	Role user.Role
}

// Dispatcher receives effect intents after a transition commits. Delivery is
// fire-and-forget: implementations must never block the caller on failure,
// since the state change has already been persisted.
type Dispatcher interface {
	Notify(kind notification.Kind, v *visit.Visit)
}

// Service is the visit state machine. It validates every transition against
// the current status, performs the state change through the store's
// conditional update, and emits effect intents afterwards.
type Service struct {
	store      Store
	dispatcher Dispatcher
	codec      *pass.Codec
	now        func() time.Time
}

func NewService(store Store, dispatcher Dispatcher, codec *pass.Codec) *Service {
	return &Service{store: store, dispatcher: dispatcher, codec: codec, now: time.Now}
}

// NewServiceWithClock is NewService with an injected clock, for tests.
func NewServiceWithClock(store Store, dispatcher Dispatcher, codec *pass.Codec, now func() time.Time) *Service {
	return &Service{store: store, dispatcher: dispatcher, codec: codec, now: now}
}

// CreateInput carries the already-validated fields for a new visit. Visitor
// resolution (find-or-create by email) happens at the API boundary; the
// engine only sees resolved ids.
type CreateInput struct {
	VisitorID           string
	HostEmployeeID      string
	Purpose             string
	PurposeDetails      string
	ScheduledDate       time.Time
	ScheduledTimeIn     time.Time
	ScheduledTimeOut    time.Time
	VehicleNumber       string
	NumberOfGuests      int
	Guests              []visit.Guest
	SpecialInstructions string
}

// CreateFromInvitation starts a host-initiated visit in INVITED. The visitor
// must complete the registration form before approval.
func (s *Service) CreateFromInvitation(in CreateInput) (*visit.Visit, error) {
	v, err := s.newVisit(in, visit.StatusInvited)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVisit(v); err != nil {
		return nil, err
	}
	return s.store.LoadVisit(v.ID)
}

// CreateFromReinvite starts a visit for an already-known visitor directly in
// PENDING_APPROVAL, skipping the registration form.
func (s *Service) CreateFromReinvite(in CreateInput) (*visit.Visit, error) {
	v, err := s.newVisit(in, visit.StatusPendingApproval)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVisit(v); err != nil {
		return nil, err
	}
	created, err := s.store.LoadVisit(v.ID)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Notify(notification.KindVisitApprovalRequired, created)
	return created, nil
}

// CreateFromWalkIn starts a security-initiated visit in PENDING_APPROVAL
// with a default two-hour window from now.
func (s *Service) CreateFromWalkIn(in CreateInput, createdBy string) (*visit.Visit, error) {
	nowTime := s.now()
	in.ScheduledDate = nowTime
	in.ScheduledTimeIn = nowTime
	in.ScheduledTimeOut = nowTime.Add(WalkInDefaultWindow)
	if in.Purpose == "" {
		in.Purpose = "OTHER"
	}

	v, err := s.newVisit(in, visit.StatusPendingApproval)
	if err != nil {
		return nil, err
	}
	v.IsWalkIn = true
	v.WalkInCreatedBy = &createdBy

	if err := s.store.CreateVisit(v); err != nil {
		return nil, err
	}
	created, err := s.store.LoadVisit(v.ID)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Notify(notification.KindWalkInApprovalRequired, created)
	return created, nil
}

func (s *Service) newVisit(in CreateInput, initial visit.Status) (*visit.Visit, error) {
	vt, err := s.store.LoadVisitor(in.VisitorID)
	if err != nil {
		return nil, err
	}
	if vt.IsBlacklisted {
		return nil, ErrBlacklisted
	}

	count, guests := visit.NormalizeManifest(in.NumberOfGuests, in.Guests)

	return &visit.Visit{
		ID:                  uuid.NewString(),
		VisitorID:           in.VisitorID,
		HostEmployeeID:      in.HostEmployeeID,
		Purpose:             in.Purpose,
		PurposeDetails:      in.PurposeDetails,
		Status:              initial,
		ScheduledDate:       in.ScheduledDate,
		ScheduledTimeIn:     in.ScheduledTimeIn,
		ScheduledTimeOut:    in.ScheduledTimeOut,
		VehicleNumber:       in.VehicleNumber,
		NumberOfGuests:      count,
		GuestDetails:        guests,
		SpecialInstructions: in.SpecialInstructions,
		CreatedAt:           s.now(),
	}, nil
}

// CompleteRegistration moves an INVITED or PENDING_DETAILS visit to
// PENDING_APPROVAL once the visitor has filled in the registration form.
func (s *Service) CompleteRegistration(visitID string) (*visit.Visit, error) {
	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	if !v.Status.AwaitingRegistration() {
		return nil, &InvalidTransitionError{Current: v.Status, Event: EventCompleteRegistration}
	}
	if v.Visitor.IsBlacklisted {
		return nil, ErrBlacklisted
	}

	updated, err := s.store.ConditionalUpdate(visitID, v.Status, Patch{
		"status": visit.StatusPendingApproval,
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(notification.KindVisitApprovalRequired, updated)
	return updated, nil
}

// Approve moves a PENDING_APPROVAL visit to APPROVED and mints the pass
// number and signed QR token. This is the only place a pass is ever issued;
// the status guard plus the conditional update guarantee at-most-once
// issuance even under concurrent approvals.
func (s *Service) Approve(visitID string, actor Actor) (*visit.Visit, error) {
	if !actor.Role.CanApprove() {
		return nil, ErrForbidden
	}

	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	if v.Status != visit.StatusPendingApproval {
		return nil, &InvalidTransitionError{Current: v.Status, Event: EventApprove}
	}

	var updated *visit.Visit
	for attempt := 0; attempt < passMintAttempts; attempt++ {
		passNumber, err := s.codec.GeneratePassNumber()
		if err != nil {
			return nil, err
		}
		token, _, err := s.codec.IssueToken(visitID, passNumber)
		if err != nil {
			return nil, err
		}

		updated, err = s.store.ConditionalUpdate(visitID, visit.StatusPendingApproval, Patch{
			"status":         visit.StatusApproved,
			"pass_number":    passNumber,
			"qr_code":        token,
			"approved_by_id": actor.ID,
			"approved_at":    s.now(),
		})
		if errors.Is(err, ErrDuplicatePass) {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	if updated == nil {
		return nil, ErrDuplicatePass
	}

	s.dispatcher.Notify(notification.KindVisitApproved, updated)
	return updated, nil
}

// Reject moves a PENDING_APPROVAL visit to REJECTED, recording the reason.
func (s *Service) Reject(visitID string, actor Actor, reason string) (*visit.Visit, error) {
	if !actor.Role.CanApprove() {
		return nil, ErrForbidden
	}

	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	if v.Status != visit.StatusPendingApproval {
		return nil, &InvalidTransitionError{Current: v.Status, Event: EventReject}
	}

	patch := Patch{
		"status":         visit.StatusRejected,
		"approved_by_id": actor.ID,
		"approved_at":    s.now(),
	}
	if reason != "" {
		patch["rejection_reason"] = reason
	}

	updated, err := s.store.ConditionalUpdate(visitID, visit.StatusPendingApproval, patch)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(notification.KindVisitRejected, updated)
	return updated, nil
}

// CheckIn moves an APPROVED visit to CHECKED_IN and stamps the arrival time.
func (s *Service) CheckIn(visitID string, actor Actor) (*visit.Visit, error) {
	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	return s.checkInLoaded(v)
}

// CheckInByToken is the QR path: verify the token's signature and expiry,
// cross-check the embedded pass number against the stored one, then apply
// the same guard as a manual check-in. The cross-check defends against
// forged or stale pass tokens independently of the status guard.
func (s *Service) CheckInByToken(token string, actor Actor) (*visit.Visit, error) {
	visitID, passNumber, err := s.codec.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	if v.PassNumber == nil || *v.PassNumber != passNumber {
		return nil, ErrTokenVisitMismatch
	}

	return s.checkInLoaded(v)
}

func (s *Service) checkInLoaded(v *visit.Visit) (*visit.Visit, error) {
	if v.Status != visit.StatusApproved {
		return nil, &InvalidTransitionError{Current: v.Status, Event: EventCheckIn}
	}
	if v.Visitor.IsBlacklisted {
		return nil, ErrBlacklisted
	}

	updated, err := s.store.ConditionalUpdate(v.ID, visit.StatusApproved, Patch{
		"status":         visit.StatusCheckedIn,
		"actual_time_in": s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(notification.KindVisitorArrived, updated)
	return updated, nil
}

// CheckOut moves a CHECKED_IN visit to CHECKED_OUT. Checking out an already
// checked-out visit returns success without mutation, so duplicate gate-scan
// submissions are harmless.
func (s *Service) CheckOut(visitID string, actor Actor) (*visit.Visit, error) {
	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	if v.Status == visit.StatusCheckedOut {
		return v, nil
	}
	if v.Status != visit.StatusCheckedIn {
		return nil, &InvalidTransitionError{Current: v.Status, Event: EventCheckOut}
	}
	if actor.ID != v.HostEmployeeID && !actor.Role.CanCheckOut() {
		return nil, ErrForbidden
	}

	updated, err := s.store.ConditionalUpdate(visitID, visit.StatusCheckedIn, Patch{
		"status":          visit.StatusCheckedOut,
		"actual_time_out": s.now(),
	})
	if err != nil {
		return nil, err
	}

	// The host checking their own visitor out needs no notification.
	if actor.ID != updated.HostEmployeeID {
		s.dispatcher.Notify(notification.KindVisitorCheckedOut, updated)
	}
	return updated, nil
}

// Extend pushes the scheduled end of a CHECKED_IN visit out by the given
// number of minutes. The engine bounds a single call to [15, 120] minutes
// but puts no ceiling on how often a visit may be extended; that policy
// belongs to the caller.
func (s *Service) Extend(visitID string, minutes int) (*visit.Visit, error) {
	if minutes < MinExtensionMinutes || minutes > MaxExtensionMinutes {
		return nil, ErrExtensionOutOfRange
	}

	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	if v.Status != visit.StatusCheckedIn {
		return nil, &InvalidTransitionError{Current: v.Status, Event: EventExtend}
	}

	// The new end time and count are computed inside the UPDATE; values from
	// the read above would lose one extension when two extends race, since
	// the status check alone cannot serialize a self-loop transition.
	return s.store.ConditionalUpdate(visitID, visit.StatusCheckedIn, Patch{
		"scheduled_time_out": AddMinutes{Minutes: minutes},
		"extension_count":    Increment{Delta: 1},
		"last_extended_at":   s.now(),
	})
}

// Cancel moves a visit to CANCELLED. Only the host or an admin may cancel,
// and never once the visitor is on site or the visit has ended.
func (s *Service) Cancel(visitID string, actor Actor) (*visit.Visit, error) {
	v, err := s.store.LoadVisit(visitID)
	if err != nil {
		return nil, err
	}
	if actor.ID != v.HostEmployeeID && actor.Role != user.RoleAdmin {
		return nil, ErrForbidden
	}
	if !v.Status.IsCancellable() {
		return nil, &InvalidTransitionError{Current: v.Status, Event: EventCancel}
	}

	return s.store.ConditionalUpdate(visitID, v.Status, Patch{
		"status": visit.StatusCancelled,
	})
}

// CancelAllForBlacklistedVisitor sweeps every pending or future visit of a
// blacklisted visitor to CANCELLED and returns how many rows changed. Visits
// already terminal or in progress are untouched; a partial failure mid-bulk
// leaves the completed rows cancelled.
func (s *Service) CancelAllForBlacklistedVisitor(visitorID string) (int64, error) {
	return s.store.BulkCancelByVisitor(visitorID, visit.BlacklistCancellable())
}
