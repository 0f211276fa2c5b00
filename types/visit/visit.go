package visit

import (
	"errors"
	"time"

	visitModel "visitor-gate/models/visit"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrGuestManifestInvalid is returned at the API boundary when the supplied
// guest list does not line up with the declared guest count. The normalizer
// itself never errors; mismatches are rejected here before it runs.
var ErrGuestManifestInvalid = errors.New("guest details must match the declared number of guests")

// GuestInput is one caller-supplied accompanying-guest entry.
type GuestInput struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// CreateInvitationRequest creates a host-initiated visit in INVITED.
type CreateInvitationRequest struct {
	VisitorEmail     string `json:"visitor_email" validate:"required,email"`
	VisitorFirstName string `json:"visitor_first_name" validate:"required"`
	VisitorLastName  string `json:"visitor_last_name" validate:"required"`
	VisitorPhone     string `json:"visitor_phone"`
	VisitorCompany   string `json:"visitor_company"`

	Purpose        string `json:"purpose" validate:"required"`
	PurposeDetails string `json:"purpose_details"`

	ScheduledDate    time.Time `json:"scheduled_date" validate:"required"`
	ScheduledTimeIn  time.Time `json:"scheduled_time_in" validate:"required"`
	ScheduledTimeOut time.Time `json:"scheduled_time_out" validate:"required"`

	VehicleNumber       string       `json:"vehicle_number"`
	NumberOfGuests      int          `json:"number_of_guests" validate:"min=0,max=10"`
	Guests              []GuestInput `json:"guests"`
	SpecialInstructions string       `json:"special_instructions"`
}

func (r *CreateInvitationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validateManifest(r.NumberOfGuests, r.Guests)
}

// ReinviteRequest creates a visit for a known visitor in PENDING_APPROVAL.
type ReinviteRequest struct {
	VisitorID      string `json:"visitor_id" validate:"required"`
	Purpose        string `json:"purpose" validate:"required"`
	PurposeDetails string `json:"purpose_details"`

	ScheduledDate    time.Time `json:"scheduled_date" validate:"required"`
	ScheduledTimeIn  time.Time `json:"scheduled_time_in" validate:"required"`
	ScheduledTimeOut time.Time `json:"scheduled_time_out" validate:"required"`

	VehicleNumber       string       `json:"vehicle_number"`
	NumberOfGuests      int          `json:"number_of_guests" validate:"min=0,max=10"`
	Guests              []GuestInput `json:"guests"`
	SpecialInstructions string       `json:"special_instructions"`
}

func (r *ReinviteRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validateManifest(r.NumberOfGuests, r.Guests)
}

// CreateWalkInRequest registers a visitor already at reception.
type CreateWalkInRequest struct {
	VisitorEmail     string `json:"visitor_email" validate:"required,email"`
	VisitorFirstName string `json:"visitor_first_name" validate:"required"`
	VisitorLastName  string `json:"visitor_last_name" validate:"required"`
	VisitorPhone     string `json:"visitor_phone"`
	VisitorCompany   string `json:"visitor_company"`
	IDType           string `json:"id_type"`
	IDNumber         string `json:"id_number"`

	HostEmployeeID string `json:"host_employee_id" validate:"required"`
	Purpose        string `json:"purpose"`
	PurposeDetails string `json:"purpose_details"`
}

func (r *CreateWalkInRequest) Validate() error {
	return validate.Struct(r)
}

// RejectRequest carries the optional rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// CheckInByTokenRequest carries the scanned QR payload.
type CheckInByTokenRequest struct {
	QRData string `json:"qr_data" validate:"required"`
}

func (r *CheckInByTokenRequest) Validate() error {
	return validate.Struct(r)
}

// ExtendRequest bounds a single extension to 15–120 minutes.
type ExtendRequest struct {
	Minutes int `json:"minutes" validate:"required,min=15,max=120"`
}

func (r *ExtendRequest) Validate() error {
	return validate.Struct(r)
}

// MeetingStatusRequest backs the end-of-meeting prompt; it reuses check-out
// and extend, it is not a distinct transition.
type MeetingStatusRequest struct {
	IsOver bool `json:"is_over"`
}

// validateManifest rejects count/list mismatches before normalization.
func validateManifest(count int, guests []GuestInput) error {
	if count > 0 && len(guests) != count {
		return ErrGuestManifestInvalid
	}
	return nil
}

// ToGuests converts boundary guest inputs to the model type.
func ToGuests(in []GuestInput) []visitModel.Guest {
	out := make([]visitModel.Guest, len(in))
	for i, g := range in {
		out[i] = visitModel.Guest{Name: g.Name, Contact: g.Contact}
	}
	return out
}
