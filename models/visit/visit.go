package visit

import (
	"time"

	"visitor-gate/models/user"
	"visitor-gate/models/visitor"
)

// Visit is one scheduled or walk-in appointment between a visitor and a host
// employee, tracked through its own status lifecycle. Rows are append-only:
// cancellation and rejection are terminal statuses, never deletions.
type Visit struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	VisitorID string          `gorm:"type:varchar(36);not null;index" json:"visitor_id"`
	Visitor   visitor.Visitor `gorm:"foreignKey:VisitorID" json:"visitor"`

	HostEmployeeID string    `gorm:"type:varchar(36);not null;index" json:"host_employee_id"`
	HostEmployee   user.User `gorm:"foreignKey:HostEmployeeID" json:"host_employee"`

	Purpose        string `gorm:"type:varchar(100);not null;default:'OTHER'" json:"purpose"`
	PurposeDetails string `gorm:"type:text" json:"purpose_details,omitempty"`

	Status Status `gorm:"type:varchar(30);not null;index" json:"status"`

	ScheduledDate    time.Time  `gorm:"not null" json:"scheduled_date"`
	ScheduledTimeIn  time.Time  `gorm:"not null" json:"scheduled_time_in"`
	ScheduledTimeOut time.Time  `gorm:"not null" json:"scheduled_time_out"`
	ActualTimeIn     *time.Time `json:"actual_time_in,omitempty"`
	ActualTimeOut    *time.Time `json:"actual_time_out,omitempty"`

	ExtensionCount int        `gorm:"not null;default:0" json:"extension_count"`
	LastExtendedAt *time.Time `json:"last_extended_at,omitempty"`

	// PassNumber and QRCode are both null until the visit is approved, then
	// set exactly once and never reassigned.
	PassNumber *string `gorm:"type:varchar(50);unique" json:"pass_number,omitempty"`
	QRCode     *string `gorm:"type:text" json:"qr_code,omitempty"`

	ApprovedByID *string    `gorm:"type:varchar(36)" json:"approved_by_id,omitempty"`
	ApprovedBy   *user.User `gorm:"foreignKey:ApprovedByID" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`

	RejectionReason *string `gorm:"type:text" json:"rejection_reason,omitempty"`

	VehicleNumber       string `gorm:"type:varchar(50)" json:"vehicle_number,omitempty"`
	NumberOfGuests      int    `gorm:"not null;default:0" json:"number_of_guests"`
	GuestDetails        Guests `gorm:"type:json" json:"guest_details,omitempty"`
	SpecialInstructions string `gorm:"type:text" json:"special_instructions,omitempty"`

	IsWalkIn        bool    `gorm:"not null;default:false" json:"is_walk_in"`
	WalkInCreatedBy *string `gorm:"type:varchar(36)" json:"walk_in_created_by,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Visit) TableName() string {
	return "visits"
}

// HasPass reports whether the pass pair has been minted for this visit.
func (v *Visit) HasPass() bool {
	return v.PassNumber != nil && v.QRCode != nil
}
