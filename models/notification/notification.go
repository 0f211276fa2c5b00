package notification

import (
	"time"

	"visitor-gate/models/user"
)

// Kind is the machine-readable notification type delivered to clients.
type Kind string

const (
	KindVisitApprovalRequired  Kind = "VISIT_APPROVAL_REQUIRED"
	KindWalkInApprovalRequired Kind = "WALKIN_APPROVAL_REQUIRED"
	KindVisitApproved          Kind = "VISIT_APPROVED"
	KindVisitRejected          Kind = "VISIT_REJECTED"
	KindVisitorArrived         Kind = "VISITOR_ARRIVED"
	KindVisitorCheckedOut      Kind = "VISITOR_CHECKED_OUT"
)

// Notification is one in-app message for a user, written by the effect
// dispatcher after a transition commits.
type Notification struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User   user.User `gorm:"foreignKey:UserID" json:"user"`

	Title    string `gorm:"type:varchar(255);not null" json:"title"`
	Message  string `gorm:"type:text;not null" json:"message"`
	Kind     Kind   `gorm:"type:varchar(50);not null" json:"kind"`
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`
	IsRead   bool   `gorm:"not null;default:false" json:"is_read"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
