package visitor

import (
	"time"
)

// Visitor is a reusable identity keyed by email. One visitor can accumulate
// many visits over time; the blacklist flag gates every new visit and every
// check-in for that identity.
type Visitor struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string `gorm:"type:varchar(255);not null;unique" json:"email"`
	FirstName string `gorm:"type:varchar(255);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(255);not null" json:"last_name"`
	Phone     string `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Company   string `gorm:"type:varchar(255)" json:"company,omitempty"`
	IDType    string `gorm:"type:varchar(50)" json:"id_type,omitempty"`
	IDNumber  string `gorm:"type:varchar(100)" json:"id_number,omitempty"`

	IsBlacklisted   bool    `gorm:"not null;default:false" json:"is_blacklisted"`
	BlacklistReason *string `gorm:"type:text" json:"blacklist_reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Visitor) TableName() string {
	return "visitors"
}

// FullName joins first and last name for notification messages.
func (v *Visitor) FullName() string {
	return v.FirstName + " " + v.LastName
}
