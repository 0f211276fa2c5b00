package user

import (
	"time"
)

// Role determines which transition guards an account can satisfy.
type Role string

const (
	RoleAdmin           Role = "ADMIN"
	RoleProcessAdmin    Role = "PROCESS_ADMIN"
	RoleSecurityManager Role = "SECURITY_MANAGER"
	RoleSecurityGuard   Role = "SECURITY_GUARD"
	RoleHostEmployee    Role = "HOST_EMPLOYEE"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProcessAdmin, RoleSecurityManager, RoleSecurityGuard, RoleHostEmployee:
		return true
	default:
		return false
	}
}

// CanApprove reports whether the role satisfies the approver guard.
func (r Role) CanApprove() bool {
	return r == RoleProcessAdmin || r == RoleSecurityManager || r == RoleAdmin
}

// CanCheckOut reports whether the role may check a visitor out on the
// security path (hosts are matched by id, not role).
func (r Role) CanCheckOut() bool {
	return r == RoleSecurityGuard || r == RoleSecurityManager || r == RoleProcessAdmin || r == RoleAdmin
}

// User is a facility employee account: hosts, approvers, security staff.
type User struct {
	ID           string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string `gorm:"type:varchar(255);not null;unique" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	FirstName    string `gorm:"type:varchar(255);not null" json:"first_name"`
	LastName     string `gorm:"type:varchar(255);not null" json:"last_name"`
	Phone        string `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Department   string `gorm:"type:varchar(255)" json:"department,omitempty"`
	Role         Role   `gorm:"type:varchar(30);not null;default:'HOST_EMPLOYEE'" json:"role"`
	Status       string `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// FullName joins first and last name for notification messages.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
