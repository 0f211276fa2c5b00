package activity

import (
	"time"
)

// Log is one audit-trail row recording who did what to which visit.
// Rows are written asynchronously by logger.AsyncLogger.
type Log struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID      *string `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	VisitID     *string `gorm:"type:varchar(36);index" json:"visit_id,omitempty"`
	Action      string  `gorm:"type:varchar(100);not null" json:"action"`
	Description string  `gorm:"type:text" json:"description,omitempty"`
	IPAddress   string  `gorm:"type:varchar(64)" json:"ip_address,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Log) TableName() string {
	return "activity_logs"
}
