package logger

import (
	"log"
	"time"

	activityModel "visitor-gate/models/activity"
	"visitor-gate/types"

	"gorm.io/gorm"
)

// AsyncLogger persists visit activity entries off the request path. Audit
// writes must never slow down or fail a transition that already committed.
type AsyncLogger struct {
	db      *gorm.DB
	channel chan types.ActivityEntry
}

func NewAsyncLogger(db *gorm.DB) *AsyncLogger {
	return &AsyncLogger{
		db:      db,
		channel: make(chan types.ActivityEntry, 100), // Buffered channel to hold activity entries
	}
}

// ProcessLog drains the channel and writes activity rows. Run it in its own
// goroutine at startup.
func (logger *AsyncLogger) ProcessLog() {
	log.Println("Starting asynchronous activity logger...")

	for entry := range logger.channel {
		dbLog := activityModel.Log{
			Action:      entry.Action,
			Description: entry.Description,
			IPAddress:   entry.IPAddress,
			CreatedAt:   entry.CreatedAt,
		}
		if entry.UserID != "" {
			userID := entry.UserID
			dbLog.UserID = &userID
		}
		if entry.VisitID != "" {
			visitID := entry.VisitID
			dbLog.VisitID = &visitID
		}

		if err := logger.db.Create(&dbLog).Error; err != nil {
			log.Printf("Failed to insert activity entry: %v", err)
		}
	}
}

// Log pushes an activity entry into the channel.
func (logger *AsyncLogger) Log(entry types.ActivityEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	logger.channel <- entry
}
