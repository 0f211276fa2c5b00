package types

import "time"

// ActivityEntry is the in-flight shape of an audit record before it is
// persisted by the async logger.
type ActivityEntry struct {
	UserID      string
	VisitID     string
	Action      string
	Description string
	IPAddress   string
	CreatedAt   time.Time
}
