package models

import "time"

// Notification is a persisted family notification. Delivery (email) happens
// out of band; this row is what the transport layer lists back to users.
type Notification struct {
	ID        int64
	FamilyID  int64
	UserID    int64
	Type      string
	Title     string
	Message   string
	Data      string // JSON payload for the client
	CreatedAt time.Time
	ReadAt    *time.Time
}
