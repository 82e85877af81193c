package models

import "time"

// Security event severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityEvent is one entry in a virtual account's audit trail.
type SecurityEvent struct {
	ID        int64
	EventID   string
	FamilyID  int64
	EventType string
	Severity  string
	Details   string // JSON
	CreatedAt time.Time
}

// eventSeverities is the fixed classification table for audit events.
// Unlisted event types default to low.
var eventSeverities = map[string]string{
	"account_frozen":             SeverityHigh,
	"account_unfrozen":           SeverityHigh,
	"emergency_unfreeze":         SeverityHigh,
	"frozen_account_attempt":     SeverityHigh,
	"account_recovery":           SeverityHigh,
	"virtual_account_created":    SeverityMedium,
	"virtual_account_deleted":    SeverityMedium,
	"virtual_account_cleanup":    SeverityMedium,
	"nonzero_balance_discarded":  SeverityMedium,
	"permissions_updated":        SeverityMedium,
	"spending_denied":            SeverityMedium,
	"admin_promoted":             SeverityMedium,
	"admin_demoted":              SeverityMedium,
	"backup_admin_designated":    SeverityMedium,
	"backup_admin_removed":       SeverityMedium,
	"token_request_auto_approve": SeverityLow,
	"spending_approved":          SeverityLow,
}

// EventSeverity returns the severity for an event type per the fixed
// classification table.
func EventSeverity(eventType string) string {
	if s, ok := eventSeverities[eventType]; ok {
		return s
	}
	return SeverityLow
}

// AdminAction is a family-level log entry for a sensitive governance or
// permission mutation.
type AdminAction struct {
	ID           int64
	FamilyID     int64
	ActorID      int64
	Action       string
	TargetUserID *int64
	Details      string
	CreatedAt    time.Time
}
