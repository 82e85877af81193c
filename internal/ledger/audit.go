package ledger

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/repository"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/security"
)

// AuditLog appends security events and admin actions. Record is safe to call
// inside the transaction of the mutation it documents, so an aborted
// mutation never leaves an orphaned audit entry. A failing audit write is
// logged locally and never fails the parent operation.
type AuditLog struct {
	repo     *repository.AuditRepository
	families *repository.FamilyRepository
	log      *slog.Logger
	now      func() time.Time
}

// Record appends a security event to the family's audit trail and bumps the
// activity counter. Severity comes from the fixed classification table.
func (a *AuditLog) Record(q database.DBTX, familyID int64, eventType string, details map[string]any) {
	payload := ""
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			a.log.Warn("failed to encode audit details", "event_type", eventType, "error", err)
		} else {
			payload = string(raw)
		}
	}

	event := &models.SecurityEvent{
		EventID:   security.GenerateEventID(),
		FamilyID:  familyID,
		EventType: eventType,
		Severity:  models.EventSeverity(eventType),
		Details:   payload,
		CreatedAt: a.now(),
	}

	if err := a.repo.RecordEvent(q, event); err != nil {
		a.log.Warn("failed to record security event", "family_id", familyID, "event_type", eventType, "error", err)
		return
	}
	if err := a.families.IncrementActivity(q, familyID); err != nil {
		a.log.Warn("failed to increment activity counter", "family_id", familyID, "error", err)
	}
}

// AdminAction appends a family-level admin-action log entry
func (a *AuditLog) AdminAction(q database.DBTX, familyID, actorID int64, action string, targetUserID *int64, details map[string]any) {
	payload := ""
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			a.log.Warn("failed to encode admin action details", "action", action, "error", err)
		} else {
			payload = string(raw)
		}
	}

	entry := &models.AdminAction{
		FamilyID:     familyID,
		ActorID:      actorID,
		Action:       action,
		TargetUserID: targetUserID,
		Details:      payload,
		CreatedAt:    a.now(),
	}

	if err := a.repo.RecordAdminAction(q, entry); err != nil {
		a.log.Warn("failed to record admin action", "family_id", familyID, "action", action, "error", err)
	}
}
