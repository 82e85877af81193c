package repository

import (
	"database/sql"
	"fmt"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// AuditRepository handles database operations for the security-event audit
// trail and the family admin-action log.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordEvent appends a security event to the family's audit trail
func (r *AuditRepository) RecordEvent(q database.DBTX, e *models.SecurityEvent) error {
	id, err := q.ExecReturningID(
		`INSERT INTO security_events (event_id, family_id, event_type, severity, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.FamilyID, e.EventType, e.Severity, e.Details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record security event: %w", err)
	}
	e.ID = id
	return nil
}

// RecordAdminAction appends an admin-action log entry
func (r *AuditRepository) RecordAdminAction(q database.DBTX, a *models.AdminAction) error {
	id, err := q.ExecReturningID(
		`INSERT INTO admin_actions (family_id, actor_id, action, target_user_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.FamilyID, a.ActorID, a.Action, a.TargetUserID, a.Details, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record admin action: %w", err)
	}
	a.ID = id
	return nil
}

// ListEvents returns a family's security events, newest first
func (r *AuditRepository) ListEvents(familyID int64, limit int) ([]models.SecurityEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, event_id, family_id, event_type, severity, details, created_at
		 FROM security_events WHERE family_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		familyID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	defer rows.Close()

	var events []models.SecurityEvent
	for rows.Next() {
		var e models.SecurityEvent
		var details sql.NullString
		err := rows.Scan(&e.ID, &e.EventID, &e.FamilyID, &e.EventType, &e.Severity, &details, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		e.Details = details.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteByFamily removes audit rows scoped to a family
func (r *AuditRepository) DeleteByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM security_events WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete security events: %w", err)
	}
	if _, err := q.Exec(`DELETE FROM admin_actions WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete admin actions: %w", err)
	}
	return nil
}
