package repository

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// InvitationRepository handles database operations for family invitations
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// GenerateToken generates a high-entropy single-use invitation token
func (r *InvitationRepository) GenerateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

const invitationCols = `i.id, i.token, i.family_id, i.inviter_id, i.invitee_id, i.invitee_email,
	i.relationship_type, i.status, i.created_at, i.expires_at, i.responded_at, u.username`

func scanInvitation(scanner interface{ Scan(...any) error }) (*models.Invitation, error) {
	var inv models.Invitation
	var inviteeID sql.NullInt64
	var respondedAt sql.NullTime
	var inviterName sql.NullString

	err := scanner.Scan(&inv.ID, &inv.Token, &inv.FamilyID, &inv.InviterID, &inviteeID,
		&inv.InviteeEmail, &inv.RelationshipType, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt,
		&respondedAt, &inviterName)
	if err != nil {
		return nil, err
	}

	if inviteeID.Valid {
		inv.InviteeID = &inviteeID.Int64
	}
	if respondedAt.Valid {
		inv.RespondedAt = &respondedAt.Time
	}
	inv.InviterName = inviterName.String
	return &inv, nil
}

// Create inserts a pending invitation with a freshly generated token
func (r *InvitationRepository) Create(q database.DBTX, inv *models.Invitation) error {
	token, err := r.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate invitation token: %w", err)
	}
	inv.Token = token
	inv.Status = models.InvitationPending

	id, err := q.ExecReturningID(
		`INSERT INTO family_invitations (token, family_id, inviter_id, invitee_id, invitee_email,
		 relationship_type, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Token, inv.FamilyID, inv.InviterID, inv.InviteeID, inv.InviteeEmail,
		inv.RelationshipType, inv.Status, inv.CreatedAt, inv.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	inv.ID = id
	return nil
}

const invitationQuery = `SELECT ` + invitationCols + ` FROM family_invitations i
	LEFT JOIN users u ON i.inviter_id = u.id`

// GetByToken retrieves an invitation by its single-use token, or nil
func (r *InvitationRepository) GetByToken(q database.DBTX, token string) (*models.Invitation, error) {
	inv, err := scanInvitation(q.QueryRow(invitationQuery+` WHERE i.token = ?`, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// GetByID retrieves an invitation by ID, or nil
func (r *InvitationRepository) GetByID(q database.DBTX, id int64) (*models.Invitation, error) {
	inv, err := scanInvitation(q.QueryRow(invitationQuery+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// ListByFamily returns a family's invitations, newest first
func (r *InvitationRepository) ListByFamily(familyID int64) ([]models.Invitation, error) {
	rows, err := r.db.Query(invitationQuery+` WHERE i.family_id = ? ORDER BY i.created_at DESC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

// HasPending reports whether an unexpired pending invitation already exists
// for an invitee in a family.
func (r *InvitationRepository) HasPending(familyID int64, inviteeEmail string, now time.Time) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM family_invitations
		 WHERE family_id = ? AND invitee_email = ? AND status = ? AND expires_at > ?`,
		familyID, inviteeEmail, models.InvitationPending, now,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check pending invitation: %w", err)
	}
	return count > 0, nil
}

// SetStatus records a terminal status transition for a pending invitation
func (r *InvitationRepository) SetStatus(q database.DBTX, id int64, status string, at time.Time) error {
	_, err := q.Exec(
		`UPDATE family_invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
		status, at, id, models.InvitationPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}
	return nil
}

// ExpireDue flips pending invitations past expiry to expired
func (r *InvitationRepository) ExpireDue(now time.Time) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE family_invitations SET status = ? WHERE status = ? AND expires_at <= ?`,
		models.InvitationExpired, models.InvitationPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	return result.RowsAffected()
}

// DeleteByFamily removes all invitations scoped to a family
func (r *InvitationRepository) DeleteByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM family_invitations WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete invitations: %w", err)
	}
	return nil
}
