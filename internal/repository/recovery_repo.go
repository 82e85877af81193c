package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// RecoveryRepository handles database operations for account recovery
// requests and member verifications.
type RecoveryRepository struct {
	db *database.DB
}

// NewRecoveryRepository creates a new recovery repository
func NewRecoveryRepository(db *database.DB) *RecoveryRepository {
	return &RecoveryRepository{db: db}
}

const recoveryCols = `id, family_id, initiator_id, status, code_hash, required_verifications, created_at, expires_at, completed_at`

func scanRecoveryRequest(scanner interface{ Scan(...any) error }) (*models.RecoveryRequest, error) {
	var r models.RecoveryRequest
	var completedAt sql.NullTime
	err := scanner.Scan(&r.ID, &r.FamilyID, &r.InitiatorID, &r.Status, &r.CodeHash,
		&r.RequiredVerifications, &r.CreatedAt, &r.ExpiresAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

// Create inserts a recovery request. The backup-admin fast path creates
// requests already completed, so completed_at is part of the insert.
func (r *RecoveryRepository) Create(q database.DBTX, req *models.RecoveryRequest) error {
	id, err := q.ExecReturningID(
		`INSERT INTO recovery_requests (family_id, initiator_id, status, code_hash, required_verifications, created_at, expires_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.FamilyID, req.InitiatorID, req.Status, req.CodeHash, req.RequiredVerifications,
		req.CreatedAt, req.ExpiresAt, req.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recovery request: %w", err)
	}
	req.ID = id
	return nil
}

// GetByID retrieves a recovery request, or nil
func (r *RecoveryRepository) GetByID(q database.DBTX, id int64) (*models.RecoveryRequest, error) {
	req, err := scanRecoveryRequest(q.QueryRow(`SELECT `+recoveryCols+` FROM recovery_requests WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery request: %w", err)
	}
	return req, nil
}

// GetPendingByFamily returns the family's pending recovery request, or nil
func (r *RecoveryRepository) GetPendingByFamily(q database.DBTX, familyID int64) (*models.RecoveryRequest, error) {
	req, err := scanRecoveryRequest(q.QueryRow(
		`SELECT `+recoveryCols+` FROM recovery_requests WHERE family_id = ? AND status = ?`,
		familyID, models.RecoveryPending,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending recovery request: %w", err)
	}
	return req, nil
}

// AddVerification records one member's successful code verification
func (r *RecoveryRepository) AddVerification(q database.DBTX, requestID, userID int64, at time.Time) error {
	_, err := q.Exec(
		`INSERT INTO recovery_verifications (request_id, user_id, created_at) VALUES (?, ?, ?)`,
		requestID, userID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to add recovery verification: %w", err)
	}
	return nil
}

// HasVerified reports whether a member already verified a request
func (r *RecoveryRepository) HasVerified(q database.DBTX, requestID, userID int64) (bool, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM recovery_verifications WHERE request_id = ? AND user_id = ?`,
		requestID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check verification: %w", err)
	}
	return count > 0, nil
}

// CountVerifications counts verifications of a request
func (r *RecoveryRepository) CountVerifications(q database.DBTX, requestID int64) (int, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM recovery_verifications WHERE request_id = ?`, requestID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verifications: %w", err)
	}
	return count, nil
}

// SetStatus records a terminal status on a pending recovery request
func (r *RecoveryRepository) SetStatus(q database.DBTX, id int64, status string, completedAt *time.Time) error {
	_, err := q.Exec(
		`UPDATE recovery_requests SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		status, completedAt, id, models.RecoveryPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update recovery request: %w", err)
	}
	return nil
}

// ExpireDue flips pending recovery requests past expiry to expired
func (r *RecoveryRepository) ExpireDue(now time.Time) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE recovery_requests SET status = ? WHERE status = ? AND expires_at <= ?`,
		models.RecoveryExpired, models.RecoveryPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire recovery requests: %w", err)
	}
	return result.RowsAffected()
}

// DeleteByFamily removes all recovery requests scoped to a family
func (r *RecoveryRepository) DeleteByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(
		`DELETE FROM recovery_verifications WHERE request_id IN (SELECT id FROM recovery_requests WHERE family_id = ?)`,
		familyID,
	); err != nil {
		return fmt.Errorf("failed to delete recovery verifications: %w", err)
	}
	if _, err := q.Exec(`DELETE FROM recovery_requests WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete recovery requests: %w", err)
	}
	return nil
}
