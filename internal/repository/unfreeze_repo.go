package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// UnfreezeRepository handles database operations for emergency unfreeze
// requests and their votes.
type UnfreezeRepository struct {
	db *database.DB
}

// NewUnfreezeRepository creates a new unfreeze repository
func NewUnfreezeRepository(db *database.DB) *UnfreezeRepository {
	return &UnfreezeRepository{db: db}
}

const unfreezeCols = `id, family_id, initiator_id, reason, required_approvals, status, created_at, expires_at, executed_at`

func scanUnfreezeRequest(scanner interface{ Scan(...any) error }) (*models.UnfreezeRequest, error) {
	var r models.UnfreezeRequest
	var executedAt sql.NullTime
	err := scanner.Scan(&r.ID, &r.FamilyID, &r.InitiatorID, &r.Reason, &r.RequiredApprovals,
		&r.Status, &r.CreatedAt, &r.ExpiresAt, &executedAt)
	if err != nil {
		return nil, err
	}
	if executedAt.Valid {
		r.ExecutedAt = &executedAt.Time
	}
	return &r, nil
}

// Create inserts a pending unfreeze request
func (r *UnfreezeRepository) Create(q database.DBTX, req *models.UnfreezeRequest) error {
	id, err := q.ExecReturningID(
		`INSERT INTO unfreeze_requests (family_id, initiator_id, reason, required_approvals, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.FamilyID, req.InitiatorID, req.Reason, req.RequiredApprovals, req.Status,
		req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create unfreeze request: %w", err)
	}
	req.ID = id
	return nil
}

// GetByID retrieves an unfreeze request, or nil
func (r *UnfreezeRepository) GetByID(q database.DBTX, id int64) (*models.UnfreezeRequest, error) {
	req, err := scanUnfreezeRequest(q.QueryRow(`SELECT `+unfreezeCols+` FROM unfreeze_requests WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unfreeze request: %w", err)
	}
	return req, nil
}

// GetPendingByFamily returns the family's pending request, or nil
func (r *UnfreezeRepository) GetPendingByFamily(q database.DBTX, familyID int64) (*models.UnfreezeRequest, error) {
	req, err := scanUnfreezeRequest(q.QueryRow(
		`SELECT `+unfreezeCols+` FROM unfreeze_requests WHERE family_id = ? AND status = ?`,
		familyID, models.UnfreezePending,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending unfreeze request: %w", err)
	}
	return req, nil
}

// AddVote records a member's vote; the unique index on (request_id, user_id)
// rejects a second vote.
func (r *UnfreezeRepository) AddVote(q database.DBTX, requestID, userID int64, vote string, at time.Time) error {
	_, err := q.Exec(
		`INSERT INTO unfreeze_votes (request_id, user_id, vote, created_at) VALUES (?, ?, ?, ?)`,
		requestID, userID, vote, at,
	)
	if err != nil {
		return fmt.Errorf("failed to add unfreeze vote: %w", err)
	}
	return nil
}

// HasVoted reports whether a member already voted on a request
func (r *UnfreezeRepository) HasVoted(q database.DBTX, requestID, userID int64) (bool, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM unfreeze_votes WHERE request_id = ? AND user_id = ?`,
		requestID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return count > 0, nil
}

// CountVotes counts votes of one kind on a request
func (r *UnfreezeRepository) CountVotes(q database.DBTX, requestID int64, vote string) (int, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM unfreeze_votes WHERE request_id = ? AND vote = ?`,
		requestID, vote,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

// SetStatus records a terminal status on a pending request
func (r *UnfreezeRepository) SetStatus(q database.DBTX, id int64, status string, executedAt *time.Time) error {
	_, err := q.Exec(
		`UPDATE unfreeze_requests SET status = ?, executed_at = ? WHERE id = ? AND status = ?`,
		status, executedAt, id, models.UnfreezePending,
	)
	if err != nil {
		return fmt.Errorf("failed to update unfreeze request: %w", err)
	}
	return nil
}

// ExpireDue flips pending requests past expiry to expired
func (r *UnfreezeRepository) ExpireDue(now time.Time) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE unfreeze_requests SET status = ? WHERE status = ? AND expires_at <= ?`,
		models.UnfreezeExpired, models.UnfreezePending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire unfreeze requests: %w", err)
	}
	return result.RowsAffected()
}

// DeleteByFamily removes all unfreeze requests scoped to a family
func (r *UnfreezeRepository) DeleteByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(
		`DELETE FROM unfreeze_votes WHERE request_id IN (SELECT id FROM unfreeze_requests WHERE family_id = ?)`,
		familyID,
	); err != nil {
		return fmt.Errorf("failed to delete unfreeze votes: %w", err)
	}
	if _, err := q.Exec(`DELETE FROM unfreeze_requests WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete unfreeze requests: %w", err)
	}
	return nil
}
