package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// TokenRequestRepository handles database operations for token requests
type TokenRequestRepository struct {
	db *database.DB
}

// NewTokenRequestRepository creates a new token request repository
func NewTokenRequestRepository(db *database.DB) *TokenRequestRepository {
	return &TokenRequestRepository{db: db}
}

const requestCols = `id, family_id, requester_id, amount, reason, status, auto_approved,
	reviewed_by, admin_comments, created_at, expires_at, processed_at`

func scanTokenRequest(scanner interface{ Scan(...any) error }) (*models.TokenRequest, error) {
	var r models.TokenRequest
	var autoApproved int
	var reviewedBy sql.NullInt64
	var comments sql.NullString
	var processedAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.FamilyID, &r.RequesterID, &r.Amount, &r.Reason, &r.Status,
		&autoApproved, &reviewedBy, &comments, &r.CreatedAt, &r.ExpiresAt, &processedAt)
	if err != nil {
		return nil, err
	}

	r.AutoApproved = autoApproved != 0
	if reviewedBy.Valid {
		r.ReviewedBy = &reviewedBy.Int64
	}
	r.AdminComments = comments.String
	if processedAt.Valid {
		r.ProcessedAt = &processedAt.Time
	}
	return &r, nil
}

// Create inserts a token request
func (r *TokenRequestRepository) Create(q database.DBTX, req *models.TokenRequest) error {
	id, err := q.ExecReturningID(
		`INSERT INTO token_requests (family_id, requester_id, amount, reason, status, auto_approved,
		 reviewed_by, admin_comments, created_at, expires_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.FamilyID, req.RequesterID, req.Amount, req.Reason, req.Status, boolToInt(req.AutoApproved),
		req.ReviewedBy, req.AdminComments, req.CreatedAt, req.ExpiresAt, req.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.ID = id
	return nil
}

// GetByID retrieves a token request, or nil
func (r *TokenRequestRepository) GetByID(q database.DBTX, id int64) (*models.TokenRequest, error) {
	req, err := scanTokenRequest(q.QueryRow(`SELECT `+requestCols+` FROM token_requests WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token request: %w", err)
	}
	return req, nil
}

// ListByFamily returns a family's requests, newest first; status filters when non-empty
func (r *TokenRequestRepository) ListByFamily(familyID int64, status string) ([]models.TokenRequest, error) {
	query := `SELECT ` + requestCols + ` FROM token_requests WHERE family_id = ?`
	args := []any{familyID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list token requests: %w", err)
	}
	defer rows.Close()

	var requests []models.TokenRequest
	for rows.Next() {
		req, err := scanTokenRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// MarkReviewed records the terminal review outcome of a pending request
func (r *TokenRequestRepository) MarkReviewed(q database.DBTX, id int64, status string, reviewedBy int64, comments string, at time.Time) error {
	_, err := q.Exec(
		`UPDATE token_requests SET status = ?, reviewed_by = ?, admin_comments = ?, processed_at = ?
		 WHERE id = ? AND status = ?`,
		status, reviewedBy, comments, at, id, models.RequestPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark request reviewed: %w", err)
	}
	return nil
}

// ExpireDue flips pending requests past their expiry to expired and returns
// how many were swept.
func (r *TokenRequestRepository) ExpireDue(now time.Time) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE token_requests SET status = ? WHERE status = ? AND expires_at <= ?`,
		models.RequestExpired, models.RequestPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire token requests: %w", err)
	}
	return result.RowsAffected()
}

// DeleteByFamily removes all requests scoped to a family (delete cascade)
func (r *TokenRequestRepository) DeleteByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM token_requests WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete token requests: %w", err)
	}
	return nil
}
