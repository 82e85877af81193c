package models

import "time"

// Account recovery request statuses
const (
	RecoveryPending   = "pending"
	RecoveryCompleted = "completed"
	RecoveryExpired   = "expired"
)

// RecoveryRequest is a verification flow that re-establishes an admin for a
// family whose admin set has become unreachable. The verification code is
// stored only as a bcrypt hash.
type RecoveryRequest struct {
	ID                    int64
	FamilyID              int64
	InitiatorID           int64
	Status                string
	CodeHash              string
	RequiredVerifications int
	CreatedAt             time.Time
	ExpiresAt             time.Time
	CompletedAt           *time.Time
}

// RecoveryVerification records one member's successful code verification.
type RecoveryVerification struct {
	ID        int64
	RequestID int64
	UserID    int64
	CreatedAt time.Time
}

// IsExpired reports whether the recovery window has closed
func (r *RecoveryRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
