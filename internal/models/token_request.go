package models

import "time"

// Token request statuses
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDenied   = "denied"
	RequestExpired  = "expired"
)

// TokenRequest is a member-initiated withdrawal request from the family
// virtual account.
type TokenRequest struct {
	ID            int64
	FamilyID      int64
	RequesterID   int64
	Amount        int64
	Reason        string
	Status        string
	AutoApproved  bool
	ReviewedBy    *int64
	AdminComments string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ProcessedAt   *time.Time
}

// IsExpired reports whether the request is past its review window
func (r *TokenRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsPending reports whether the request is still awaiting review
func (r *TokenRequest) IsPending() bool {
	return r.Status == RequestPending
}
