package models

import "time"

// Emergency unfreeze request statuses
const (
	UnfreezePending  = "pending"
	UnfreezeExecuted = "executed"
	UnfreezeRejected = "rejected"
	UnfreezeExpired  = "expired"
)

// Vote values
const (
	VoteApprove = "approve"
	VoteReject  = "reject"
)

// UnfreezeRequest is a multi-member vote to unfreeze the family account when
// no admin is available to do it directly.
type UnfreezeRequest struct {
	ID                int64
	FamilyID          int64
	InitiatorID       int64
	Reason            string
	RequiredApprovals int
	Status            string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	ExecutedAt        *time.Time
}

// UnfreezeVote is one member's vote on an unfreeze request. A member votes
// at most once per request.
type UnfreezeVote struct {
	ID        int64
	RequestID int64
	UserID    int64
	Vote      string // VoteApprove or VoteReject
	CreatedAt time.Time
}

// IsExpired reports whether the voting window has closed
func (r *UnfreezeRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
