package models

import "time"

// Invitation statuses
const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationDeclined  = "declined"
	InvitationExpired   = "expired"
	InvitationCancelled = "cancelled"
)

// Invitation is a single-use, token-gated offer of family membership.
type Invitation struct {
	ID               int64
	Token            string
	FamilyID         int64
	InviterID        int64
	InviteeID        *int64
	InviteeEmail     string
	RelationshipType string
	Status           string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RespondedAt      *time.Time
	InviterName      string // Populated via JOIN
}

// IsExpired reports whether the invitation is past its acceptance window
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsValid reports whether the invitation can still be accepted
func (i *Invitation) IsValid(now time.Time) bool {
	return i.Status == InvitationPending && !i.IsExpired(now)
}
