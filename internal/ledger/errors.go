package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// Sentinel errors for lookups and access control. These are expected
// control flow: callers branch on them with errors.Is and map them to
// transport responses.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrFamilyNotFound     = errors.New("family not found")
	ErrAccountNotFound    = errors.New("virtual account not found")
	ErrRecipientNotFound  = errors.New("transfer recipient not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrRequestNotFound    = errors.New("request not found")
	ErrNotFamilyMember    = errors.New("user is not a member of this family")

	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrMultipleAdminsRequired  = errors.New("cannot remove the only remaining admin")
	ErrAlreadyVoted            = errors.New("user has already voted on this request")
)

// ValidationError reports malformed input. Field names the offending input;
// Constraint optionally names the violated rule (e.g. "uniqueness").
type ValidationError struct {
	Field      string
	Message    string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LimitExceededError reports a business-rule cap (family count, member
// count, spending limit). Current and Max let the transport layer build an
// upgrade prompt without re-querying.
type LimitExceededError struct {
	Kind    string
	Current int64
	Max     int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %d of %d", e.Kind, e.Current, e.Max)
}

// AccountFrozenError blocks spending from a frozen virtual account. Carries
// the freeze metadata for display.
type AccountFrozenError struct {
	FamilyID int64
	FrozenBy int64
	FrozenAt time.Time
	Reason   string
}

func (e *AccountFrozenError) Error() string {
	return fmt.Sprintf("family %d account is frozen: %s", e.FamilyID, e.Reason)
}

// frozenError builds an AccountFrozenError from the family's freeze state
func frozenError(family *models.Family) *AccountFrozenError {
	err := &AccountFrozenError{FamilyID: family.ID, Reason: family.FreezeReason}
	if family.FrozenBy != nil {
		err.FrozenBy = *family.FrozenBy
	}
	if family.FrozenAt != nil {
		err.FrozenAt = *family.FrozenAt
	}
	return err
}

// TransactionError wraps a store-level failure during a multi-step mutation.
// RolledBack distinguishes a clean abort (retryable after re-validating
// preconditions) from a failed rollback, which is escalated and never
// retried.
type TransactionError struct {
	Op         string
	RolledBack bool
	Err        error
}

func (e *TransactionError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("%s: transaction aborted: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transaction aborted and rollback failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// RateLimitError surfaces a rejection by the caller-supplied rate-limit
// policy. RetryAfter is a hint for the client.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}
