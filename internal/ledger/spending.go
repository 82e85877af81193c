package ledger

import (
	"context"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// Denial reasons returned by ValidateSpending, in check order. The first
// failing check wins; balance is only checked at debit time.
const (
	DenyFamilyNotFound      = "family_not_found"
	DenyAccountNotFound     = "virtual_account_not_found"
	DenyNotFamilyMember     = "not_family_member"
	DenyAccountFrozen       = "account_frozen"
	DenyNoSpendingPermission = "no_spending_permission"
	DenyLimitExceeded       = "spending_limit_exceeded"
	DenyInsufficientBalance = "insufficient_balance"
)

// SpendingDecision is the detailed result of a spending validation
type SpendingDecision struct {
	Allowed bool
	Reason  string // empty when allowed, otherwise one of the Deny* reasons
}

// ValidateSpending checks whether a member may debit the family account,
// returning the specific denial reason. Every outcome is recorded in the
// audit trail. The balance check here is advisory; the conditional debit
// re-enforces it race-free at execution time.
func (e *Engine) ValidateSpending(ctx context.Context, familyID, spenderID, amount int64) (*SpendingDecision, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "amount must be positive"}
	}

	family, err := e.families.GetByID(familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return e.denied(familyID, spenderID, amount, DenyFamilyNotFound), nil
	}
	account, err := e.users.GetByID(family.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.IsVirtualAccount {
		return e.denied(familyID, spenderID, amount, DenyAccountNotFound), nil
	}

	membership, err := e.families.GetMembership(familyID, spenderID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return e.denied(familyID, spenderID, amount, DenyNotFamilyMember), nil
	}

	if family.IsFrozen {
		return e.denied(familyID, spenderID, amount, DenyAccountFrozen), nil
	}

	perm, err := e.families.GetPermission(e.db, familyID, spenderID)
	if err != nil {
		return nil, err
	}
	if perm == nil || !perm.CanSpend {
		return e.denied(familyID, spenderID, amount, DenyNoSpendingPermission), nil
	}

	if perm.SpendingLimit != models.UnlimitedSpending && amount > perm.SpendingLimit {
		return e.denied(familyID, spenderID, amount, DenyLimitExceeded), nil
	}

	if account.Balance < amount {
		return e.denied(familyID, spenderID, amount, DenyInsufficientBalance), nil
	}

	e.audit.Record(e.db, familyID, "spending_approved", map[string]any{
		"spender_id": spenderID,
		"amount":     amount,
	})
	return &SpendingDecision{Allowed: true}, nil
}

// CanSpend is the boolean form of ValidateSpending
func (e *Engine) CanSpend(ctx context.Context, familyID, spenderID, amount int64) (bool, error) {
	decision, err := e.ValidateSpending(ctx, familyID, spenderID, amount)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

func (e *Engine) denied(familyID, spenderID, amount int64, reason string) *SpendingDecision {
	eventType := "spending_denied"
	if reason == DenyAccountFrozen {
		// A spend attempt against a frozen account is itself high severity.
		eventType = "frozen_account_attempt"
	}
	e.audit.Record(e.db, familyID, eventType, map[string]any{
		"spender_id": spenderID,
		"amount":     amount,
		"reason":     reason,
	})
	return &SpendingDecision{Allowed: false, Reason: reason}
}

// UpdateSpendingPermissions overwrites a member's permission entry.
// Admin-only; the target must be a member of the family.
func (e *Engine) UpdateSpendingPermissions(ctx context.Context, familyID, adminID, targetUserID, limit int64, canSpend bool) (*models.SpendingPermission, error) {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return nil, err
	}
	if limit < models.UnlimitedSpending {
		return nil, &ValidationError{Field: "spending_limit", Message: "limit must be -1 (unlimited) or non-negative"}
	}
	membership, err := e.families.GetMembership(familyID, targetUserID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrNotFamilyMember
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	perm := &models.SpendingPermission{
		FamilyID:      familyID,
		UserID:        targetUserID,
		Role:          membership.Role,
		SpendingLimit: limit,
		CanSpend:      canSpend,
		UpdatedBy:     adminID,
		UpdatedAt:     e.now(),
	}
	err = e.inTx(ctx, "update_permissions", func(tx *database.Tx) error {
		if err := e.families.UpsertPermission(tx, perm); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "permissions_updated", map[string]any{
			"target_user_id": targetUserID,
			"spending_limit": limit,
			"can_spend":      canSpend,
			"updated_by":     adminID,
		})
		e.audit.AdminAction(tx, familyID, adminID, "update_permissions", &targetUserID, map[string]any{
			"spending_limit": limit,
			"can_spend":      canSpend,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

// GetSpendingPermission returns a member's permission entry, or nil
func (e *Engine) GetSpendingPermission(familyID, userID int64) (*models.SpendingPermission, error) {
	return e.families.GetPermission(e.db, familyID, userID)
}
