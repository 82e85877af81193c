package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// CreateFamily creates a family, its virtual-account ledger row, and the
// owner's admin membership in a single transaction. The owner gets an
// unlimited spending permission on the new account.
func (e *Engine) CreateFamily(ctx context.Context, ownerID int64, name string) (*models.Family, error) {
	if err := ValidateFamilyName(name); err != nil {
		return nil, err
	}

	owner, err := e.users.GetByID(ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrUserNotFound
	}

	count, err := e.families.CountFamiliesForUser(e.db, ownerID)
	if err != nil {
		return nil, err
	}
	if count >= e.cfg.MaxFamiliesPerUser {
		return nil, &LimitExceededError{Kind: "family_count", Current: int64(count), Max: int64(e.cfg.MaxFamiliesPerUser)}
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var familyID int64
	err = e.inTx(ctx, "create_family", func(tx *database.Tx) error {
		username, err := generateAccountUsername(name, func(candidate string) (bool, error) {
			return e.users.UsernameTaken(tx, candidate)
		}, func() int64 { return e.now().Unix() })
		if err != nil {
			return err
		}

		account, err := e.users.Create(tx, username, "", true)
		if err != nil {
			return err
		}

		familyID, err = e.families.Create(tx, name, account.ID)
		if err != nil {
			return err
		}

		if err := e.families.AddMember(tx, familyID, ownerID, models.RoleAdmin, e.now()); err != nil {
			return err
		}

		perm := &models.SpendingPermission{
			FamilyID:      familyID,
			UserID:        ownerID,
			Role:          models.RoleAdmin,
			SpendingLimit: models.UnlimitedSpending,
			CanSpend:      true,
			UpdatedBy:     ownerID,
			UpdatedAt:     e.now(),
		}
		if err := e.families.UpsertPermission(tx, perm); err != nil {
			return err
		}

		e.audit.Record(tx, familyID, "virtual_account_created", map[string]any{
			"account_username": username,
			"owner_id":         ownerID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("family created", "family_id", familyID, "owner_id", ownerID)
	return e.GetFamily(familyID)
}

// Freeze marks the family's virtual account frozen. Admin-only. Freezing an
// already-frozen account is an idempotent no-op returning the current state.
func (e *Engine) Freeze(ctx context.Context, familyID, adminID int64, reason string) (*models.Family, error) {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return nil, err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	if family.IsFrozen {
		return family, nil
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	frozenAt := e.now()
	err = e.inTx(ctx, "freeze_account", func(tx *database.Tx) error {
		if err := e.families.Freeze(tx, familyID, adminID, reason, frozenAt); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "account_frozen", map[string]any{
			"frozen_by": adminID,
			"reason":    reason,
		})
		e.audit.AdminAction(tx, familyID, adminID, "freeze_account", nil, map[string]any{"reason": reason})
		return nil
	})
	if err != nil {
		return nil, err
	}

	memberIDs, err := e.memberIDs(familyID)
	if err == nil {
		e.notifyMembers(ctx, familyID, memberIDs, "account_frozen",
			"Family account frozen",
			fmt.Sprintf("The shared account for %q has been frozen: %s", family.Name, reason), "")
	}
	return e.GetFamily(familyID)
}

// Unfreeze clears the freeze state. Admin-only. Unfreezing an account that
// is not frozen is an idempotent no-op.
func (e *Engine) Unfreeze(ctx context.Context, familyID, adminID int64) (*models.Family, error) {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return nil, err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	if !family.IsFrozen {
		return family, nil
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.inTx(ctx, "unfreeze_account", func(tx *database.Tx) error {
		if err := e.families.Unfreeze(tx, familyID); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "account_unfrozen", map[string]any{"unfrozen_by": adminID})
		e.audit.AdminAction(tx, familyID, adminID, "unfreeze_account", nil, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetFamily(familyID)
}

// DeleteFamily cascades over everything scoped to the family (memberships,
// permissions, invitations, relationships, requests, notifications, audit
// rows), then removes the family and its account row, all in one
// transaction. A non-zero remaining balance is kept in a retention snapshot
// and logged, never silently discarded.
func (e *Engine) DeleteFamily(ctx context.Context, familyID, adminID int64) error {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return err
	}
	account, err := e.users.GetByID(family.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if account.Balance > 0 {
		e.log.Warn("deleting family with non-zero balance",
			"family_id", familyID, "balance", account.Balance, "deleted_by", adminID)
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "delete_family", func(tx *database.Tx) error {
		snapshot, err := e.cleanupSnapshot(account.ID, account.Balance)
		if err != nil {
			return err
		}
		executedAt := e.now()
		_, err = e.families.RecordCleanup(tx, &models.AccountCleanup{
			FamilyID:    familyID,
			AccountID:   account.ID,
			RequestedBy: adminID,
			CleanupData: snapshot,
			ExecutedAt:  &executedAt,
			CreatedAt:   executedAt,
		})
		if err != nil {
			return err
		}

		if err := e.requests.DeleteByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.invitations.DeleteByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.relationships.DeleteByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.notifications.DeleteByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.unfreezes.DeleteByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.recoveries.DeleteByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.audit.repo.DeleteByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.families.DeletePermissionsByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.families.DeleteBackupsByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.families.DeleteMembersByFamily(tx, familyID); err != nil {
			return err
		}
		if err := e.transactions.DeleteByAccount(tx, account.ID); err != nil {
			return err
		}
		if err := e.families.Delete(tx, familyID); err != nil {
			return err
		}
		return e.users.Delete(tx, account.ID)
	})
}

// CleanupVirtualAccount purges the account immediately (balance and
// transaction log move into a retained snapshot) or schedules a purge after
// the retention window. Immediate purge happens on explicit override or when
// the balance is already zero.
func (e *Engine) CleanupVirtualAccount(ctx context.Context, familyID, adminID int64, immediate bool) (*models.Family, error) {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return nil, err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	account, err := e.users.GetByID(family.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	if immediate || account.Balance == 0 {
		err = e.inTx(ctx, "cleanup_account", func(tx *database.Tx) error {
			return e.purgeAccount(tx, family, account.ID, account.Balance, adminID)
		})
		if err != nil {
			return nil, err
		}
		return e.GetFamily(familyID)
	}

	scheduledFor := e.now().Add(e.cfg.CleanupRetention)
	err = e.inTx(ctx, "schedule_cleanup", func(tx *database.Tx) error {
		if err := e.families.ScheduleCleanup(tx, familyID, &scheduledFor); err != nil {
			return err
		}
		snapshot, err := e.cleanupSnapshot(account.ID, account.Balance)
		if err != nil {
			return err
		}
		_, err = e.families.RecordCleanup(tx, &models.AccountCleanup{
			FamilyID:     familyID,
			AccountID:    account.ID,
			RequestedBy:  adminID,
			CleanupData:  snapshot,
			ScheduledFor: &scheduledFor,
			CreatedAt:    e.now(),
		})
		if err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "virtual_account_cleanup", map[string]any{
			"scheduled_for": scheduledFor.Format(time.RFC3339),
			"requested_by":  adminID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetFamily(familyID)
}

// RunScheduledCleanups purges every account whose retention window has
// elapsed. Invoked by the external sweeper, never self-scheduled.
func (e *Engine) RunScheduledCleanups(ctx context.Context) (int, error) {
	due, err := e.families.ListCleanupDue(e.now())
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, family := range due {
		account, err := e.users.GetByID(family.AccountID)
		if err != nil || account == nil {
			continue
		}
		err = e.inTx(ctx, "scheduled_cleanup", func(tx *database.Tx) error {
			if err := e.purgeAccount(tx, &family, account.ID, account.Balance, 0); err != nil {
				return err
			}
			return e.families.ScheduleCleanup(tx, family.ID, nil)
		})
		if err != nil {
			e.log.Error("scheduled cleanup failed", "family_id", family.ID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}

// purgeAccount clears balance and transaction log into a retention snapshot
func (e *Engine) purgeAccount(tx *database.Tx, family *models.Family, accountID, balance, requestedBy int64) error {
	snapshot, err := e.cleanupSnapshot(accountID, balance)
	if err != nil {
		return err
	}
	executedAt := e.now()
	_, err = e.families.RecordCleanup(tx, &models.AccountCleanup{
		FamilyID:    family.ID,
		AccountID:   accountID,
		RequestedBy: requestedBy,
		CleanupData: snapshot,
		ExecutedAt:  &executedAt,
		CreatedAt:   executedAt,
	})
	if err != nil {
		return err
	}
	if err := e.transactions.DeleteByAccount(tx, accountID); err != nil {
		return err
	}
	if err := e.users.ZeroBalance(tx, accountID); err != nil {
		return err
	}
	details := map[string]any{"purged_balance": balance}
	if balance > 0 {
		e.audit.Record(tx, family.ID, "nonzero_balance_discarded", details)
	}
	e.audit.Record(tx, family.ID, "virtual_account_cleanup", details)
	return nil
}

// cleanupSnapshot serializes the account state retained after a purge
func (e *Engine) cleanupSnapshot(accountID, balance int64) (string, error) {
	transactions, err := e.transactions.ListByAccount(accountID, 1000)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(map[string]any{
		"account_id":        accountID,
		"balance":           balance,
		"transaction_count": len(transactions),
		"transactions":      transactions,
		"captured_at":       e.now().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode cleanup snapshot: %w", err)
	}
	return string(raw), nil
}

// memberIDs returns the user ids of every member of a family
func (e *Engine) memberIDs(familyID int64) ([]int64, error) {
	members, err := e.families.ListMembers(familyID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
