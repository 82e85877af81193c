package ledger

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/security"
)

// PromoteMember raises a member to admin. Admin-only. Promotion grants
// unlimited spending on the family account.
func (e *Engine) PromoteMember(ctx context.Context, familyID, adminID, targetUserID int64) error {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return err
	}
	membership, err := e.families.GetMembership(familyID, targetUserID)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrNotFamilyMember
	}
	if membership.Role == models.RoleAdmin {
		return nil
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "promote_member", func(tx *database.Tx) error {
		return e.promote(tx, familyID, adminID, targetUserID)
	})
}

// promote performs the role flip and permission grant inside the caller's
// transaction. Shared with the recovery flows.
func (e *Engine) promote(tx *database.Tx, familyID, actorID, targetUserID int64) error {
	if err := e.families.SetRole(tx, familyID, targetUserID, models.RoleAdmin); err != nil {
		return err
	}
	if err := e.families.UpsertPermission(tx, &models.SpendingPermission{
		FamilyID:      familyID,
		UserID:        targetUserID,
		Role:          models.RoleAdmin,
		CanSpend:      true,
		SpendingLimit: models.UnlimitedSpending,
		UpdatedBy:     actorID,
		UpdatedAt:     e.now(),
	}); err != nil {
		return err
	}
	e.audit.Record(tx, familyID, "admin_promoted", map[string]any{
		"user_id":     targetUserID,
		"promoted_by": actorID,
	})
	e.audit.AdminAction(tx, familyID, actorID, "admin_promoted", &targetUserID, nil)
	return nil
}

// DemoteAdmin lowers an admin back to member. The demoted member keeps no
// spending rights until an admin grants them again. Demoting the last admin
// is refused so the family is never left ungoverned by accident.
func (e *Engine) DemoteAdmin(ctx context.Context, familyID, adminID, targetUserID int64) error {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return err
	}
	membership, err := e.families.GetMembership(familyID, targetUserID)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrNotFamilyMember
	}
	if membership.Role != models.RoleAdmin {
		return nil
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "demote_admin", func(tx *database.Tx) error {
		admins, err := e.families.CountAdmins(tx, familyID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrMultipleAdminsRequired
		}
		if err := e.families.SetRole(tx, familyID, targetUserID, models.RoleMember); err != nil {
			return err
		}
		if err := e.families.UpsertPermission(tx, &models.SpendingPermission{
			FamilyID:      familyID,
			UserID:        targetUserID,
			Role:          models.RoleMember,
			CanSpend:      false,
			SpendingLimit: 0,
			UpdatedBy:     adminID,
			UpdatedAt:     e.now(),
		}); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "admin_demoted", map[string]any{
			"user_id":    targetUserID,
			"demoted_by": adminID,
		})
		e.audit.AdminAction(tx, familyID, adminID, "admin_demoted", &targetUserID, nil)
		return nil
	})
}

// DesignateBackupAdmin marks a member as backup admin. Backups hold no
// extra rights day to day; they are the fast path for account recovery.
func (e *Engine) DesignateBackupAdmin(ctx context.Context, familyID, adminID, targetUserID int64) error {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return err
	}
	membership, err := e.families.GetMembership(familyID, targetUserID)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrNotFamilyMember
	}
	if membership.Role == models.RoleAdmin {
		return &ValidationError{Field: "target_user_id", Message: "user is already an admin"}
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "designate_backup", func(tx *database.Tx) error {
		if err := e.families.DesignateBackup(tx, familyID, targetUserID, adminID, e.now()); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "backup_admin_designated", map[string]any{
			"user_id":       targetUserID,
			"designated_by": adminID,
		})
		e.audit.AdminAction(tx, familyID, adminID, "backup_admin_designated", &targetUserID, nil)
		return nil
	})
}

// RemoveBackupAdmin clears a member's backup designation. Admin-only.
func (e *Engine) RemoveBackupAdmin(ctx context.Context, familyID, adminID, targetUserID int64) error {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return err
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "remove_backup", func(tx *database.Tx) error {
		if err := e.families.RemoveBackup(tx, familyID, targetUserID); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "backup_admin_removed", map[string]any{
			"user_id":    targetUserID,
			"removed_by": adminID,
		})
		e.audit.AdminAction(tx, familyID, adminID, "backup_admin_removed", &targetUserID, nil)
		return nil
	})
}

// InitiateEmergencyUnfreeze starts a member vote to unfreeze the family
// account. Any member may initiate when the account is frozen and no vote
// is already running. The vote passes at a strict majority of the current
// member count; the initiator's approval is counted immediately.
func (e *Engine) InitiateEmergencyUnfreeze(ctx context.Context, familyID, initiatorID int64, reason string) (*models.UnfreezeRequest, error) {
	if err := e.RequireMember(initiatorID, familyID); err != nil {
		return nil, err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	if !family.IsFrozen {
		return nil, &ValidationError{Field: "family_id", Message: "account is not frozen"}
	}
	pending, err := e.unfreezes.GetPendingByFamily(e.db, familyID)
	if err != nil {
		return nil, err
	}
	if pending != nil && !pending.IsExpired(e.now()) {
		return nil, &ValidationError{Field: "family_id", Message: "an unfreeze vote is already in progress"}
	}

	now := e.now()
	req := &models.UnfreezeRequest{
		FamilyID:          familyID,
		InitiatorID:       initiatorID,
		Reason:            reason,
		RequiredApprovals: majority(family.MemberCount),
		Status:            models.UnfreezePending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(e.cfg.UnfreezeTTL),
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.inTx(ctx, "emergency_unfreeze_initiate", func(tx *database.Tx) error {
		if err := e.unfreezes.Create(tx, req); err != nil {
			return err
		}
		if err := e.unfreezes.AddVote(tx, req.ID, initiatorID, models.VoteApprove, now); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "emergency_unfreeze", map[string]any{
			"request_id":         req.ID,
			"initiator_id":       initiatorID,
			"required_approvals": req.RequiredApprovals,
		})
		// The initiator's own approval can satisfy the threshold in very
		// small families.
		if req.RequiredApprovals <= 1 {
			return e.executeUnfreeze(tx, req, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Status == models.UnfreezeExecuted {
		return req, nil
	}

	memberIDs, err := e.memberIDs(familyID)
	if err == nil {
		e.notifyMembers(ctx, familyID, memberIDs, "emergency_unfreeze",
			"Emergency unfreeze vote started",
			fmt.Sprintf("A vote to unfreeze the account of %q is open: %s", family.Name, reason),
			fmt.Sprintf(`{"request_id":%d}`, req.ID))
	}
	return req, nil
}

// executeUnfreeze unfreezes the account and resolves the request inside the
// caller's transaction.
func (e *Engine) executeUnfreeze(tx *database.Tx, req *models.UnfreezeRequest, approvals int) error {
	executedAt := e.now()
	if err := e.families.Unfreeze(tx, req.FamilyID); err != nil {
		return err
	}
	if err := e.unfreezes.SetStatus(tx, req.ID, models.UnfreezeExecuted, &executedAt); err != nil {
		return err
	}
	req.Status = models.UnfreezeExecuted
	req.ExecutedAt = &executedAt
	e.audit.Record(tx, req.FamilyID, "account_unfrozen", map[string]any{
		"request_id": req.ID,
		"approvals":  approvals,
		"via":        "emergency_vote",
	})
	return nil
}

// VoteEmergencyUnfreeze casts one member's vote. Reaching the approval
// threshold unfreezes the account in the same transaction as the vote;
// votes against an already-resolved request return the request unchanged.
func (e *Engine) VoteEmergencyUnfreeze(ctx context.Context, requestID, voterID int64, vote string) (*models.UnfreezeRequest, error) {
	if vote != models.VoteApprove && vote != models.VoteReject {
		return nil, &ValidationError{Field: "vote", Message: "vote must be approve or reject"}
	}
	req, err := e.unfreezes.GetByID(e.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if err := e.RequireMember(voterID, req.FamilyID); err != nil {
		return nil, err
	}
	if req.Status != models.UnfreezePending {
		return req, nil
	}
	if req.IsExpired(e.now()) {
		if err := e.unfreezes.SetStatus(e.db, req.ID, models.UnfreezeExpired, nil); err != nil {
			return nil, err
		}
		return nil, ErrRequestNotFound
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.inTx(ctx, "emergency_unfreeze_vote", func(tx *database.Tx) error {
		voted, err := e.unfreezes.HasVoted(tx, req.ID, voterID)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}
		if err := e.unfreezes.AddVote(tx, req.ID, voterID, vote, e.now()); err != nil {
			return err
		}

		approvals, err := e.unfreezes.CountVotes(tx, req.ID, models.VoteApprove)
		if err != nil {
			return err
		}
		rejections, err := e.unfreezes.CountVotes(tx, req.ID, models.VoteReject)
		if err != nil {
			return err
		}

		family, err := e.families.GetByIDTx(tx, req.FamilyID)
		if err != nil {
			return err
		}
		if family == nil {
			return ErrFamilyNotFound
		}

		if approvals >= req.RequiredApprovals {
			return e.executeUnfreeze(tx, req, approvals)
		}

		// Once enough members voted reject that approval can no longer be
		// reached, resolve the request instead of waiting for expiry.
		remaining := family.MemberCount - approvals - rejections
		if approvals+remaining < req.RequiredApprovals {
			if err := e.unfreezes.SetStatus(tx, req.ID, models.UnfreezeRejected, nil); err != nil {
				return err
			}
			req.Status = models.UnfreezeRejected
			e.audit.Record(tx, req.FamilyID, "emergency_unfreeze", map[string]any{
				"request_id": req.ID,
				"outcome":    "rejected",
				"rejections": rejections,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// InitiateAccountRecovery starts re-establishing an admin for a family with
// no reachable admins. When a backup admin exists they are promoted
// immediately. Otherwise a verification code is generated, bcrypt-hashed
// into the request, and distributed to the members out of band; a majority
// of members must verify it before the longest-tenured member is promoted.
// The plaintext code is returned once, only to the initiator.
func (e *Engine) InitiateAccountRecovery(ctx context.Context, familyID, initiatorID int64) (*models.RecoveryRequest, string, error) {
	if err := e.RequireMember(initiatorID, familyID); err != nil {
		return nil, "", err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, "", err
	}
	admins, err := e.families.CountAdmins(e.db, familyID)
	if err != nil {
		return nil, "", err
	}
	if admins > 0 {
		return nil, "", &ValidationError{Field: "family_id", Message: "family still has an active admin"}
	}
	pending, err := e.recoveries.GetPendingByFamily(e.db, familyID)
	if err != nil {
		return nil, "", err
	}
	if pending != nil && !pending.IsExpired(e.now()) {
		return nil, "", &ValidationError{Field: "family_id", Message: "a recovery is already in progress"}
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	backups, err := e.families.ListBackups(e.db, familyID)
	if err != nil {
		return nil, "", err
	}
	if len(backups) > 0 {
		backupID := backups[0].UserID
		now := e.now()
		req := &models.RecoveryRequest{
			FamilyID:              familyID,
			InitiatorID:           initiatorID,
			Status:                models.RecoveryCompleted,
			RequiredVerifications: 0,
			CreatedAt:             now,
			ExpiresAt:             now,
			CompletedAt:           &now,
		}
		err = e.inTx(ctx, "account_recovery_backup", func(tx *database.Tx) error {
			if err := e.promote(tx, familyID, initiatorID, backupID); err != nil {
				return err
			}
			if err := e.families.RemoveBackup(tx, familyID, backupID); err != nil {
				return err
			}
			if err := e.recoveries.Create(tx, req); err != nil {
				return err
			}
			e.audit.Record(tx, familyID, "account_recovery", map[string]any{
				"request_id":   req.ID,
				"initiator_id": initiatorID,
				"promoted":     backupID,
				"via":          "backup_admin",
			})
			return nil
		})
		if err != nil {
			return nil, "", err
		}
		return req, "", nil
	}

	code, err := security.GenerateRecoveryCode()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	now := e.now()
	req := &models.RecoveryRequest{
		FamilyID:              familyID,
		InitiatorID:           initiatorID,
		Status:                models.RecoveryPending,
		CodeHash:              string(hash),
		RequiredVerifications: majority(family.MemberCount),
		CreatedAt:             now,
		ExpiresAt:             now.Add(e.cfg.RecoveryTTL),
	}
	err = e.inTx(ctx, "account_recovery_initiate", func(tx *database.Tx) error {
		if err := e.recoveries.Create(tx, req); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "account_recovery", map[string]any{
			"request_id":             req.ID,
			"initiator_id":           initiatorID,
			"required_verifications": req.RequiredVerifications,
		})
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	memberIDs, err := e.memberIDs(familyID)
	if err == nil {
		e.notifyMembers(ctx, familyID, memberIDs, "account_recovery",
			"Account recovery started",
			fmt.Sprintf("Recovery of the family %q has been initiated. Verify the recovery code shared with you to proceed.", family.Name),
			fmt.Sprintf(`{"request_id":%d}`, req.ID))
	}
	return req, code, nil
}

// VerifyAccountRecovery records one member's successful code verification.
// Reaching the verification threshold promotes the longest-tenured member
// to admin and completes the request in the same transaction.
func (e *Engine) VerifyAccountRecovery(ctx context.Context, requestID, userID int64, code string) (*models.RecoveryRequest, error) {
	req, err := e.recoveries.GetByID(e.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil || req.Status != models.RecoveryPending {
		return nil, ErrRequestNotFound
	}
	if req.IsExpired(e.now()) {
		if err := e.recoveries.SetStatus(e.db, req.ID, models.RecoveryExpired, nil); err != nil {
			return nil, err
		}
		return nil, ErrRequestNotFound
	}
	if err := e.RequireMember(userID, req.FamilyID); err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(req.CodeHash), []byte(code)) != nil {
		e.audit.Record(e.db, req.FamilyID, "account_recovery", map[string]any{
			"request_id": req.ID,
			"user_id":    userID,
			"outcome":    "code_mismatch",
		})
		return nil, &ValidationError{Field: "code", Message: "recovery code does not match"}
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.inTx(ctx, "account_recovery_verify", func(tx *database.Tx) error {
		verified, err := e.recoveries.HasVerified(tx, req.ID, userID)
		if err != nil {
			return err
		}
		if verified {
			return ErrAlreadyVoted
		}
		if err := e.recoveries.AddVerification(tx, req.ID, userID, e.now()); err != nil {
			return err
		}

		count, err := e.recoveries.CountVerifications(tx, req.ID)
		if err != nil {
			return err
		}
		if count < req.RequiredVerifications {
			return nil
		}

		members, err := e.families.ListMembersTx(tx, req.FamilyID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return ErrNotFamilyMember
		}
		senior := members[0].UserID
		if err := e.promote(tx, req.FamilyID, req.InitiatorID, senior); err != nil {
			return err
		}
		completedAt := e.now()
		if err := e.recoveries.SetStatus(tx, req.ID, models.RecoveryCompleted, &completedAt); err != nil {
			return err
		}
		req.Status = models.RecoveryCompleted
		req.CompletedAt = &completedAt
		e.audit.Record(tx, req.FamilyID, "account_recovery", map[string]any{
			"request_id": req.ID,
			"promoted":   senior,
			"outcome":    "completed",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SweepGovernance expires stale unfreeze votes and recovery requests.
// Run periodically by the sweeper.
func (e *Engine) SweepGovernance(ctx context.Context) (int64, error) {
	unfrozen, err := e.unfreezes.ExpireDue(e.now())
	if err != nil {
		return 0, err
	}
	recovered, err := e.recoveries.ExpireDue(e.now())
	if err != nil {
		return unfrozen, err
	}
	total := unfrozen + recovered
	if total > 0 {
		e.log.Info("expired governance requests", "unfreeze", unfrozen, "recovery", recovered)
	}
	return total, nil
}

// majority is the strict-majority threshold for n members
func majority(n int) int {
	return n/2 + 1
}
