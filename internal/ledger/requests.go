package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// Review actions accepted by ReviewRequest
const (
	ReviewApprove = "approve"
	ReviewDeny    = "deny"
)

const minRequestReasonLen = 5

// CreateRequest files a member's withdrawal request against the family
// account. Requests at or under the auto-approval threshold pay out
// immediately when the requester's own spending permission would allow the
// amount; everything else waits for admin review and expires after the
// configured window.
func (e *Engine) CreateRequest(ctx context.Context, familyID, requesterID, amount int64, reason string) (*models.TokenRequest, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if len(strings.TrimSpace(reason)) < minRequestReasonLen {
		return nil, &ValidationError{
			Field:      "reason",
			Message:    fmt.Sprintf("reason must be at least %d characters", minRequestReasonLen),
			Constraint: "min_length",
		}
	}
	if err := e.RequireMember(requesterID, familyID); err != nil {
		return nil, err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	if family.IsFrozen {
		e.audit.Record(e.db, familyID, "frozen_account_attempt", map[string]any{
			"requester_id": requesterID,
			"amount":       amount,
			"operation":    "token_request",
		})
		return nil, frozenError(family)
	}

	now := e.now()
	req := &models.TokenRequest{
		FamilyID:    familyID,
		RequesterID: requesterID,
		Amount:      amount,
		Reason:      strings.TrimSpace(reason),
		Status:      models.RequestPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.cfg.RequestTTL),
	}

	autoApprove := amount <= e.cfg.AutoApprovalThreshold
	if autoApprove {
		perm, err := e.families.GetPermission(e.db, familyID, requesterID)
		if err != nil {
			return nil, err
		}
		autoApprove = perm != nil && perm.Allows(amount)
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	if autoApprove {
		payoutErr := e.inTx(ctx, "token_request_auto_approve", func(tx *database.Tx) error {
			account, err := e.users.GetByIDTx(tx, family.AccountID)
			if err != nil {
				return err
			}
			if account == nil {
				return ErrAccountNotFound
			}
			requester, err := e.users.GetByIDTx(tx, requesterID)
			if err != nil {
				return err
			}
			if requester == nil {
				return ErrUserNotFound
			}

			if _, err := e.executeTransfer(tx, account, requester, amount, req.Reason, ""); err != nil {
				return err
			}

			processedAt := now
			req.Status = models.RequestApproved
			req.AutoApproved = true
			req.ProcessedAt = &processedAt
			if err := e.requests.Create(tx, req); err != nil {
				return err
			}
			e.audit.Record(tx, familyID, "token_request_auto_approve", map[string]any{
				"request_id":   req.ID,
				"requester_id": requesterID,
				"amount":       amount,
			})
			return nil
		})
		if payoutErr == nil {
			return req, nil
		}
		if !errors.Is(payoutErr, ErrInsufficientFunds) {
			return nil, payoutErr
		}
		// Balance could not cover the payout right now. The request is
		// still worth an admin's attention, so it falls back to pending.
		req.Status = models.RequestPending
		req.AutoApproved = false
		req.ProcessedAt = nil
	}

	err = e.inTx(ctx, "token_request_create", func(tx *database.Tx) error {
		if err := e.requests.Create(tx, req); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "token_request_created", map[string]any{
			"request_id":   req.ID,
			"requester_id": requesterID,
			"amount":       amount,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	admins, err := e.families.ListAdmins(e.db, familyID)
	if err != nil {
		e.log.Warn("failed to list admins for request notification", "family_id", familyID, "error", err)
		return req, nil
	}
	adminIDs := make([]int64, 0, len(admins))
	for _, m := range admins {
		adminIDs = append(adminIDs, m.UserID)
	}
	e.notifyMembers(ctx, familyID, adminIDs, "token_request",
		"Token request awaiting review",
		fmt.Sprintf("A member requested %d tokens: %s", amount, req.Reason),
		fmt.Sprintf(`{"request_id":%d}`, req.ID))

	return req, nil
}

// ReviewRequest resolves a pending request. Approval pays out and marks the
// request in a single transaction, so a failed payout leaves the request
// pending for another attempt. Admin approval overrides the requester's
// per-member spending limit; freeze state and balance still apply.
func (e *Engine) ReviewRequest(ctx context.Context, requestID, adminID int64, action, comments string) (*models.TokenRequest, error) {
	if action != ReviewApprove && action != ReviewDeny {
		return nil, &ValidationError{Field: "action", Message: "action must be approve or deny"}
	}

	req, err := e.requests.GetByID(e.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil || !req.IsPending() || req.IsExpired(e.now()) {
		return nil, ErrRequestNotFound
	}
	if err := e.RequireAdmin(adminID, req.FamilyID); err != nil {
		return nil, err
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	processedAt := e.now()
	err = e.inTx(ctx, "token_request_review", func(tx *database.Tx) error {
		if action == ReviewApprove {
			family, err := e.families.GetByIDTx(tx, req.FamilyID)
			if err != nil {
				return err
			}
			if family == nil {
				return ErrFamilyNotFound
			}
			account, err := e.users.GetByIDTx(tx, family.AccountID)
			if err != nil {
				return err
			}
			if account == nil {
				return ErrAccountNotFound
			}
			requester, err := e.users.GetByIDTx(tx, req.RequesterID)
			if err != nil {
				return err
			}
			if requester == nil {
				return ErrUserNotFound
			}
			if _, err := e.executeTransfer(tx, account, requester, req.Amount, req.Reason, ""); err != nil {
				return err
			}
		}

		status := models.RequestDenied
		eventType := "token_request_denied"
		if action == ReviewApprove {
			status = models.RequestApproved
			eventType = "token_request_approved"
		}
		if err := e.requests.MarkReviewed(tx, req.ID, status, adminID, comments, processedAt); err != nil {
			return err
		}
		req.Status = status
		req.ReviewedBy = &adminID
		req.AdminComments = comments
		req.ProcessedAt = &processedAt

		e.audit.Record(tx, req.FamilyID, eventType, map[string]any{
			"request_id":   req.ID,
			"requester_id": req.RequesterID,
			"amount":       req.Amount,
			"reviewed_by":  adminID,
		})
		e.audit.AdminAction(tx, req.FamilyID, adminID, eventType, &req.RequesterID, map[string]any{
			"request_id": req.ID,
			"comments":   comments,
		})
		return nil
	})
	if err != nil {
		e.recordFrozenAttempt(err, map[string]any{
			"request_id": req.ID,
			"amount":     req.Amount,
		})
		return nil, err
	}

	title := "Token request denied"
	if req.Status == models.RequestApproved {
		title = "Token request approved"
	}
	e.notifyMembers(ctx, req.FamilyID, []int64{req.RequesterID}, "token_request_reviewed",
		title, comments, fmt.Sprintf(`{"request_id":%d}`, req.ID))

	return req, nil
}

// GetRequest returns a token request visible to the caller: the requester
// or any family admin.
func (e *Engine) GetRequest(requestID, callerID int64) (*models.TokenRequest, error) {
	req, err := e.requests.GetByID(e.db, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.RequesterID != callerID {
		if err := e.RequireAdmin(callerID, req.FamilyID); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// ListRequests returns a family's requests for a member, newest first.
// Status filters to a single state when non-empty.
func (e *Engine) ListRequests(familyID, callerID int64, status string) ([]models.TokenRequest, error) {
	if err := e.RequireMember(callerID, familyID); err != nil {
		return nil, err
	}
	return e.requests.ListByFamily(familyID, status)
}

// SweepExpiredRequests flips pending requests past their review window to
// expired. Run periodically by the sweeper.
func (e *Engine) SweepExpiredRequests(ctx context.Context) (int64, error) {
	n, err := e.requests.ExpireDue(e.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.log.Info("expired token requests", "count", n)
	}
	return n, nil
}
