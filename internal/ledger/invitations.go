package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// InviteMember creates a token-gated membership invitation. Admin-only.
// The invitee is addressed by email and may or may not already have an
// account; relationshipType records how the invitee relates to the inviter
// and is mirrored on acceptance.
func (e *Engine) InviteMember(ctx context.Context, familyID, inviterID int64, inviteeEmail, relationshipType string) (*models.Invitation, error) {
	inviteeEmail = strings.ToLower(strings.TrimSpace(inviteeEmail))
	if inviteeEmail == "" || !strings.Contains(inviteeEmail, "@") {
		return nil, &ValidationError{Field: "invitee_email", Message: "a valid email address is required"}
	}
	if !models.ValidRelationshipType(relationshipType) {
		return nil, &ValidationError{Field: "relationship_type", Message: "unrecognized relationship type"}
	}
	if err := e.RequireAdmin(inviterID, familyID); err != nil {
		return nil, err
	}
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	if family.MemberCount >= e.cfg.MaxFamilyMembers {
		return nil, &LimitExceededError{
			Kind:    "member_count",
			Current: int64(family.MemberCount),
			Max:     int64(e.cfg.MaxFamilyMembers),
		}
	}

	now := e.now()
	invitee, err := e.users.GetByEmail(inviteeEmail)
	if err != nil {
		return nil, err
	}
	if invitee != nil {
		membership, err := e.families.GetMembership(familyID, invitee.ID)
		if err != nil {
			return nil, err
		}
		if membership != nil {
			return nil, &ValidationError{Field: "invitee_email", Message: "user is already a family member"}
		}
	}
	pending, err := e.invitations.HasPending(familyID, inviteeEmail, now)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, &ValidationError{Field: "invitee_email", Message: "an invitation for this email is already pending"}
	}

	// The repository generates the single-use token on insert.
	inv := &models.Invitation{
		FamilyID:         familyID,
		InviterID:        inviterID,
		InviteeEmail:     inviteeEmail,
		RelationshipType: relationshipType,
		Status:           models.InvitationPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(e.cfg.InvitationTTL),
	}
	if invitee != nil {
		inv.InviteeID = &invitee.ID
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.inTx(ctx, "invite_member", func(tx *database.Tx) error {
		if err := e.invitations.Create(tx, inv); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "invitation_created", map[string]any{
			"invitation_id": inv.ID,
			"inviter_id":    inviterID,
			"invitee_email": inviteeEmail,
		})
		e.audit.AdminAction(tx, familyID, inviterID, "invitation_created", inv.InviteeID, map[string]any{
			"invitation_id": inv.ID,
			"invitee_email": inviteeEmail,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if invitee != nil {
		e.notifyMembers(ctx, familyID, []int64{invitee.ID}, "family_invitation",
			fmt.Sprintf("Invitation to join %s", family.Name),
			fmt.Sprintf("You have been invited to join the family %q.", family.Name),
			fmt.Sprintf(`{"invitation_id":%d}`, inv.ID))
	}
	return inv, nil
}

// AcceptInvitation redeems an invitation token for the given user. The new
// member starts without spending rights; an admin grants them explicitly.
// A reciprocal relationship with the inviter is recorded unless one already
// exists.
func (e *Engine) AcceptInvitation(ctx context.Context, token string, userID int64) (*models.Membership, error) {
	inv, user, err := e.invitationForUser(token, userID)
	if err != nil {
		return nil, err
	}
	family, err := e.GetFamily(inv.FamilyID)
	if err != nil {
		return nil, err
	}
	if family.MemberCount >= e.cfg.MaxFamilyMembers {
		return nil, &LimitExceededError{
			Kind:    "member_count",
			Current: int64(family.MemberCount),
			Max:     int64(e.cfg.MaxFamilyMembers),
		}
	}
	count, err := e.families.CountFamiliesForUser(e.db, userID)
	if err != nil {
		return nil, err
	}
	if count >= e.cfg.MaxFamiliesPerUser {
		return nil, &LimitExceededError{Kind: "family_count", Current: int64(count), Max: int64(e.cfg.MaxFamiliesPerUser)}
	}

	now := e.now()
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err = e.inTx(ctx, "accept_invitation", func(tx *database.Tx) error {
		if err := e.invitations.SetStatus(tx, inv.ID, models.InvitationAccepted, now); err != nil {
			return err
		}
		if err := e.families.AddMember(tx, inv.FamilyID, userID, models.RoleMember, now); err != nil {
			return err
		}
		if err := e.families.AdjustMemberCount(tx, inv.FamilyID, 1); err != nil {
			return err
		}
		if err := e.families.UpsertPermission(tx, &models.SpendingPermission{
			FamilyID:      inv.FamilyID,
			UserID:        userID,
			Role:          models.RoleMember,
			CanSpend:      false,
			SpendingLimit: 0,
			UpdatedBy:     inv.InviterID,
			UpdatedAt:     now,
		}); err != nil {
			return err
		}

		existing, err := e.relationships.GetActiveBetween(tx, inv.FamilyID, inv.InviterID, userID)
		if err != nil {
			return err
		}
		if existing == nil {
			reciprocal, _ := models.ReciprocalRelationship(inv.RelationshipType)
			if err := e.relationships.Create(tx, &models.Relationship{
				FamilyID:  inv.FamilyID,
				UserAID:   inv.InviterID,
				UserBID:   userID,
				TypeAToB:  reciprocal,
				TypeBToA:  inv.RelationshipType,
				Status:    models.RelationshipActive,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		e.audit.Record(tx, inv.FamilyID, "member_joined", map[string]any{
			"invitation_id": inv.ID,
			"user_id":       userID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notifyMembers(ctx, inv.FamilyID, []int64{inv.InviterID}, "invitation_accepted",
		"Invitation accepted",
		fmt.Sprintf("%s joined the family %q.", user.Username, family.Name), "")

	return e.families.GetMembership(inv.FamilyID, userID)
}

// DeclineInvitation marks an invitation declined by its invitee
func (e *Engine) DeclineInvitation(ctx context.Context, token string, userID int64) error {
	inv, _, err := e.invitationForUser(token, userID)
	if err != nil {
		return err
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "decline_invitation", func(tx *database.Tx) error {
		if err := e.invitations.SetStatus(tx, inv.ID, models.InvitationDeclined, e.now()); err != nil {
			return err
		}
		e.audit.Record(tx, inv.FamilyID, "invitation_declined", map[string]any{
			"invitation_id": inv.ID,
			"user_id":       userID,
		})
		return nil
	})
}

// CancelInvitation withdraws a pending invitation. Admin-only.
func (e *Engine) CancelInvitation(ctx context.Context, invitationID, adminID int64) error {
	inv, err := e.invitations.GetByID(e.db, invitationID)
	if err != nil {
		return err
	}
	if inv == nil || !inv.IsValid(e.now()) {
		return ErrInvitationNotFound
	}
	if err := e.RequireAdmin(adminID, inv.FamilyID); err != nil {
		return err
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "cancel_invitation", func(tx *database.Tx) error {
		if err := e.invitations.SetStatus(tx, inv.ID, models.InvitationCancelled, e.now()); err != nil {
			return err
		}
		e.audit.AdminAction(tx, inv.FamilyID, adminID, "invitation_cancelled", inv.InviteeID, map[string]any{
			"invitation_id": inv.ID,
			"invitee_email": inv.InviteeEmail,
		})
		return nil
	})
}

// ListInvitations returns a family's invitations, newest first. Admin-only.
func (e *Engine) ListInvitations(familyID, adminID int64) ([]models.Invitation, error) {
	if err := e.RequireAdmin(adminID, familyID); err != nil {
		return nil, err
	}
	return e.invitations.ListByFamily(familyID)
}

// SweepExpiredInvitations flips pending invitations past their window to
// expired. Run periodically by the sweeper.
func (e *Engine) SweepExpiredInvitations(ctx context.Context) (int64, error) {
	n, err := e.invitations.ExpireDue(e.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.log.Info("expired invitations", "count", n)
	}
	return n, nil
}

// invitationForUser loads a valid pending invitation by token and checks the
// redeeming user matches the invitee by ID or email.
func (e *Engine) invitationForUser(token string, userID int64) (*models.Invitation, *models.User, error) {
	inv, err := e.invitations.GetByToken(e.db, token)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil || !inv.IsValid(e.now()) {
		return nil, nil, ErrInvitationNotFound
	}
	user, err := e.users.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	if inv.InviteeID != nil {
		if *inv.InviteeID != userID {
			return nil, nil, ErrInsufficientPermissions
		}
	} else if !strings.EqualFold(user.Email, inv.InviteeEmail) {
		return nil, nil, ErrInsufficientPermissions
	}
	return inv, user, nil
}

// RemoveMember removes a member from the family, dropping their spending
// permission and relationships. Admin-only. The last admin cannot be
// removed; demote-then-remove is required and blocked the same way.
func (e *Engine) RemoveMember(ctx context.Context, familyID, adminID, targetUserID int64) error {
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

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	return e.inTx(ctx, "remove_member", func(tx *database.Tx) error {
		if membership.Role == models.RoleAdmin {
			admins, err := e.families.CountAdmins(tx, familyID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrMultipleAdminsRequired
			}
		}
		if err := e.families.RemoveMember(tx, familyID, targetUserID); err != nil {
			return err
		}
		if err := e.families.AdjustMemberCount(tx, familyID, -1); err != nil {
			return err
		}
		if err := e.families.DeletePermission(tx, familyID, targetUserID); err != nil {
			return err
		}
		if err := e.families.RemoveBackup(tx, familyID, targetUserID); err != nil {
			return err
		}
		if err := e.relationships.RemoveForUser(tx, familyID, targetUserID); err != nil {
			return err
		}
		e.audit.Record(tx, familyID, "member_removed", map[string]any{
			"user_id":    targetUserID,
			"removed_by": adminID,
		})
		e.audit.AdminAction(tx, familyID, adminID, "member_removed", &targetUserID, nil)
		return nil
	})
}
