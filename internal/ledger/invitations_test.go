package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

func TestInvitationLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	owner := createUser(t, e, "inv_owner", "inv_owner@example.com")
	invitee := createUser(t, e, "inv_kid", "inv_kid@example.com")
	family := createFamily(t, e, owner.ID, "Invite Family")

	inv, err := e.InviteMember(ctx, family.ID, owner.ID, "inv_kid@example.com", "child")
	if err != nil {
		t.Fatalf("InviteMember failed: %v", err)
	}
	if inv.Token == "" {
		t.Fatal("invitation has no token")
	}
	if inv.InviteeID == nil || *inv.InviteeID != invitee.ID {
		t.Errorf("invitee_id = %v, want %d", inv.InviteeID, invitee.ID)
	}

	membership, err := e.AcceptInvitation(ctx, inv.Token, invitee.ID)
	if err != nil {
		t.Fatalf("AcceptInvitation failed: %v", err)
	}
	if membership.Role != models.RoleMember {
		t.Errorf("new member role = %q, want member", membership.Role)
	}

	updated, err := e.GetFamily(family.ID)
	if err != nil {
		t.Fatalf("GetFamily failed: %v", err)
	}
	if updated.MemberCount != 2 {
		t.Errorf("member count = %d, want 2", updated.MemberCount)
	}

	// New members start without spending rights.
	perm, err := e.GetSpendingPermission(family.ID, invitee.ID)
	if err != nil || perm == nil {
		t.Fatalf("permission not created: %v", err)
	}
	if perm.CanSpend || perm.SpendingLimit != 0 {
		t.Errorf("default permission = {can_spend:%v limit:%d}, want locked", perm.CanSpend, perm.SpendingLimit)
	}

	// The reciprocal relationship with the inviter was recorded.
	rels, err := e.relationships.ListByFamily(family.ID)
	if err != nil {
		t.Fatalf("ListByFamily failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("relationships = %d, want 1", len(rels))
	}
	rel := rels[0]
	types := map[string]bool{rel.TypeAToB: true, rel.TypeBToA: true}
	if !types["parent"] || !types["child"] {
		t.Errorf("relationship types = %q/%q, want parent/child pair", rel.TypeAToB, rel.TypeBToA)
	}

	// A used token cannot be redeemed again.
	if _, err := e.AcceptInvitation(ctx, inv.Token, invitee.ID); !errors.Is(err, ErrInvitationNotFound) {
		t.Errorf("reuse error = %v, want ErrInvitationNotFound", err)
	}
}

func TestInviteMemberValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	owner := createUser(t, e, "iv_owner", "iv_owner@example.com")
	member := createUser(t, e, "iv_member", "iv_member@example.com")
	family := createFamily(t, e, owner.ID, "Strict Family")
	addMember(t, e, family.ID, owner.ID, member, "sibling")

	var vErr *ValidationError
	if _, err := e.InviteMember(ctx, family.ID, owner.ID, "not-an-email", "child"); !errors.As(err, &vErr) {
		t.Errorf("bad email error = %v, want ValidationError", err)
	}
	if _, err := e.InviteMember(ctx, family.ID, owner.ID, "x@example.com", "cousin-twice-removed"); !errors.As(err, &vErr) {
		t.Errorf("bad relationship error = %v, want ValidationError", err)
	}
	if _, err := e.InviteMember(ctx, family.ID, owner.ID, "iv_member@example.com", "sibling"); !errors.As(err, &vErr) {
		t.Errorf("already-member error = %v, want ValidationError", err)
	}

	// Only admins invite.
	if _, err := e.InviteMember(ctx, family.ID, member.ID, "new@example.com", "sibling"); !errors.Is(err, ErrInsufficientPermissions) {
		t.Errorf("member invite error = %v, want ErrInsufficientPermissions", err)
	}

	// No duplicate pending invitations for one email.
	if _, err := e.InviteMember(ctx, family.ID, owner.ID, "pending@example.com", "child"); err != nil {
		t.Fatalf("first invite failed: %v", err)
	}
	if _, err := e.InviteMember(ctx, family.ID, owner.ID, "pending@example.com", "child"); !errors.As(err, &vErr) {
		t.Errorf("duplicate invite error = %v, want ValidationError", err)
	}
}

func TestAcceptInvitationWrongUser(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	owner := createUser(t, e, "w_owner", "w_owner@example.com")
	createUser(t, e, "w_right", "w_right@example.com")
	wrong := createUser(t, e, "w_wrong", "w_wrong@example.com")
	family := createFamily(t, e, owner.ID, "Careful Family")

	inv, err := e.InviteMember(ctx, family.ID, owner.ID, "w_right@example.com", "child")
	if err != nil {
		t.Fatalf("InviteMember failed: %v", err)
	}
	if _, err := e.AcceptInvitation(ctx, inv.Token, wrong.ID); !errors.Is(err, ErrInsufficientPermissions) {
		t.Errorf("wrong user error = %v, want ErrInsufficientPermissions", err)
	}
	if _, err := e.AcceptInvitation(ctx, "no-such-token", wrong.ID); !errors.Is(err, ErrInvitationNotFound) {
		t.Errorf("bad token error = %v, want ErrInvitationNotFound", err)
	}
}

func TestDeclineAndCancelInvitation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	owner := createUser(t, e, "d_owner", "d_owner@example.com")
	invitee := createUser(t, e, "d_kid", "d_kid@example.com")
	family := createFamily(t, e, owner.ID, "Decline Family")

	inv, err := e.InviteMember(ctx, family.ID, owner.ID, "d_kid@example.com", "child")
	if err != nil {
		t.Fatalf("InviteMember failed: %v", err)
	}
	if err := e.DeclineInvitation(ctx, inv.Token, invitee.ID); err != nil {
		t.Fatalf("DeclineInvitation failed: %v", err)
	}
	if _, err := e.AcceptInvitation(ctx, inv.Token, invitee.ID); !errors.Is(err, ErrInvitationNotFound) {
		t.Errorf("accept-after-decline error = %v, want ErrInvitationNotFound", err)
	}

	// Cancel is admin-only and kills a pending invitation.
	second, err := e.InviteMember(ctx, family.ID, owner.ID, "d_kid@example.com", "child")
	if err != nil {
		t.Fatalf("second invite failed: %v", err)
	}
	if err := e.CancelInvitation(ctx, second.ID, invitee.ID); !errors.Is(err, ErrNotFamilyMember) {
		t.Errorf("non-member cancel error = %v, want ErrNotFamilyMember", err)
	}
	if err := e.CancelInvitation(ctx, second.ID, owner.ID); err != nil {
		t.Fatalf("CancelInvitation failed: %v", err)
	}
	if _, err := e.AcceptInvitation(ctx, second.Token, invitee.ID); !errors.Is(err, ErrInvitationNotFound) {
		t.Errorf("accept-after-cancel error = %v, want ErrInvitationNotFound", err)
	}
}

func TestInvitationExpiry(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	owner := createUser(t, e, "x_owner", "x_owner@example.com")
	invitee := createUser(t, e, "x_kid", "x_kid@example.com")
	family := createFamily(t, e, owner.ID, "Expiry Family")

	inv, err := e.InviteMember(ctx, family.ID, owner.ID, "x_kid@example.com", "child")
	if err != nil {
		t.Fatalf("InviteMember failed: %v", err)
	}

	clock.Advance(e.cfg.InvitationTTL + time.Hour)
	if _, err := e.AcceptInvitation(ctx, inv.Token, invitee.ID); !errors.Is(err, ErrInvitationNotFound) {
		t.Errorf("expired accept error = %v, want ErrInvitationNotFound", err)
	}
	swept, err := e.SweepExpiredInvitations(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredInvitations failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
}

func TestRemoveMember(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	owner := createUser(t, e, "rm_owner", "rm_owner@example.com")
	member := createUser(t, e, "rm_member", "rm_member@example.com")
	family := createFamily(t, e, owner.ID, "Shrinking Family")
	addMember(t, e, family.ID, owner.ID, member, "child")

	if err := e.RemoveMember(ctx, family.ID, owner.ID, member.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	membership, err := e.families.GetMembership(family.ID, member.ID)
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if membership != nil {
		t.Error("membership survived removal")
	}
	updated, _ := e.GetFamily(family.ID)
	if updated.MemberCount != 1 {
		t.Errorf("member count = %d, want 1", updated.MemberCount)
	}

	// The last admin cannot remove themselves.
	if err := e.RemoveMember(ctx, family.ID, owner.ID, owner.ID); !errors.Is(err, ErrMultipleAdminsRequired) {
		t.Errorf("last-admin removal error = %v, want ErrMultipleAdminsRequired", err)
	}
}
