package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

func TestResolveUser(t *testing.T) {
	e, _ := newTestEngine(t)
	user := createUser(t, e, "resolve_me", "resolve_me@example.com")

	for _, ref := range []string{fmt.Sprintf("%d", user.ID), "resolve_me@example.com", "resolve_me", " resolve_me "} {
		got, err := e.ResolveUser(ref)
		if err != nil {
			t.Errorf("ResolveUser(%q) failed: %v", ref, err)
			continue
		}
		if got.ID != user.ID {
			t.Errorf("ResolveUser(%q) = user %d, want %d", ref, got.ID, user.ID)
		}
	}

	for _, ref := range []string{"", "nobody", "nobody@example.com", "999999"} {
		if _, err := e.ResolveUser(ref); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("ResolveUser(%q) error = %v, want ErrUserNotFound", ref, err)
		}
	}
}

func TestRequireRoleDistinguishesOutsiders(t *testing.T) {
	e, _ := newTestEngine(t)
	owner := createUser(t, e, "rr_owner", "rr_owner@example.com")
	member := createUser(t, e, "rr_member", "rr_member@example.com")
	outsider := createUser(t, e, "rr_outsider", "rr_outsider@example.com")
	family := createFamily(t, e, owner.ID, "Role Checks")
	addMember(t, e, family.ID, owner.ID, member, "sibling")

	// Non-members are rejected as outsiders, not as under-privileged members.
	if err := e.RequireMember(outsider.ID, family.ID); !errors.Is(err, ErrNotFamilyMember) {
		t.Errorf("RequireMember(outsider) = %v, want ErrNotFamilyMember", err)
	}
	if err := e.RequireAdmin(outsider.ID, family.ID); !errors.Is(err, ErrNotFamilyMember) {
		t.Errorf("RequireAdmin(outsider) = %v, want ErrNotFamilyMember", err)
	}

	// Members pass the membership check; only non-admins fail the admin check.
	if err := e.RequireMember(member.ID, family.ID); err != nil {
		t.Errorf("RequireMember(member) = %v, want nil", err)
	}
	if err := e.RequireAdmin(member.ID, family.ID); !errors.Is(err, ErrInsufficientPermissions) {
		t.Errorf("RequireAdmin(member) = %v, want ErrInsufficientPermissions", err)
	}
	if err := e.RequireAdmin(owner.ID, family.ID); err != nil {
		t.Errorf("RequireAdmin(owner) = %v, want nil", err)
	}

	if _, err := e.FamilyRole(outsider.ID, family.ID); !errors.Is(err, ErrNotFamilyMember) {
		t.Errorf("FamilyRole(outsider) = %v, want ErrNotFamilyMember", err)
	}
	role, err := e.FamilyRole(owner.ID, family.ID)
	if err != nil || role != models.RoleAdmin {
		t.Errorf("FamilyRole(owner) = %q, %v, want admin", role, err)
	}
}
