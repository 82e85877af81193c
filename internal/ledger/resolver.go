package ledger

import (
	"strconv"
	"strings"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// ResolveUser looks a user up by numeric id, email, or username. Read-only.
func (e *Engine) ResolveUser(ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrUserNotFound
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		user, err := e.users.GetByID(id)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	if strings.Contains(ref, "@") {
		user, err := e.users.GetByEmail(ref)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	user, err := e.users.GetByUsername(ref)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// FamilyRole returns a user's role in a family, or ErrNotFamilyMember
func (e *Engine) FamilyRole(userID, familyID int64) (string, error) {
	m, err := e.families.GetMembership(familyID, userID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", ErrNotFamilyMember
	}
	return m.Role, nil
}

// RequireAdmin fails unless the caller holds the admin role in the family:
// ErrNotFamilyMember for outsiders, ErrInsufficientPermissions for members
// without the role.
func (e *Engine) RequireAdmin(userID, familyID int64) error {
	return requireRole(e.families.GetMembership, familyID, userID, models.RoleAdmin)
}

// RequireMember fails with ErrNotFamilyMember unless the caller has an
// active membership in the family.
func (e *Engine) RequireMember(userID, familyID int64) error {
	return requireRole(e.families.GetMembership, familyID, userID, "")
}

// requireAdminTx is RequireAdmin against a caller-supplied transaction
func (e *Engine) requireAdminTx(q database.DBTX, userID, familyID int64) error {
	lookup := func(familyID, userID int64) (*models.Membership, error) {
		return e.families.GetMembershipTx(q, familyID, userID)
	}
	return requireRole(lookup, familyID, userID, models.RoleAdmin)
}

func requireRole(lookup func(familyID, userID int64) (*models.Membership, error), familyID, userID int64, role string) error {
	m, err := lookup(familyID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotFamilyMember
	}
	if role != "" && m.Role != role {
		return ErrInsufficientPermissions
	}
	return nil
}
