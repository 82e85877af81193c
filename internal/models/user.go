package models

import "time"

// User represents a ledger account row. Human users and family virtual
// accounts share this shape; virtual accounts are flagged and never log in.
type User struct {
	ID               int64
	Username         string
	Email            string
	Balance          int64
	IsVirtualAccount bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Membership represents a user's membership in one family
type Membership struct {
	ID       int64
	FamilyID int64
	UserID   int64
	Role     string // RoleAdmin or RoleMember
	JoinedAt time.Time
}

// Family member roles
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// IsAdmin reports whether the membership carries the admin role
func (m *Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}
