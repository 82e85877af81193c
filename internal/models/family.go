package models

import "time"

// Family represents a family group and its shared virtual account state.
// The account's ledger row (balance, transactions) lives in users via
// AccountID; freeze state and bookkeeping live here.
type Family struct {
	ID              int64
	Name            string
	AccountID       int64
	AccountUsername string
	MemberCount     int
	IsFrozen        bool
	FrozenBy        *int64
	FrozenAt        *time.Time
	FreezeReason    string
	ActivityCount   int64
	CleanupAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UnlimitedSpending is the sentinel spending limit meaning no cap.
const UnlimitedSpending = -1

// SpendingPermission is one member's authorization to debit the family
// virtual account.
type SpendingPermission struct {
	FamilyID      int64
	UserID        int64
	Role          string
	SpendingLimit int64 // UnlimitedSpending or >= 0
	CanSpend      bool
	UpdatedBy     int64
	UpdatedAt     time.Time
}

// Allows reports whether the permission alone (ignoring freeze state and
// balance) allows a debit of amount.
func (p *SpendingPermission) Allows(amount int64) bool {
	if !p.CanSpend {
		return false
	}
	if p.SpendingLimit == UnlimitedSpending {
		return true
	}
	return amount <= p.SpendingLimit
}

// BackupAdmin is a member pre-designated for admin succession.
type BackupAdmin struct {
	FamilyID     int64
	UserID       int64
	DesignatedBy int64
	CreatedAt    time.Time
}

// AccountCleanup is a retention snapshot taken when a virtual account is
// purged or scheduled for deletion.
type AccountCleanup struct {
	ID           int64
	FamilyID     int64
	AccountID    int64
	RequestedBy  int64
	CleanupData  string // JSON snapshot of balance and transaction log
	ScheduledFor *time.Time
	ExecutedAt   *time.Time
	CreatedAt    time.Time
}
