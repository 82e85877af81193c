package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// FamilyRepository handles database operations for families, memberships,
// spending permissions and backup admins.
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

const familyCols = `f.id, f.name, f.account_id, u.username, f.member_count, f.is_frozen,
	f.frozen_by, f.frozen_at, f.freeze_reason, f.activity_count, f.cleanup_at,
	f.created_at, f.updated_at`

const familyQuery = `SELECT ` + familyCols + ` FROM families f JOIN users u ON f.account_id = u.id`

func scanFamily(scanner interface{ Scan(...any) error }) (*models.Family, error) {
	var f models.Family
	var frozen int
	var frozenBy sql.NullInt64
	var frozenAt, cleanupAt sql.NullTime
	var freezeReason sql.NullString

	err := scanner.Scan(&f.ID, &f.Name, &f.AccountID, &f.AccountUsername, &f.MemberCount,
		&frozen, &frozenBy, &frozenAt, &freezeReason, &f.ActivityCount, &cleanupAt,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	f.IsFrozen = frozen != 0
	if frozenBy.Valid {
		f.FrozenBy = &frozenBy.Int64
	}
	if frozenAt.Valid {
		f.FrozenAt = &frozenAt.Time
	}
	f.FreezeReason = freezeReason.String
	if cleanupAt.Valid {
		f.CleanupAt = &cleanupAt.Time
	}
	return &f, nil
}

// Create inserts a family row bound to its virtual-account ledger row
func (r *FamilyRepository) Create(q database.DBTX, name string, accountID int64) (int64, error) {
	id, err := q.ExecReturningID(
		`INSERT INTO families (name, account_id, member_count) VALUES (?, ?, 1)`,
		name, accountID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create family: %w", err)
	}
	return id, nil
}

// GetByID retrieves a family by ID; returns nil when not found
func (r *FamilyRepository) GetByID(familyID int64) (*models.Family, error) {
	return r.getByID(r.db, familyID)
}

// GetByIDTx retrieves a family inside a caller-supplied transaction
func (r *FamilyRepository) GetByIDTx(q database.DBTX, familyID int64) (*models.Family, error) {
	return r.getByID(q, familyID)
}

func (r *FamilyRepository) getByID(q database.DBTX, familyID int64) (*models.Family, error) {
	f, err := scanFamily(q.QueryRow(familyQuery+` WHERE f.id = ?`, familyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return f, nil
}

// GetByAccountID retrieves the family owning a virtual-account ledger row
func (r *FamilyRepository) GetByAccountID(q database.DBTX, accountID int64) (*models.Family, error) {
	f, err := scanFamily(q.QueryRow(familyQuery+` WHERE f.account_id = ?`, accountID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family by account: %w", err)
	}
	return f, nil
}

// Freeze marks the family account frozen with its metadata
func (r *FamilyRepository) Freeze(q database.DBTX, familyID, adminID int64, reason string, at time.Time) error {
	_, err := q.Exec(
		`UPDATE families SET is_frozen = 1, frozen_by = ?, frozen_at = ?, freeze_reason = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		adminID, at, reason, familyID,
	)
	if err != nil {
		return fmt.Errorf("failed to freeze family: %w", err)
	}
	return nil
}

// Unfreeze clears freeze state and metadata
func (r *FamilyRepository) Unfreeze(q database.DBTX, familyID int64) error {
	_, err := q.Exec(
		`UPDATE families SET is_frozen = 0, frozen_by = NULL, frozen_at = NULL,
		 freeze_reason = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		familyID,
	)
	if err != nil {
		return fmt.Errorf("failed to unfreeze family: %w", err)
	}
	return nil
}

// AdjustMemberCount shifts member_count by delta
func (r *FamilyRepository) AdjustMemberCount(q database.DBTX, familyID int64, delta int) error {
	_, err := q.Exec(
		`UPDATE families SET member_count = member_count + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		delta, familyID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust member count: %w", err)
	}
	return nil
}

// IncrementActivity bumps the audit activity counter
func (r *FamilyRepository) IncrementActivity(q database.DBTX, familyID int64) error {
	_, err := q.Exec(`UPDATE families SET activity_count = activity_count + 1 WHERE id = ?`, familyID)
	if err != nil {
		return fmt.Errorf("failed to increment activity: %w", err)
	}
	return nil
}

// ScheduleCleanup sets (or clears, with nil) the pending cleanup time
func (r *FamilyRepository) ScheduleCleanup(q database.DBTX, familyID int64, at *time.Time) error {
	_, err := q.Exec(`UPDATE families SET cleanup_at = ? WHERE id = ?`, at, familyID)
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	return nil
}

// ListCleanupDue returns families whose scheduled cleanup time has passed
func (r *FamilyRepository) ListCleanupDue(now time.Time) ([]models.Family, error) {
	rows, err := r.db.Query(familyQuery+` WHERE f.cleanup_at IS NOT NULL AND f.cleanup_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due cleanups: %w", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, *f)
	}
	return families, rows.Err()
}

// Delete removes the family row
func (r *FamilyRepository) Delete(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM families WHERE id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	return nil
}

// --- Memberships ---

const membershipCols = `id, family_id, user_id, role, joined_at`

func scanMembership(scanner interface{ Scan(...any) error }) (*models.Membership, error) {
	var m models.Membership
	if err := scanner.Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMember inserts a membership row
func (r *FamilyRepository) AddMember(q database.DBTX, familyID, userID int64, role string, joinedAt time.Time) error {
	_, err := q.Exec(
		`INSERT INTO family_members (family_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		familyID, userID, role, joinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add family member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row
func (r *FamilyRepository) RemoveMember(q database.DBTX, familyID, userID int64) error {
	_, err := q.Exec(`DELETE FROM family_members WHERE family_id = ? AND user_id = ?`, familyID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove family member: %w", err)
	}
	return nil
}

// GetMembership returns a user's membership in a family, or nil
func (r *FamilyRepository) GetMembership(familyID, userID int64) (*models.Membership, error) {
	return r.getMembership(r.db, familyID, userID)
}

// GetMembershipTx returns a membership inside a transaction
func (r *FamilyRepository) GetMembershipTx(q database.DBTX, familyID, userID int64) (*models.Membership, error) {
	return r.getMembership(q, familyID, userID)
}

func (r *FamilyRepository) getMembership(q database.DBTX, familyID, userID int64) (*models.Membership, error) {
	m, err := scanMembership(q.QueryRow(
		`SELECT `+membershipCols+` FROM family_members WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// SetRole updates a member's role
func (r *FamilyRepository) SetRole(q database.DBTX, familyID, userID int64, role string) error {
	_, err := q.Exec(
		`UPDATE family_members SET role = ? WHERE family_id = ? AND user_id = ?`,
		role, familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set member role: %w", err)
	}
	return nil
}

// ListMembers returns all memberships of a family, longest-tenured first
func (r *FamilyRepository) ListMembers(familyID int64) ([]models.Membership, error) {
	return r.listMembersWhere(r.db, `family_id = ?`, familyID)
}

// ListMembersTx returns memberships inside a transaction
func (r *FamilyRepository) ListMembersTx(q database.DBTX, familyID int64) ([]models.Membership, error) {
	return r.listMembersWhere(q, `family_id = ?`, familyID)
}

// ListAdmins returns the family's admin memberships
func (r *FamilyRepository) ListAdmins(q database.DBTX, familyID int64) ([]models.Membership, error) {
	return r.listMembersWhere(q, `family_id = ? AND role = ?`, familyID, models.RoleAdmin)
}

func (r *FamilyRepository) listMembersWhere(q database.DBTX, where string, args ...any) ([]models.Membership, error) {
	rows, err := q.Query(
		`SELECT `+membershipCols+` FROM family_members WHERE `+where+` ORDER BY joined_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// CountAdmins counts admin memberships in a family
func (r *FamilyRepository) CountAdmins(q database.DBTX, familyID int64) (int, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM family_members WHERE family_id = ? AND role = ?`,
		familyID, models.RoleAdmin,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// CountFamiliesForUser counts how many families a user belongs to
func (r *FamilyRepository) CountFamiliesForUser(q database.DBTX, userID int64) (int, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM family_members WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user families: %w", err)
	}
	return count, nil
}

// ListMembershipsForUser returns every membership a user holds
func (r *FamilyRepository) ListMembershipsForUser(userID int64) ([]models.Membership, error) {
	return r.listMembersWhere(r.db, `user_id = ?`, userID)
}

// DeleteMembersByFamily removes every membership in a family (delete cascade)
func (r *FamilyRepository) DeleteMembersByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM family_members WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	return nil
}

// --- Spending permissions ---

// UpsertPermission writes a member's spending permission entry
func (r *FamilyRepository) UpsertPermission(q database.DBTX, p *models.SpendingPermission) error {
	// Delete-then-insert keeps the upsert portable across all three dialects.
	_, err := q.Exec(
		`DELETE FROM spending_permissions WHERE family_id = ? AND user_id = ?`,
		p.FamilyID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear permission: %w", err)
	}
	_, err = q.Exec(
		`INSERT INTO spending_permissions (family_id, user_id, role, spending_limit, can_spend, updated_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.FamilyID, p.UserID, p.Role, p.SpendingLimit, boolToInt(p.CanSpend), p.UpdatedBy, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert permission: %w", err)
	}
	return nil
}

// GetPermission returns a member's spending permission entry, or nil
func (r *FamilyRepository) GetPermission(q database.DBTX, familyID, userID int64) (*models.SpendingPermission, error) {
	var p models.SpendingPermission
	var canSpend int
	err := q.QueryRow(
		`SELECT family_id, user_id, role, spending_limit, can_spend, updated_by, updated_at
		 FROM spending_permissions WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	).Scan(&p.FamilyID, &p.UserID, &p.Role, &p.SpendingLimit, &canSpend, &p.UpdatedBy, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	p.CanSpend = canSpend != 0
	return &p, nil
}

// DeletePermission removes a member's permission entry
func (r *FamilyRepository) DeletePermission(q database.DBTX, familyID, userID int64) error {
	_, err := q.Exec(`DELETE FROM spending_permissions WHERE family_id = ? AND user_id = ?`, familyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	return nil
}

// DeletePermissionsByFamily removes every permission entry in a family
func (r *FamilyRepository) DeletePermissionsByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM spending_permissions WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete permissions: %w", err)
	}
	return nil
}

// DeleteBackupsByFamily removes every backup-admin designation in a family
func (r *FamilyRepository) DeleteBackupsByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM backup_admins WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete backup admins: %w", err)
	}
	return nil
}

// --- Backup admins ---

// DesignateBackup flags a member for admin succession
func (r *FamilyRepository) DesignateBackup(q database.DBTX, familyID, userID, designatedBy int64, at time.Time) error {
	_, err := q.Exec(
		`INSERT INTO backup_admins (family_id, user_id, designated_by, created_at) VALUES (?, ?, ?, ?)`,
		familyID, userID, designatedBy, at,
	)
	if err != nil {
		return fmt.Errorf("failed to designate backup admin: %w", err)
	}
	return nil
}

// RemoveBackup clears a member's backup-admin designation
func (r *FamilyRepository) RemoveBackup(q database.DBTX, familyID, userID int64) error {
	_, err := q.Exec(`DELETE FROM backup_admins WHERE family_id = ? AND user_id = ?`, familyID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove backup admin: %w", err)
	}
	return nil
}

// ListBackups returns the family's backup admins, oldest designation first
func (r *FamilyRepository) ListBackups(q database.DBTX, familyID int64) ([]models.BackupAdmin, error) {
	rows, err := q.Query(
		`SELECT family_id, user_id, designated_by, created_at FROM backup_admins
		 WHERE family_id = ? ORDER BY created_at ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup admins: %w", err)
	}
	defer rows.Close()

	var backups []models.BackupAdmin
	for rows.Next() {
		var b models.BackupAdmin
		if err := rows.Scan(&b.FamilyID, &b.UserID, &b.DesignatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup admin: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

// IsBackup reports whether a user is a designated backup admin
func (r *FamilyRepository) IsBackup(q database.DBTX, familyID, userID int64) (bool, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM backup_admins WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check backup admin: %w", err)
	}
	return count > 0, nil
}

// --- Cleanup snapshots ---

// RecordCleanup persists a retention snapshot for a purged or scheduled account
func (r *FamilyRepository) RecordCleanup(q database.DBTX, c *models.AccountCleanup) (int64, error) {
	id, err := q.ExecReturningID(
		`INSERT INTO account_cleanups (family_id, account_id, requested_by, cleanup_data, scheduled_for, executed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.FamilyID, c.AccountID, c.RequestedBy, c.CleanupData, c.ScheduledFor, c.ExecutedAt, c.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record cleanup: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
