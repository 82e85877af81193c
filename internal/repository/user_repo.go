package repository

import (
	"database/sql"
	"fmt"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// UserRepository handles database operations for ledger account rows, both
// human users and family virtual accounts.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userCols = `id, username, email, balance, is_virtual_account, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var virtual int
	err := scanner.Scan(&u.ID, &u.Username, &u.Email, &u.Balance, &virtual, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.IsVirtualAccount = virtual != 0
	return &u, nil
}

// Create inserts a new ledger row with a zero balance.
func (r *UserRepository) Create(q database.DBTX, username, email string, isVirtual bool) (*models.User, error) {
	virtual := 0
	if isVirtual {
		virtual = 1
	}
	query := `INSERT INTO users (username, email, balance, is_virtual_account) VALUES (?, ?, 0, ?)`
	id, err := q.ExecReturningID(query, username, email, virtual)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &models.User{ID: id, Username: username, Email: email, IsVirtualAccount: isVirtual}, nil
}

// GetByID retrieves a user by ID; returns nil when not found
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	return r.getBy(r.db, "id = ?", id)
}

// GetByIDTx retrieves a user by ID inside a caller-supplied transaction
func (r *UserRepository) GetByIDTx(q database.DBTX, id int64) (*models.User, error) {
	return r.getBy(q, "id = ?", id)
}

// GetByUsername retrieves a user by username; returns nil when not found
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	return r.getBy(r.db, "username = ?", username)
}

// GetByUsernameTx retrieves a user by username inside a transaction
func (r *UserRepository) GetByUsernameTx(q database.DBTX, username string) (*models.User, error) {
	return r.getBy(q, "username = ?", username)
}

// GetByEmail retrieves a user by email; returns nil when not found
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getBy(r.db, "email = ?", email)
}

func (r *UserRepository) getBy(q database.DBTX, where string, arg any) (*models.User, error) {
	u, err := scanUser(q.QueryRow(`SELECT `+userCols+` FROM users WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UsernameTaken reports whether a username is already in use
func (r *UserRepository) UsernameTaken(q database.DBTX, username string) (bool, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// Debit subtracts amount from the account balance, guarded so the balance
// can never go negative. Returns false when the guard rejected the update,
// meaning the balance was insufficient at execution time.
func (r *UserRepository) Debit(q database.DBTX, accountID, amount int64) (bool, error) {
	result, err := q.Exec(
		`UPDATE users SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND balance >= ?`,
		amount, accountID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("failed to debit account: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read debit result: %w", err)
	}
	return n == 1, nil
}

// Credit adds amount to the account balance
func (r *UserRepository) Credit(q database.DBTX, accountID, amount int64) error {
	_, err := q.Exec(
		`UPDATE users SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}

// ZeroBalance clears an account balance during a cleanup purge
func (r *UserRepository) ZeroBalance(q database.DBTX, accountID int64) error {
	_, err := q.Exec(
		`UPDATE users SET balance = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to zero balance: %w", err)
	}
	return nil
}

// Delete removes a ledger row
func (r *UserRepository) Delete(q database.DBTX, id int64) error {
	if _, err := q.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// TotalBalance sums every balance in the ledger. Transfers never change this.
func (r *UserRepository) TotalBalance() (int64, error) {
	var total sql.NullInt64
	if err := r.db.QueryRow(`SELECT SUM(balance) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total.Int64, nil
}
