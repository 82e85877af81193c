package repository

import (
	"database/sql"
	"fmt"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// TransactionRepository handles database operations for transaction records.
// Each logical transfer writes two rows (send and receive) sharing a
// transaction_id; UNIQUE(transaction_id, account_id) backs idempotent
// retries.
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txCols = `id, transaction_id, account_id, type, amount, counterparty, note, created_at`

func scanTransaction(scanner interface{ Scan(...any) error }) (*models.Transaction, error) {
	var t models.Transaction
	var note sql.NullString
	err := scanner.Scan(&t.ID, &t.TransactionID, &t.AccountID, &t.Type, &t.Amount,
		&t.Counterparty, &note, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Note = note.String
	return &t, nil
}

// Append inserts one transaction leg
func (r *TransactionRepository) Append(q database.DBTX, t *models.Transaction) error {
	id, err := q.ExecReturningID(
		`INSERT INTO transactions (transaction_id, account_id, type, amount, counterparty, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID, t.AccountID, t.Type, t.Amount, t.Counterparty, t.Note, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	t.ID = id
	return nil
}

// GetByTransactionID returns the leg recorded against an account for a
// logical transfer id, or nil.
func (r *TransactionRepository) GetByTransactionID(q database.DBTX, transactionID string, accountID int64) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRow(
		`SELECT `+txCols+` FROM transactions WHERE transaction_id = ? AND account_id = ?`,
		transactionID, accountID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// ListByAccount returns an account's transaction log, newest first
func (r *TransactionRepository) ListByAccount(accountID int64, limit int) ([]models.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT `+txCols+` FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// CountByAccount returns the number of legs recorded against an account
func (r *TransactionRepository) CountByAccount(accountID int64) (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE account_id = ?`, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// DeleteByAccount removes an account's transaction log (cleanup purge)
func (r *TransactionRepository) DeleteByAccount(q database.DBTX, accountID int64) error {
	if _, err := q.Exec(`DELETE FROM transactions WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}
