package ledger

import (
	"context"
	"errors"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/security"
)

// errDuplicateTransfer signals that the transaction_id was already applied
// to the source account. The caller returns the recorded leg instead of
// re-applying.
var errDuplicateTransfer = errors.New("duplicate transaction id")

// Transfer moves tokens between two accounts atomically: conditional debit,
// send leg, credit, receive leg, all in one transaction. A debit rejected by
// the balance guard aborts the whole operation with ErrInsufficientFunds and
// leaves no partial writes. Supplying the same transactionID twice returns
// the originally recorded transaction without double-applying.
func (e *Engine) Transfer(ctx context.Context, from, to string, amount int64, note, transactionID string) (*models.Transaction, error) {
	if e.limiter != nil && !e.limiter.Allow(from) {
		return nil, &RateLimitError{RetryAfter: e.limiter.Window()}
	}
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if from == to {
		return nil, &ValidationError{Field: "to", Message: "cannot transfer to the same account"}
	}
	if transactionID == "" {
		transactionID = security.GenerateTransactionID()
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var result *models.Transaction
	err := e.inTx(ctx, "transfer", func(tx *database.Tx) error {
		fromUser, err := e.users.GetByUsernameTx(tx, from)
		if err != nil {
			return err
		}
		if fromUser == nil {
			return ErrUserNotFound
		}
		toUser, err := e.users.GetByUsernameTx(tx, to)
		if err != nil {
			return err
		}
		if toUser == nil {
			// Unknown recipients are rejected rather than auto-provisioned:
			// silently creating a ledger row for a typo'd username loses
			// tokens.
			return ErrRecipientNotFound
		}

		result, err = e.executeTransfer(tx, fromUser, toUser, amount, note, transactionID)
		return err
	})
	if errors.Is(err, errDuplicateTransfer) {
		fromUser, lookupErr := e.users.GetByUsername(from)
		if lookupErr != nil || fromUser == nil {
			return nil, err
		}
		return e.transactions.GetByTransactionID(e.db, transactionID, fromUser.ID)
	}
	if err != nil {
		// The frozen check aborts the transaction, so the attempt is
		// recorded outside it or the event would roll back with it.
		e.recordFrozenAttempt(err, map[string]any{"amount": amount, "to": to})
		return nil, err
	}
	return result, nil
}

// recordFrozenAttempt audits a debit attempt against a frozen account
func (e *Engine) recordFrozenAttempt(err error, details map[string]any) {
	var frozenErr *AccountFrozenError
	if errors.As(err, &frozenErr) {
		e.audit.Record(e.db, frozenErr.FamilyID, "frozen_account_attempt", details)
	}
}

// executeTransfer performs the debit/credit pair and both transaction legs
// inside the caller's transaction. Freeze state blocks the debit side only;
// deposits into a frozen account go through.
func (e *Engine) executeTransfer(tx *database.Tx, fromUser, toUser *models.User, amount int64, note, transactionID string) (*models.Transaction, error) {
	if fromUser.IsVirtualAccount {
		family, err := e.families.GetByAccountID(tx, fromUser.ID)
		if err != nil {
			return nil, err
		}
		if family == nil {
			return nil, ErrAccountNotFound
		}
		if family.IsFrozen {
			return nil, frozenError(family)
		}
	}

	if transactionID == "" {
		transactionID = security.GenerateTransactionID()
	}

	existing, err := e.transactions.GetByTransactionID(tx, transactionID, fromUser.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errDuplicateTransfer
	}

	applied, err := e.users.Debit(tx, fromUser.ID, amount)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInsufficientFunds
	}

	now := e.now()
	sendLeg := &models.Transaction{
		TransactionID: transactionID,
		AccountID:     fromUser.ID,
		Type:          models.TxSend,
		Amount:        amount,
		Counterparty:  toUser.Username,
		Note:          note,
		CreatedAt:     now,
	}
	if err := e.transactions.Append(tx, sendLeg); err != nil {
		// A concurrent retry of the same transaction_id lost the race to the
		// unique index; abort, the original application stands.
		if tx.GetDialect().IsUniqueViolation(err) {
			return nil, errDuplicateTransfer
		}
		return nil, err
	}

	if err := e.users.Credit(tx, toUser.ID, amount); err != nil {
		return nil, err
	}
	receiveLeg := &models.Transaction{
		TransactionID: transactionID,
		AccountID:     toUser.ID,
		Type:          models.TxReceive,
		Amount:        amount,
		Counterparty:  fromUser.Username,
		Note:          note,
		CreatedAt:     now,
	}
	if err := e.transactions.Append(tx, receiveLeg); err != nil {
		return nil, err
	}

	return sendLeg, nil
}

// FamilySpend debits the family's virtual account toward a recipient after
// full permission validation. The recipient may be a member, another user,
// or a priced-item account owned by the shop layer.
func (e *Engine) FamilySpend(ctx context.Context, familyID, spenderID int64, toUsername string, amount int64, note string) (*models.Transaction, error) {
	decision, err := e.ValidateSpending(ctx, familyID, spenderID, amount)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, e.denialError(decision.Reason, familyID)
	}

	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	return e.Transfer(ctx, family.AccountUsername, toUsername, amount, note, "")
}

// Deposit credits an account from outside the ledger (funding, allowance
// top-up). Deposits succeed even when the receiving family account is
// frozen: freezing blocks spending, not income.
func (e *Engine) Deposit(ctx context.Context, toUsername string, amount int64, note string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "amount must be positive"}
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var result *models.Transaction
	err := e.inTx(ctx, "deposit", func(tx *database.Tx) error {
		toUser, err := e.users.GetByUsernameTx(tx, toUsername)
		if err != nil {
			return err
		}
		if toUser == nil {
			return ErrRecipientNotFound
		}
		if err := e.users.Credit(tx, toUser.ID, amount); err != nil {
			return err
		}
		result = &models.Transaction{
			TransactionID: security.GenerateTransactionID(),
			AccountID:     toUser.ID,
			Type:          models.TxReceive,
			Amount:        amount,
			Counterparty:  "deposit",
			Note:          note,
			CreatedAt:     e.now(),
		}
		return e.transactions.Append(tx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// denialError maps a spending denial reason to the typed error the
// transport layer expects.
func (e *Engine) denialError(reason string, familyID int64) error {
	switch reason {
	case DenyFamilyNotFound:
		return ErrFamilyNotFound
	case DenyAccountNotFound:
		return ErrAccountNotFound
	case DenyNotFamilyMember:
		return ErrNotFamilyMember
	case DenyAccountFrozen:
		family, err := e.families.GetByID(familyID)
		if err == nil && family != nil {
			return frozenError(family)
		}
		return &AccountFrozenError{FamilyID: familyID}
	case DenyNoSpendingPermission:
		return ErrInsufficientPermissions
	case DenyLimitExceeded:
		return &LimitExceededError{Kind: "spending_limit"}
	case DenyInsufficientBalance:
		return ErrInsufficientFunds
	default:
		return ErrInsufficientPermissions
	}
}
