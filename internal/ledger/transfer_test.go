package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/security"
)

func TestTransfer(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := createUser(t, e, "t_alice", "t_alice@example.com")
	bob := createUser(t, e, "t_bob", "t_bob@example.com")
	fundAccount(t, e, "t_alice", 1000)

	txn, err := e.Transfer(ctx, "t_alice", "t_bob", 250, "rent share", "")
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if txn.Type != models.TxSend || txn.Amount != 250 {
		t.Errorf("send leg = %+v", txn)
	}
	if txn.Counterparty != "t_bob" {
		t.Errorf("counterparty = %q, want t_bob", txn.Counterparty)
	}

	if got := balanceOf(t, e, alice.ID); got != 750 {
		t.Errorf("sender balance = %d, want 750", got)
	}
	if got := balanceOf(t, e, bob.ID); got != 250 {
		t.Errorf("recipient balance = %d, want 250", got)
	}

	// Both legs share the transaction id.
	received, err := e.transactions.GetByTransactionID(e.db, txn.TransactionID, bob.ID)
	if err != nil || received == nil {
		t.Fatalf("receive leg missing: %v", err)
	}
	if received.Type != models.TxReceive || received.Amount != 250 {
		t.Errorf("receive leg = %+v", received)
	}
}

func TestTransferConservation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	createUser(t, e, "c_alice", "c_alice@example.com")
	createUser(t, e, "c_bob", "c_bob@example.com")
	createUser(t, e, "c_carol", "c_carol@example.com")
	fundAccount(t, e, "c_alice", 600)

	before, err := e.users.TotalBalance()
	if err != nil {
		t.Fatalf("TotalBalance failed: %v", err)
	}

	transfers := []struct {
		from, to string
		amount   int64
	}{
		{"c_alice", "c_bob", 200},
		{"c_bob", "c_carol", 150},
		{"c_alice", "c_carol", 50},
		{"c_carol", "c_alice", 100},
	}
	for _, tr := range transfers {
		if _, err := e.Transfer(ctx, tr.from, tr.to, tr.amount, "", ""); err != nil {
			t.Fatalf("Transfer %s->%s failed: %v", tr.from, tr.to, err)
		}
	}

	after, err := e.users.TotalBalance()
	if err != nil {
		t.Fatalf("TotalBalance failed: %v", err)
	}
	if before != after {
		t.Errorf("total balance changed: %d -> %d", before, after)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := createUser(t, e, "p_alice", "p_alice@example.com")
	bob := createUser(t, e, "p_bob", "p_bob@example.com")
	fundAccount(t, e, "p_alice", 100)

	_, err := e.Transfer(ctx, "p_alice", "p_bob", 101, "", "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	// Nothing moved and no transaction legs were written.
	if got := balanceOf(t, e, alice.ID); got != 100 {
		t.Errorf("sender balance = %d, want 100", got)
	}
	if got := balanceOf(t, e, bob.ID); got != 0 {
		t.Errorf("recipient balance = %d, want 0", got)
	}
	legs, err := e.transactions.ListByAccount(bob.ID, 10)
	if err != nil {
		t.Fatalf("ListByAccount failed: %v", err)
	}
	if len(legs) != 0 {
		t.Errorf("recipient has %d legs, want 0", len(legs))
	}

	// The exact balance goes through.
	if _, err := e.Transfer(ctx, "p_alice", "p_bob", 100, "", ""); err != nil {
		t.Fatalf("exact-balance transfer failed: %v", err)
	}
	if got := balanceOf(t, e, alice.ID); got != 0 {
		t.Errorf("sender balance = %d, want 0", got)
	}
}

func TestTransferIdempotency(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := createUser(t, e, "i_alice", "i_alice@example.com")
	bob := createUser(t, e, "i_bob", "i_bob@example.com")
	fundAccount(t, e, "i_alice", 500)

	txID := security.GenerateTransactionID()
	first, err := e.Transfer(ctx, "i_alice", "i_bob", 200, "once", txID)
	if err != nil {
		t.Fatalf("first transfer failed: %v", err)
	}

	// Retrying with the same id returns the recorded transaction without
	// moving tokens again.
	second, err := e.Transfer(ctx, "i_alice", "i_bob", 200, "once", txID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if second.TransactionID != first.TransactionID {
		t.Errorf("retry returned different transaction: %q vs %q", second.TransactionID, first.TransactionID)
	}
	if got := balanceOf(t, e, alice.ID); got != 300 {
		t.Errorf("sender balance = %d, want 300", got)
	}
	if got := balanceOf(t, e, bob.ID); got != 200 {
		t.Errorf("recipient balance = %d, want 200", got)
	}
}

func TestTransferValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	createUser(t, e, "v_alice", "v_alice@example.com")
	fundAccount(t, e, "v_alice", 100)

	if _, err := e.Transfer(ctx, "v_alice", "nobody", 50, "", ""); !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("unknown recipient error = %v, want ErrRecipientNotFound", err)
	}
	if _, err := e.Transfer(ctx, "ghost", "v_alice", 50, "", ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown sender error = %v, want ErrUserNotFound", err)
	}

	var vErr *ValidationError
	if _, err := e.Transfer(ctx, "v_alice", "v_alice", 50, "", ""); !errors.As(err, &vErr) {
		t.Errorf("self transfer error = %v, want ValidationError", err)
	}
	if _, err := e.Transfer(ctx, "v_alice", "nobody", 0, "", ""); !errors.As(err, &vErr) {
		t.Errorf("zero amount error = %v, want ValidationError", err)
	}
	if _, err := e.Transfer(ctx, "v_alice", "nobody", -10, "", ""); !errors.As(err, &vErr) {
		t.Errorf("negative amount error = %v, want ValidationError", err)
	}
}

func TestFrozenAccountBlocksDebitNotCredit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	owner := createUser(t, e, "f_owner", "f_owner@example.com")
	outsider := createUser(t, e, "f_out", "f_out@example.com")
	family := createFamily(t, e, owner.ID, "Ice Family")
	fundAccount(t, e, family.AccountUsername, 400)
	fundAccount(t, e, "f_out", 100)

	if _, err := e.Freeze(ctx, family.ID, owner.ID, "audit hold"); err != nil {
		t.Fatalf("Freeze failed: %v", err)
	}

	// Debits from the frozen account are rejected with the freeze context.
	_, err := e.Transfer(ctx, family.AccountUsername, "f_out", 50, "", "")
	var frozenErr *AccountFrozenError
	if !errors.As(err, &frozenErr) {
		t.Fatalf("error = %v, want AccountFrozenError", err)
	}
	if frozenErr.FamilyID != family.ID || frozenErr.FrozenBy != owner.ID {
		t.Errorf("freeze context = %+v", frozenErr)
	}
	if got := balanceOf(t, e, family.AccountID); got != 400 {
		t.Errorf("frozen balance moved: %d", got)
	}

	// Credits into the frozen account still land.
	if _, err := e.Transfer(ctx, "f_out", family.AccountUsername, 60, "", ""); err != nil {
		t.Fatalf("credit into frozen account failed: %v", err)
	}
	if got := balanceOf(t, e, family.AccountID); got != 460 {
		t.Errorf("balance after credit = %d, want 460", got)
	}
	if _, err := e.Deposit(ctx, family.AccountUsername, 40, "allowance"); err != nil {
		t.Fatalf("deposit into frozen account failed: %v", err)
	}
	if got := balanceOf(t, e, family.AccountID); got != 500 {
		t.Errorf("balance after deposit = %d, want 500", got)
	}

	// The denied attempt left a high-severity audit event.
	events, _ := e.ListSecurityEvents(family.ID, 50)
	found := false
	for _, ev := range events {
		if ev.EventType == "frozen_account_attempt" && ev.Severity == models.SeverityHigh {
			found = true
		}
	}
	if !found {
		t.Error("frozen_account_attempt event not recorded")
	}

	if got := balanceOf(t, e, outsider.ID); got != 40 {
		t.Errorf("outsider balance = %d, want 40", got)
	}
}

func TestTransferRateLimited(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	createUser(t, e, "r_alice", "r_alice@example.com")
	createUser(t, e, "r_bob", "r_bob@example.com")
	fundAccount(t, e, "r_alice", 1000)

	e.limiter = security.NewRateLimiter(2, time.Minute)

	if _, err := e.Transfer(ctx, "r_alice", "r_bob", 10, "", ""); err != nil {
		t.Fatalf("first transfer failed: %v", err)
	}
	if _, err := e.Transfer(ctx, "r_alice", "r_bob", 10, "", ""); err != nil {
		t.Fatalf("second transfer failed: %v", err)
	}
	_, err := e.Transfer(ctx, "r_alice", "r_bob", 10, "", "")
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("error = %v, want RateLimitError", err)
	}
	if rateErr.RetryAfter != time.Minute {
		t.Errorf("retry after = %s, want 1m", rateErr.RetryAfter)
	}
}

func TestConcurrentTransfersNoDoubleSpend(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	sender := createUser(t, e, "race_sender", "race_sender@example.com")
	recipient := createUser(t, e, "race_recipient", "race_recipient@example.com")
	fundAccount(t, e, "race_sender", 100)

	// Only one 60-token transfer can fit in a 100-token balance; the
	// conditional debit serializes the rest into ErrInsufficientFunds.
	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Transfer(ctx, "race_sender", "race_recipient", 60, "race", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successful transfers = %d, want 1", successes)
	}

	senderBal := balanceOf(t, e, sender.ID)
	if senderBal != 40 {
		t.Errorf("sender balance = %d, want 40", senderBal)
	}
	if senderBal < 0 {
		t.Error("sender balance went negative")
	}
	if got := balanceOf(t, e, recipient.ID); got != 60 {
		t.Errorf("recipient balance = %d, want 60", got)
	}
}

func TestTransferFaultRollsBackBothLegs(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	alice := createUser(t, e, "f_alice", "f_alice@example.com")
	bob := createUser(t, e, "f_bob", "f_bob@example.com")
	fundAccount(t, e, "f_alice", 500)

	// Planting a row under the recipient's (transaction_id, account_id) makes
	// the receive-leg insert fail after the debit, send leg, and credit have
	// all been applied inside the transaction.
	txID := security.GenerateTransactionID()
	planted := &models.Transaction{
		TransactionID: txID,
		AccountID:     bob.ID,
		Type:          models.TxReceive,
		Amount:        1,
		Counterparty:  "planted",
		CreatedAt:     clock.Now(),
	}
	if err := e.transactions.Append(e.db, planted); err != nil {
		t.Fatalf("failed to plant transaction: %v", err)
	}

	if _, err := e.Transfer(ctx, "f_alice", "f_bob", 200, "doomed", txID); err == nil {
		t.Fatal("transfer with a failing receive leg succeeded")
	}

	if got := balanceOf(t, e, alice.ID); got != 500 {
		t.Errorf("sender balance = %d, want 500 after rollback", got)
	}
	if got := balanceOf(t, e, bob.ID); got != 0 {
		t.Errorf("recipient balance = %d, want 0 after rollback", got)
	}
	sendLeg, err := e.transactions.GetByTransactionID(e.db, txID, alice.ID)
	if err != nil {
		t.Fatalf("GetByTransactionID failed: %v", err)
	}
	if sendLeg != nil {
		t.Errorf("send leg survived the rollback: %+v", sendLeg)
	}
}
