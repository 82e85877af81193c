// Package ledger implements the family shared-wallet ledger and
// permission-gated transfer engine: family creation with a virtual SBD token
// account, per-member spending permissions, freeze controls, token-request
// workflows, admin governance, and the transactional guarantees that keep
// multi-row mutations atomic and auditable.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/config"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/notify"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/repository"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/security"
)

// Engine is the family ledger and permission engine. All collaborators are
// injected at construction; no package-level state.
type Engine struct {
	db       *database.DB
	cfg      *config.Config
	log      *slog.Logger
	notifier notify.Notifier
	limiter  security.Limiter
	now      func() time.Time

	users         *repository.UserRepository
	families      *repository.FamilyRepository
	transactions  *repository.TransactionRepository
	requests      *repository.TokenRequestRepository
	invitations   *repository.InvitationRepository
	relationships *repository.RelationshipRepository
	unfreezes     *repository.UnfreezeRepository
	recoveries    *repository.RecoveryRepository
	notifications *repository.NotificationRepository
	audit         *AuditLog
}

// Option customizes an Engine at construction
type Option func(*Engine)

// WithClock overrides the engine clock. Tests use this for deterministic
// timestamps and expiry windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.audit.now = now
	}
}

// WithLimiter installs a caller-supplied rate-limit policy for transfer
// operations. Without one, no rate limiting is applied.
func WithLimiter(l security.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// New constructs the engine over an initialized database
func New(db *database.DB, cfg *config.Config, notifier notify.Notifier, log *slog.Logger, opts ...Option) *Engine {
	if notifier == nil {
		notifier = notify.Noop{}
	}

	families := repository.NewFamilyRepository(db)
	e := &Engine{
		db:            db,
		cfg:           cfg,
		log:           log,
		notifier:      notifier,
		now:           time.Now,
		users:         repository.NewUserRepository(db),
		families:      families,
		transactions:  repository.NewTransactionRepository(db),
		requests:      repository.NewTokenRequestRepository(db),
		invitations:   repository.NewInvitationRepository(db),
		relationships: repository.NewRelationshipRepository(db),
		unfreezes:     repository.NewUnfreezeRepository(db),
		recoveries:    repository.NewRecoveryRepository(db),
		notifications: repository.NewNotificationRepository(db),
		audit: &AuditLog{
			repo:     repository.NewAuditRepository(db),
			families: families,
			log:      log,
			now:      time.Now,
		},
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// opContext bounds a mutating operation with the configured transaction
// timeout.
func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.TxTimeout)
}

// inTx runs fn inside a transaction and normalizes store-level failures to
// TransactionError. Typed ledger errors pass through untouched so callers
// can branch on them.
func (e *Engine) inTx(ctx context.Context, op string, fn func(tx *database.Tx) error) error {
	err := e.db.WithTx(ctx, fn)
	if err == nil {
		return nil
	}

	var rbErr *database.RollbackFailureError
	if errors.As(err, &rbErr) {
		e.log.Error("transaction rollback failed", "op", op, "cause", rbErr.Cause, "rollback_error", rbErr.RollbackErr)
		return &TransactionError{Op: op, RolledBack: false, Err: rbErr.Cause}
	}

	if isLedgerError(err) {
		return err
	}
	return &TransactionError{Op: op, RolledBack: true, Err: err}
}

// isLedgerError reports whether err is one of the engine's expected typed
// results rather than a store failure.
func isLedgerError(err error) bool {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrFamilyNotFound),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrRecipientNotFound),
		errors.Is(err, ErrInvitationNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrNotFamilyMember),
		errors.Is(err, ErrInsufficientPermissions),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrMultipleAdminsRequired),
		errors.Is(err, ErrAlreadyVoted):
		return true
	}
	var (
		validationErr *ValidationError
		limitErr      *LimitExceededError
		frozenErr     *AccountFrozenError
		rateErr       *RateLimitError
	)
	return errors.As(err, &validationErr) ||
		errors.As(err, &limitErr) ||
		errors.As(err, &frozenErr) ||
		errors.As(err, &rateErr)
}

// notifyMembers persists a notification row per recipient and hands the
// message to the notifier. Failures are logged and swallowed: notification
// delivery must never fail or roll back the ledger operation that caused it.
func (e *Engine) notifyMembers(ctx context.Context, familyID int64, recipientIDs []int64, msgType, title, body, data string) {
	var emails []string
	now := e.now()
	for _, userID := range recipientIDs {
		n := &models.Notification{
			FamilyID:  familyID,
			UserID:    userID,
			Type:      msgType,
			Title:     title,
			Message:   body,
			Data:      data,
			CreatedAt: now,
		}
		if err := e.notifications.Create(e.db, n); err != nil {
			e.log.Warn("failed to persist notification", "family_id", familyID, "user_id", userID, "error", err)
		}
		user, err := e.users.GetByID(userID)
		if err != nil || user == nil || user.Email == "" {
			continue
		}
		emails = append(emails, user.Email)
	}

	err := e.notifier.Notify(ctx, notify.Message{
		Type:   msgType,
		Title:  title,
		Body:   body,
		Data:   data,
		Emails: emails,
	})
	if err != nil {
		e.log.Warn("notification delivery failed", "family_id", familyID, "type", msgType, "error", err)
	}
}

// GetFamily returns a family by ID
func (e *Engine) GetFamily(familyID int64) (*models.Family, error) {
	family, err := e.families.GetByID(familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}
	return family, nil
}

// ListTransactions returns a family account's transaction log, newest first
func (e *Engine) ListTransactions(familyID int64, limit int) ([]models.Transaction, error) {
	family, err := e.GetFamily(familyID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return e.transactions.ListByAccount(family.AccountID, limit)
}

// ListSecurityEvents returns a family's audit trail, newest first
func (e *Engine) ListSecurityEvents(familyID int64, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.audit.repo.ListEvents(familyID, limit)
}

// ListMembers returns a family's memberships, longest-tenured first
func (e *Engine) ListMembers(familyID int64) ([]models.Membership, error) {
	return e.families.ListMembers(familyID)
}
