package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/config"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/logging"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// testClock is a controllable engine clock
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		AutoApprovalThreshold: 100,
		MaxFamiliesPerUser:    5,
		MaxFamilyMembers:      20,
		InvitationTTL:         7 * 24 * time.Hour,
		RequestTTL:            7 * 24 * time.Hour,
		UnfreezeTTL:           72 * time.Hour,
		RecoveryTTL:           72 * time.Hour,
		CleanupRetention:      90 * 24 * time.Hour,
		TxTimeout:             10 * time.Second,
	}
}

// newTestEngine builds an engine over a fresh SQLite database with the full
// schema applied and a deterministic clock installed.
func newTestEngine(t *testing.T) (*Engine, *testClock) {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "ledger_test.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	clock := newTestClock()
	e := New(db, testConfig(), nil, logging.Setup("error"), WithClock(clock.Now))
	return e, clock
}

func createUser(t *testing.T, e *Engine, username, email string) *models.User {
	t.Helper()
	user, err := e.users.Create(e.db, username, email, false)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func createFamily(t *testing.T, e *Engine, ownerID int64, name string) *models.Family {
	t.Helper()
	family, err := e.CreateFamily(context.Background(), ownerID, name)
	if err != nil {
		t.Fatalf("failed to create family %q: %v", name, err)
	}
	return family
}

// fundAccount deposits tokens into an account by username
func fundAccount(t *testing.T, e *Engine, username string, amount int64) {
	t.Helper()
	if _, err := e.Deposit(context.Background(), username, amount, "test funding"); err != nil {
		t.Fatalf("failed to fund %s: %v", username, err)
	}
}

func balanceOf(t *testing.T, e *Engine, userID int64) int64 {
	t.Helper()
	user, err := e.users.GetByID(userID)
	if err != nil {
		t.Fatalf("failed to look up user %d: %v", userID, err)
	}
	if user == nil {
		t.Fatalf("user %d not found", userID)
	}
	return user.Balance
}

// addMember joins a user to a family through the invitation flow
func addMember(t *testing.T, e *Engine, familyID, adminID int64, user *models.User, relType string) {
	t.Helper()
	ctx := context.Background()
	inv, err := e.InviteMember(ctx, familyID, adminID, user.Email, relType)
	if err != nil {
		t.Fatalf("failed to invite %s: %v", user.Username, err)
	}
	if _, err := e.AcceptInvitation(ctx, inv.Token, user.ID); err != nil {
		t.Fatalf("failed to accept invitation for %s: %v", user.Username, err)
	}
}
