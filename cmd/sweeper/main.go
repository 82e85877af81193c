// Command sweeper runs one maintenance pass over the ledger: expiring
// stale token requests, invitations, and governance votes, and purging
// virtual accounts whose scheduled cleanup is due. Intended for cron.
package main

import (
	"context"
	"os"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/config"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/ledger"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	engine := ledger.New(db, cfg, nil, logger)
	ctx := context.Background()

	failed := false
	requests, err := engine.SweepExpiredRequests(ctx)
	if err != nil {
		logger.Error("token request sweep failed", "error", err)
		failed = true
	}
	invitations, err := engine.SweepExpiredInvitations(ctx)
	if err != nil {
		logger.Error("invitation sweep failed", "error", err)
		failed = true
	}
	governance, err := engine.SweepGovernance(ctx)
	if err != nil {
		logger.Error("governance sweep failed", "error", err)
		failed = true
	}
	cleanups, err := engine.RunScheduledCleanups(ctx)
	if err != nil {
		logger.Error("scheduled cleanup sweep failed", "error", err)
		failed = true
	}

	logger.Info("sweep complete",
		"requests", requests,
		"invitations", invitations,
		"governance", governance,
		"cleanups", cleanups,
	)
	if failed {
		os.Exit(1)
	}
}
