package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/config"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/ledger"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/logging"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/notify"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/security"
)

// Transfer rate limiting: per-account token bucket
const (
	transferRateLimit  = 30
	transferRateWindow = time.Minute
)

// sweepInterval is how often the daemon expires stale requests,
// invitations, governance votes, and scheduled account cleanups.
const sweepInterval = 15 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connection established", "type", cfg.DatabaseType)

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer, err := notify.NewSESMailer(ctx, cfg.AWSRegion, cfg.FromEmail, cfg.FromName, logger)
	if err != nil {
		logger.Error("failed to initialize mailer", "error", err)
		os.Exit(1)
	}

	limiter := security.NewRateLimiter(transferRateLimit, transferRateWindow)
	defer limiter.Stop()
	engine := ledger.New(db, cfg, mailer, logger, ledger.WithLimiter(limiter))

	logger.Info("ledger daemon started", "sweep_interval", sweepInterval)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			runSweeps(ctx, engine, logger)
		}
	}
}

func runSweeps(ctx context.Context, engine *ledger.Engine, logger *slog.Logger) {
	if _, err := engine.SweepExpiredRequests(ctx); err != nil {
		logger.Error("token request sweep failed", "error", err)
	}
	if _, err := engine.SweepExpiredInvitations(ctx); err != nil {
		logger.Error("invitation sweep failed", "error", err)
	}
	if _, err := engine.SweepGovernance(ctx); err != nil {
		logger.Error("governance sweep failed", "error", err)
	}
	if _, err := engine.RunScheduledCleanups(ctx); err != nil {
		logger.Error("scheduled cleanup sweep failed", "error", err)
	}
}
