package jobs

import (
	"log/slog"
	"time"

	"podstream/internal/config"
	"podstream/internal/database"
	"podstream/internal/users"
)

// CleanupJob expires stale password reset tokens.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run clears reset tokens past their validity window so a leaked token
// cannot linger in the database.
func (j *CleanupJob) Run() error {
	db := j.dbManager.GetConnection()
	ttl := time.Duration(j.cfg.GetResetTokenTTL()) * time.Second

	purged, err := users.PurgeExpiredResetTokens(db, j.logger, ttl)
	if err != nil {
		j.logger.Error("Failed to purge expired reset tokens", slog.Any("error", err))
		return err
	}

	if purged > 0 {
		j.logger.Info("Purged expired reset tokens", slog.Int64("count", purged))
	}

	return nil
}
