package jobs

import (
	"log/slog"

	"podstream/internal/database"
)

// CheckpointJob folds the SQLite WAL back into the main database file so
// the WAL does not grow without bound under sustained event ingestion.
type CheckpointJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
}

func NewCheckpointJob(dbManager *database.DBManager, logger *slog.Logger) *CheckpointJob {
	return &CheckpointJob{
		dbManager: dbManager,
		logger:    logger,
	}
}

func (j *CheckpointJob) Run() error {
	if err := j.dbManager.CheckpointWAL("FULL"); err != nil {
		j.logger.Error("Failed to checkpoint WAL", slog.Any("error", err))
		return err
	}

	j.logger.Debug("WAL checkpoint completed")
	return nil
}
