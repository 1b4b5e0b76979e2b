package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"podstream/internal/config"
	"podstream/internal/database"
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	// Job instances
	cleanupJob    *CleanupJob
	checkpointJob *CheckpointJob
	geoLiteJob    *GeoLiteUpdaterJob

	// Tickers for each job type
	cleanupTicker    *time.Ticker
	checkpointTicker *time.Ticker
	geoLiteTicker    *time.Ticker
}

func NewScheduler(dbManager *database.DBManager, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	s := &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		enabled:   true,
		isRunning: false,
		cfg:       cfg,
	}

	// Initialize job instances
	s.cleanupJob = NewCleanupJob(dbManager, logger, cfg)
	s.checkpointJob = NewCheckpointJob(dbManager, logger)
	s.geoLiteJob = NewGeoLiteUpdaterJob(logger, cfg)

	return s, nil
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")

	s.isRunning = true

	s.startCleanupJob()
	s.startCheckpointJob()
	s.startGeoLiteJob()

	s.logger.Info("Background jobs started",
		slog.Bool("enabled", s.enabled),
		slog.Bool("isRunning", s.isRunning))

	return nil
}

func (s *Scheduler) startCleanupJob() {
	interval := time.Duration(s.cfg.JobIntervalSeconds) * time.Second
	s.logger.Info("Starting cleanup job", slog.Duration("interval", interval))
	s.cleanupTicker = time.NewTicker(interval)

	go func() {
		// Run initial execution
		s.logger.Info("Running initial cleanup...")
		s.executeJobSafely("cleanup", s.cleanupJob.Run)

		for {
			select {
			case <-s.cleanupTicker.C:
				s.executeJobSafely("cleanup", s.cleanupJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Cleanup job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startCheckpointJob() {
	interval := 24 * time.Hour
	s.logger.Info("Starting checkpoint job", slog.Duration("interval", interval))
	s.checkpointTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.checkpointTicker.C:
				s.executeJobSafely("checkpoint", s.checkpointJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Checkpoint job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startGeoLiteJob() {
	// Checked daily; the job itself skips work until a week has passed
	// since the last download.
	interval := 24 * time.Hour
	s.logger.Info("Starting GeoLite refresh job", slog.Duration("interval", interval))
	s.geoLiteTicker = time.NewTicker(interval)

	go func() {
		s.executeJobSafely("geolite", s.geoLiteJob.Run)

		for {
			select {
			case <-s.geoLiteTicker.C:
				s.executeJobSafely("geolite", s.geoLiteJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("GeoLite refresh job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	if s.checkpointTicker != nil {
		s.checkpointTicker.Stop()
	}
	if s.geoLiteTicker != nil {
		s.geoLiteTicker.Stop()
	}

	s.cancel()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RunCleanup allows manual triggering of the cleanup job.
func (s *Scheduler) RunCleanup() error {
	if !s.enabled {
		return nil
	}
	return s.cleanupJob.Run()
}
