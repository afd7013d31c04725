package jobs

import (
	"sync"
	"time"

	"kitchenhub-backend/internal/config"
	"kitchenhub-backend/internal/logger"
	"kitchenhub-backend/internal/repository"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	overstayRepo repository.OverstayRepository
	bookingRepo  repository.BookingRepository
	config       *config.Config

	// now is swappable so scans can be driven to any instant in tests.
	now func() time.Time

	// scanMu makes the scan single-flight: a tick that fires while the
	// previous scan is still running is skipped, not queued.
	scanMu sync.Mutex
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(overstayRepo repository.OverstayRepository, bookingRepo repository.BookingRepository, cfg *config.Config) *JobRunner {
	return &JobRunner{
		overstayRepo: overstayRepo,
		bookingRepo:  bookingRepo,
		config:       cfg,
		now:          time.Now,
	}
}

// Config exposes the runner's configuration to the scheduler.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllJobs runs every scheduled job once (for manual execution)
func (jr *JobRunner) RunAllJobs() {
	jr.ScanOverstays()
}
