package jobs

import (
	"context"
	"fmt"
	"time"

	"musicstore-backend/internal/config"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/metrics"
	"musicstore-backend/internal/service"
)

const (
	JobMarkOverdueRentals   = "mark-overdue-rentals"
	JobSendOverdueReminders = "send-overdue-reminders"
)

// jobTimeout bounds a single scheduled run
const jobTimeout = 10 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Rental service.RentalService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and records the outcome
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.JobRuns.WithLabelValues(jobName, result).Inc()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logger.Info("Starting job", "job", jobName)
	if err = jobFunc(ctx); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err, "duration", time.Since(start))
		return err
	}
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start))
	return nil
}

// Run executes one job by name (for manual execution)
func (jr *JobRunner) Run(jobName string) error {
	switch jobName {
	case JobMarkOverdueRentals:
		return jr.markOverdueRentals()
	case JobSendOverdueReminders:
		return jr.sendOverdueReminders()
	default:
		return fmt.Errorf("unknown job: %s", jobName)
	}
}

// RunAllNightlyJobs runs all nightly jobs (for manual execution)
func (jr *JobRunner) RunAllNightlyJobs() {
	jr.MarkOverdueRentals()
	jr.SendOverdueReminders()
}
