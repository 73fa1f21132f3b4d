package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const reminderScanJob = "reminder_scan"

// Scanner is a job the scheduler runs on a fixed interval.
type Scanner interface {
	Scan(ctx context.Context) (int, error)
}

// SchedulerService runs the reminder scan on a fixed interval. Runs never
// overlap: a tick that arrives while a scan is running is skipped.
type SchedulerService struct {
	scheduler  gocron.Scheduler
	scanner    Scanner
	interval   time.Duration
	timeout    time.Duration
	job        gocron.Job
	appContext context.Context
	logger     *zap.Logger
}

func NewSchedulerService(ctx context.Context, scanner Scanner, interval time.Duration, logger *zap.Logger, opts ...gocron.SchedulerOption) (*SchedulerService, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scan interval must be positive, got %s", interval)
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &SchedulerService{
		scheduler:  s,
		scanner:    scanner,
		interval:   interval,
		timeout:    interval,
		appContext: ctx,
		logger:     logger,
	}, nil
}

// Start registers the scan job and starts the scheduler. The first scan
// runs immediately.
func (s *SchedulerService) Start() error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.runScan),
		gocron.WithName(reminderScanJob),
		gocron.WithTags("reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reminder scan: %w", err)
	}
	s.job = job
	s.scheduler.Start()
	s.logger.Info("SchedulerService started",
		zap.String("job", reminderScanJob),
		zap.String("job_id", job.ID().String()),
		zap.Duration("interval", s.interval),
	)
	return nil
}

// RunNow triggers an out-of-band scan through the scheduler.
func (s *SchedulerService) RunNow() error {
	if s.job == nil {
		return fmt.Errorf("scheduler not started")
	}
	return s.job.RunNow()
}

func (s *SchedulerService) Stop() {
	s.logger.Info("SchedulerService stopping")
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error("Error shutting down gocron scheduler", zap.Error(err))
		return
	}
	s.logger.Info("Gocron scheduler shut down")
}

func (s *SchedulerService) runScan() {
	ctx, cancel := context.WithTimeout(s.appContext, s.timeout)
	defer cancel()
	n, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error("Scheduled reminder scan failed", zap.Error(err))
		return
	}
	s.logger.Debug("Scheduled reminder scan done", zap.Int("published", n))
}
