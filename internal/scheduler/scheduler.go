package scheduler

import (
	"context"
	"fmt"
	"time"

	"bloodbank-backend/internal/alerts"
	"bloodbank-backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper and Checker are the jobs the scheduler drives.
type Sweeper interface {
	Sweep(ctx context.Context) (*alerts.SweepResult, error)
}

type Checker interface {
	Check(ctx context.Context) (int, error)
	CheckCritical(ctx context.Context) (int, error)
}

// Scheduler manages the expiry jobs.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	checker Checker
	cfg     config.AlertsConfig
	logger  *zap.Logger
}

// NewScheduler builds a scheduler running in the configured timezone.
func NewScheduler(cfg config.AlertsConfig, sweeper Sweeper, checker Checker, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sweeper: sweeper,
		checker: checker,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Register adds every job. It fails on the first invalid cron expression.
func (s *Scheduler) Register() error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"expiry_sweep", s.cfg.ExpirySweepCron, s.runSweep},
		{"rare_blood_check", s.cfg.RareCheckCron, s.runRareCheck},
		{"critical_blood_check", s.cfg.CriticalCheckCron, s.runCriticalCheck},
	}
	for _, j := range jobs {
		if j.spec == "" {
			s.logger.Info("job disabled", zap.String("job", j.name))
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
		s.logger.Info("job scheduled", zap.String("job", j.name), zap.String("spec", j.spec))
	}
	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("timezone", s.cfg.Timezone))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	timeout := s.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (s *Scheduler) runSweep() {
	ctx, cancel := s.jobContext()
	defer cancel()

	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) runRareCheck() {
	ctx, cancel := s.jobContext()
	defer cancel()

	if _, err := s.checker.Check(ctx); err != nil {
		s.logger.Error("rare blood check failed", zap.Error(err))
	}
}

func (s *Scheduler) runCriticalCheck() {
	ctx, cancel := s.jobContext()
	defer cancel()

	if _, err := s.checker.CheckCritical(ctx); err != nil {
		s.logger.Error("critical blood check failed", zap.Error(err))
	}
}
