package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/pipeline"
)

// Runner performs one pipeline pass
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*models.RunReport, error)
}

// Service handles scheduling of pipeline runs
type Service struct {
	schedule string
	timeout  time.Duration
	sources  []string
	runner   Runner
	cron     *cron.Cron
}

// NewService creates a new scheduler service. schedule is a cron
// expression with a leading seconds field.
func NewService(schedule string, timeout time.Duration, sourceNames []string, runner Runner) *Service {
	return &Service{
		schedule: schedule,
		timeout:  timeout,
		sources:  sourceNames,
		runner:   runner,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled runs
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runOnce); err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.schedule)
	return nil
}

func (s *Service) runOnce() {
	logrus.Info("Starting scheduled pipeline run")

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.runner.Run(ctx, pipeline.Request{Sources: s.sources}); err != nil {
		logrus.Errorf("Scheduled pipeline run failed: %v", err)
	}
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
