package usecase

import (
	"context"
	"log/slog"
	"time"

	"subsidyscan/internal/ports"
)

// Scheduler wires the cron driver to the pipeline. Overlap protection is the
// driver's responsibility; the pipeline assumes one invocation at a time.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring invocations.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		run, err := s.pipeline.RunOnce(ctx)
		if err != nil && s.logger != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
			return
		}
		if s.logger != nil && run != nil {
			s.logger.Info("scheduled run done", "status", run.Status, "cursor", run.Cursor())
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
