package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"subsidyscan/internal/ports"
)

// CronScheduler triggers jobs on a cron expression. The skip-if-running
// wrapper keeps overlapping invocations out, matching the pipeline's
// one-run-at-a-time assumption.
type CronScheduler struct {
	spec string
	loc  *time.Location

	mu      sync.Mutex
	runner  *cron.Cron
	running bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from a standard 5-field cron
// expression. A nil location means UTC.
func NewCronScheduler(spec string, loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{spec: spec, loc: loc}
}

// Start schedules the job. Triggers that arrive while a previous invocation
// is still running are dropped, not queued.
func (c *CronScheduler) Start(_ context.Context, job func(time.Time)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if job == nil || c.runner != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.loc))
	_, err := runner.AddFunc(c.spec, func() {
		if !c.tryAcquire() {
			return
		}
		defer c.release()
		job(time.Now().In(c.loc))
	})
	if err != nil {
		return fmt.Errorf("cron spec %q: %w", c.spec, err)
	}

	runner.Start()
	c.runner = runner
	return nil
}

// Stop halts scheduling and waits for an in-flight job to finish.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.runner
	c.runner = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronScheduler) tryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	return true
}

func (c *CronScheduler) release() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}
