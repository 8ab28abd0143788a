package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/snipnote/scribed/internal/logger"
	"github.com/snipnote/scribed/internal/models"
)

// DefaultJobConcurrency bounds how many jobs one scheduling pass runs at a
// time.
const DefaultJobConcurrency = 3

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler polls the store for eligible jobs and hands them to the
// processor in bounded batches.
type Scheduler struct {
	store       JobStore
	proc        *Processor
	concurrency int
	log         *logger.Logger
}

// NewScheduler builds a Scheduler. concurrency <= 0 uses the default.
func NewScheduler(store JobStore, proc *Processor, concurrency int, log *logger.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultJobConcurrency
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Scheduler{
		store:       store,
		proc:        proc,
		concurrency: concurrency,
		log:         log.WithComponent("scheduler"),
	}
}

// RunOnce performs one scheduling pass: fetch every eligible job and process
// them in batches of at most s.concurrency, each batch finishing before the
// next starts. Per-job failures are already persisted by the processor and do
// not stop the pass.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	jobs, err := s.store.FetchEligible()
	if err != nil {
		return fmt.Errorf("worker: fetch eligible jobs: %w", err)
	}
	if len(jobs) == 0 {
		s.log.Debug("no eligible jobs")
		return nil
	}
	s.log.WithField("count", len(jobs)).Info("scheduling jobs")

	for start := 0; start < len(jobs); start += s.concurrency {
		end := start + s.concurrency
		if end > len(jobs) {
			end = len(jobs)
		}

		var wg sync.WaitGroup
		for _, job := range jobs[start:end] {
			wg.Add(1)
			go func(j models.Job) {
				defer wg.Done()
				if err := s.proc.Process(ctx, j); err != nil {
					s.log.WithJob(j.ID).WithError(err).Error("job processing failed")
				}
			}(job)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Run performs scheduling passes every interval until the context is
// canceled. The first pass runs immediately.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	s.log.WithField("interval", interval.String()).Info("worker started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("scheduling pass failed")
		}
		select {
		case <-ctx.Done():
			s.log.Info("worker stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCron performs scheduling passes on a 5-field cron schedule until the
// context is canceled.
func (s *Scheduler) RunCron(ctx context.Context, expr string) error {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("worker: parse cron expression %q: %w", expr, err)
	}
	s.log.WithField("schedule", expr).Info("worker started")

	timer := time.NewTimer(time.Until(sched.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("worker stopping")
			return ctx.Err()
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Error("scheduling pass failed")
			}
			timer.Reset(time.Until(sched.Next(time.Now())))
		}
	}
}
