package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work, typically a full engine run.
type Job func(ctx context.Context)

// Scheduler fires jobs on cron specs (with a seconds field). A job still
// running when its next tick arrives is skipped rather than overlapped.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context
	jobs map[string]Job
}

func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		Ctx:  ctx,
		jobs: make(map[string]Job),
	}
}

// Register adds job under name to run on spec.
func (s *Scheduler) Register(name, spec string, job Job) error {
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("register %s: already registered", name)
	}
	if _, err := s.Cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	s.jobs[name] = job
	slog.Info("job registered", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started")
}

// Stop stops firing new jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunNow executes the named job immediately on the calling goroutine.
func (s *Scheduler) RunNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("run %s: unknown job", name)
	}
	s.run(name, job)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	if err := s.Ctx.Err(); err != nil {
		slog.Info("skipping job, shutting down", "job", name)
		return
	}
	slog.Info("running job", "job", name)
	job(s.Ctx)
}
