package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig controls when the Scheduler runs passes.
type SchedulerConfig struct {
	// Spec is a cron expression or descriptor ("@daily", "0 3 * * *", "@every 1h").
	Spec string
	// Location is the timezone the spec is evaluated in. Nil means UTC.
	Location *time.Location
	// PassTimeout bounds a single pass. Zero means no timeout.
	PassTimeout time.Duration
	// RunOnStart runs one pass as soon as the scheduler starts.
	RunOnStart bool
}

// Scheduler triggers generation passes on a cron schedule. A tick that fires
// while the previous pass is still running is skipped.
type Scheduler struct {
	runner  Runner
	cfg     SchedulerConfig
	logger  *slog.Logger
	cron    *cron.Cron
	job     cron.Job
	entryID cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler validates cfg.Spec and returns a stopped Scheduler.
func NewScheduler(r Runner, cfg SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		runner: r,
		cfg:    cfg,
		logger: logger,
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cl)),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.runOnce))

	id, err := s.cron.AddJob(cfg.Spec, s.job)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins scheduling passes.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("generation scheduler started", "schedule", s.cfg.Spec, "next", s.Next())
	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}
}

// Stop cancels any running pass and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// Next reports when the next scheduled pass fires, or the zero time if the
// scheduler has not started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) runOnce() {
	ctx := s.ctx
	if s.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PassTimeout)
		defer cancel()
	}
	if _, err := s.runner.Run(ctx, TriggerSchedule); err != nil {
		s.logger.Error("scheduled generation pass failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
