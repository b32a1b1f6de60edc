// Package recurrence derives the next occurrence of every event series and
// creates it exactly once.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alfredjeanlab/cadence/internal/clock"
	"github.com/alfredjeanlab/cadence/internal/events"
	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/schedule"
	"github.com/alfredjeanlab/cadence/internal/store"
)

// Trigger names recorded with each pass.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// Result summarizes one generation pass.
type Result struct {
	Created         []*model.Occurrence
	SkippedExisting int
	NotDue          int
	Failed          int
	StartedAt       time.Time
	Duration        time.Duration
}

// Runner runs a generation pass. *Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, trigger string) (*Result, error)
}

// Engine runs generation passes against a store.
type Engine struct {
	store    store.Store
	clock    clock.Clock
	recorder *events.Recorder
	logger   *slog.Logger
}

// NewEngine returns an Engine. A nil recorder disables activity and event
// publishing; a nil logger uses slog.Default().
func NewEngine(s store.Store, c clock.Clock, rec *events.Recorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, clock: c, recorder: rec, logger: logger}
}

// Description returns the placeholder description of a generated occurrence.
func Description(theme string) string {
	return "Generated from theme: " + theme
}

// Run executes one pass: for every series whose latest occurrence has
// started, create the occurrence one month later unless its title already
// exists. The whole pass commits or rolls back as a unit. Rejected rows are
// counted in Result.Failed and do not abort the pass; any other failure rolls
// back and is returned as a model.ErrTransient error.
func (e *Engine) Run(ctx context.Context, trigger string) (*Result, error) {
	started := e.clock.Now()
	now := store.Normalize(started)
	res := &Result{StartedAt: started}

	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		*res = Result{StartedAt: started}

		if err := tx.LockGeneration(ctx); err != nil {
			return err
		}
		latest, err := tx.LatestPerSeries(ctx)
		if err != nil {
			return err
		}

		series := make([]string, 0, len(latest))
		for k := range latest {
			series = append(series, k)
		}
		sort.Strings(series)

		for _, key := range series {
			next, err := e.nextFor(ctx, tx, key, latest[key], now, res)
			if err != nil {
				return err
			}
			if next != nil {
				res.Created = append(res.Created, next)
			}
		}
		return nil
	})
	res.Duration = e.clock.Now().Sub(started)
	if err != nil {
		e.logger.Error("generation pass failed", "trigger", trigger, "error", err)
		if errors.Is(err, model.ErrTransient) {
			return nil, fmt.Errorf("generation pass: %w", err)
		}
		return nil, fmt.Errorf("generation pass: %w: %w", model.ErrTransient, err)
	}

	e.logger.Info("generation pass completed",
		"trigger", trigger,
		"created", len(res.Created),
		"skipped_existing", res.SkippedExisting,
		"not_due", res.NotDue,
		"failed", res.Failed,
		"duration", res.Duration,
	)
	e.publish(ctx, trigger, res)
	return res, nil
}

// nextFor handles one series. It returns the created occurrence, nil when
// nothing was created, or an error that must abort the pass.
func (e *Engine) nextFor(ctx context.Context, tx store.Store, series string, latest *model.Occurrence, now time.Time, res *Result) (*model.Occurrence, error) {
	if !now.After(store.Normalize(latest.StartDate)) {
		res.NotDue++
		return nil, nil
	}

	dates := schedule.NextDates(latest.StartDate.UTC())
	title := schedule.Title(series, dates.Start)

	existing, err := tx.GetOccurrenceByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", title, err)
	}
	if existing != nil {
		res.SkippedExisting++
		return nil, nil
	}

	next := &model.Occurrence{
		Title:                title,
		Series:               series,
		Theme:                latest.Theme,
		Description:          Description(latest.Theme),
		StartDate:            dates.Start,
		EndDate:              dates.End,
		RegistrationDeadline: dates.RegistrationDeadline,
		IsActive:             true,
		CreatedAt:            now,
	}
	if err := model.ValidateOccurrence(next); err != nil {
		res.Failed++
		e.logger.Warn("skipping invalid occurrence", "series", series, "title", title, "error", err)
		return nil, nil
	}

	if err := tx.CreateOccurrence(ctx, next); err != nil {
		if errors.Is(err, model.ErrInvariant) || errors.Is(err, model.ErrConflict) {
			res.Failed++
			e.logger.Warn("store rejected occurrence", "series", series, "title", title, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return next, nil
}

func (e *Engine) publish(ctx context.Context, trigger string, res *Result) {
	if e.recorder == nil {
		return
	}
	actor := "generator:" + trigger
	for _, o := range res.Created {
		e.recorder.Emit(ctx, events.TopicOccurrenceCreated, o.ID, actor, events.OccurrenceCreated{
			Occurrence: o,
			Source:     "generator",
		})
	}
	e.recorder.Emit(ctx, events.TopicGenerationCompleted, "", actor, events.GenerationCompleted{
		Created:         len(res.Created),
		SkippedExisting: res.SkippedExisting,
		NotDue:          res.NotDue,
		Failed:          res.Failed,
		StartedAt:       res.StartedAt,
		Duration:        res.Duration,
		Trigger:         trigger,
	})
}
