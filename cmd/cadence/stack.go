package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alfredjeanlab/cadence/internal/clock"
	"github.com/alfredjeanlab/cadence/internal/config"
	"github.com/alfredjeanlab/cadence/internal/events"
	"github.com/alfredjeanlab/cadence/internal/recurrence"
	"github.com/alfredjeanlab/cadence/internal/server"
	"github.com/alfredjeanlab/cadence/internal/store"
	"github.com/alfredjeanlab/cadence/internal/store/memory"
	"github.com/alfredjeanlab/cadence/internal/store/postgres"
)

// newLogger builds the process logger from the log settings.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// stack holds the components shared by the server-side commands.
type stack struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     store.Store
	clock     clock.Clock
	hub       *server.Hub
	publisher events.Publisher
	recorder  *events.Recorder
	engine    *recurrence.Engine
}

// loadConfig loads and validates configuration after applying overrides.
func loadConfig(override func(*config.Config)) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStack connects the store and publishers. withHub adds an SSE hub to
// the publishers.
func openStack(cfg *config.Config, logger *slog.Logger, withHub bool) (*stack, error) {
	st := &stack{cfg: cfg, logger: logger, clock: clock.NewSystem()}

	if cfg.Memory {
		st.store = memory.New()
		logger.Warn("using in-memory store; data is lost on exit")
	} else {
		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		st.store = pg
	}

	var pubs events.MultiPublisher
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			st.store.Close()
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		pubs = append(pubs, pub)
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		logger.Info("events disabled (CADENCE_NATS_URL not set)")
	}
	if withHub {
		st.hub = server.NewHub()
		pubs = append(pubs, st.hub)
	}
	st.publisher = pubs

	st.recorder = events.NewRecorder(st.store, st.publisher, logger)
	st.engine = recurrence.NewEngine(st.store, st.clock, st.recorder, logger)
	return st, nil
}

func (s *stack) Close() {
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("error closing publisher", "err", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing store", "err", err)
	}
}
