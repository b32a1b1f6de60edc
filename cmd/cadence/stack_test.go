package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alfredjeanlab/cadence/internal/config"
)

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected JSON warn line, got %s", out)
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "loud"
	if _, err := newLogger(cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOpenStack_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Memory = true

	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}
	st, err := openStack(cfg, logger, true)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if st.hub == nil {
		t.Error("expected SSE hub")
	}
	res, err := st.engine.Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 0 {
		t.Errorf("empty store created %d occurrences", len(res.Created))
	}
}
