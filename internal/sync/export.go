package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// Source is the read side of the store needed for an export.
type Source interface {
	ListOccurrences(ctx context.Context, filter model.OccurrenceFilter) ([]*model.Occurrence, error)
	ListRegistrations(ctx context.Context, eventID string, status model.RegistrationStatus) ([]*model.Registration, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version           string    `json:"version"`
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	OccurrenceCount   int       `json:"occurrence_count"`
	RegistrationCount int       `json:"registration_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// snapshot is an occurrence with its registrations embedded.
type snapshot struct {
	*model.Occurrence
	Registrations []*model.Registration `json:"registrations"`
}

// ExportJSONL writes every occurrence, in start-date order, with its
// registrations embedded.
func ExportJSONL(ctx context.Context, s Source, w io.Writer) error {
	occurrences, err := s.ListOccurrences(ctx, model.OccurrenceFilter{})
	if err != nil {
		return fmt.Errorf("list occurrences: %w", err)
	}

	snaps := make([]snapshot, 0, len(occurrences))
	registrations := 0
	for _, o := range occurrences {
		regs, err := s.ListRegistrations(ctx, o.ID, "")
		if err != nil {
			return fmt.Errorf("list registrations for %s: %w", o.ID, err)
		}
		if regs == nil {
			regs = []*model.Registration{}
		}
		registrations += len(regs)
		snaps = append(snaps, snapshot{Occurrence: o, Registrations: regs})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:           "1",
		Type:              "header",
		Timestamp:         time.Now().UTC(),
		OccurrenceCount:   len(snaps),
		RegistrationCount: registrations,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, snap := range snaps {
		if err := enc.Encode(record{Type: "occurrence", Data: snap}); err != nil {
			return fmt.Errorf("encode occurrence %s: %w", snap.ID, err)
		}
	}
	return nil
}
