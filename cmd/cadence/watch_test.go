package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/cadence/internal/events"
	"github.com/alfredjeanlab/cadence/internal/model"
)

func views(ids ...string) []*model.OccurrenceView {
	out := make([]*model.OccurrenceView, len(ids))
	for i, id := range ids {
		out[i] = &model.OccurrenceView{Occurrence: model.Occurrence{ID: id}}
	}
	return out
}

func TestUnseen_InitialPoll(t *testing.T) {
	seen := make(map[string]bool)
	got := unseen(seen, views("a", "b"))
	if len(got) != 2 {
		t.Fatalf("got %d new, want 2", len(got))
	}
	if len(seen) != 2 {
		t.Fatalf("got %d seen, want 2", len(seen))
	}
}

func TestUnseen_NoChanges(t *testing.T) {
	seen := map[string]bool{"a": true, "b": true}
	if got := unseen(seen, views("a", "b")); len(got) != 0 {
		t.Fatalf("got %d new, want 0", len(got))
	}
}

func TestUnseen_NewOccurrence(t *testing.T) {
	seen := map[string]bool{"a": true}
	got := unseen(seen, views("a", "b"))
	if len(got) != 1 {
		t.Fatalf("got %d new, want 1", len(got))
	}
	if got[0].ID != "b" {
		t.Errorf("got %q, want %q", got[0].ID, "b")
	}
	if !seen["b"] {
		t.Error("b not marked seen")
	}
}

func TestPrintMessage(t *testing.T) {
	buf := captureStdout(t)
	printMessage(events.Message{
		Topic:       events.TopicOccurrenceCreated,
		Data:        []byte(`{"source":"generator"}`),
		PublishedAt: time.Date(2025, 3, 10, 9, 30, 15, 0, time.UTC),
	})
	out := buf.String()
	if !strings.HasPrefix(out, "09:30:15") {
		t.Errorf("expected publish time first, got %q", out)
	}
	if !strings.Contains(out, events.TopicOccurrenceCreated) || !strings.Contains(out, `"source":"generator"`) {
		t.Errorf("unexpected output: %q", out)
	}
}

type fakeSubscriber struct {
	topic string
	msgs  []events.Message
}

func (f *fakeSubscriber) Subscribe(topic string) (<-chan events.Message, func(), error) {
	f.topic = topic
	ch := make(chan events.Message, len(f.msgs))
	for _, m := range f.msgs {
		ch <- m
	}
	close(ch)
	return ch, func() {}, nil
}

func (f *fakeSubscriber) Close() error { return nil }

func TestStreamMessages(t *testing.T) {
	buf := captureStdout(t)
	sub := &fakeSubscriber{msgs: []events.Message{
		{Topic: events.TopicRegistrationCreated, Data: []byte(`{"n":1}`)},
		{Topic: events.TopicRegistrationCancelled, Data: []byte(`{"n":2}`)},
	}}

	if err := streamMessages(context.Background(), sub, events.TopicAll); err != nil {
		t.Fatal(err)
	}
	if sub.topic != events.TopicAll {
		t.Errorf("subscribed to %q, want %q", sub.topic, events.TopicAll)
	}
	out := buf.String()
	if strings.Count(out, "\n") != 2 || !strings.Contains(out, events.TopicRegistrationCancelled) {
		t.Errorf("unexpected output:\n%s", out)
	}
}
