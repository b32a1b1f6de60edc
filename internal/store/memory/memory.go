// Package memory implements store.Store in process memory. It enforces the
// same invariants and uniqueness rules as the Postgres store and is used by
// tests and the server's --memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/cadence/internal/idgen"
	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/store"
)

type state struct {
	occurrences   map[string]*model.Occurrence
	titles        map[string]string
	registrations map[string]*model.Registration
	activity      []*model.Activity
	nextActivity  int64
}

func (st *state) clone() *state {
	c := &state{
		occurrences:   make(map[string]*model.Occurrence, len(st.occurrences)),
		titles:        make(map[string]string, len(st.titles)),
		registrations: make(map[string]*model.Registration, len(st.registrations)),
		activity:      append([]*model.Activity(nil), st.activity...),
		nextActivity:  st.nextActivity,
	}
	for k, v := range st.occurrences {
		o := *v
		c.occurrences[k] = &o
	}
	for k, v := range st.titles {
		c.titles[k] = v
	}
	for k, v := range st.registrations {
		r := *v
		c.registrations[k] = &r
	}
	return c
}

// Store is an in-memory store.Store.
type Store struct {
	// txMu serializes transactions, standing in for the generation lock.
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{st: &state{
		occurrences:   make(map[string]*model.Occurrence),
		titles:        make(map[string]string),
		registrations: make(map[string]*model.Registration),
	}}
}

func registrationKey(eventID string, userID int64) string {
	return fmt.Sprintf("%s/%d", eventID, userID)
}

func (s *Store) CreateOccurrence(ctx context.Context, o *model.Occurrence) error {
	if err := model.CheckInvariants(o); err != nil {
		return fmt.Errorf("insert occurrence %q: %w", o.Title, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.st.titles[o.Title]; dup {
		return fmt.Errorf("insert occurrence %q: %w", o.Title, model.ErrConflict)
	}
	if o.ID == "" {
		id, err := idgen.Occurrence()
		if err != nil {
			return err
		}
		o.ID = id
	}
	if _, dup := s.st.occurrences[o.ID]; dup {
		return fmt.Errorf("insert occurrence %q: %w", o.ID, model.ErrConflict)
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Series == "" {
		o.Series = model.BaseTitle(o.Title)
	}
	o.StartDate = o.StartDate.UTC()
	o.EndDate = o.EndDate.UTC()
	o.RegistrationDeadline = o.RegistrationDeadline.UTC()

	cp := *o
	s.st.occurrences[o.ID] = &cp
	s.st.titles[o.Title] = o.ID
	return nil
}

func (s *Store) GetOccurrence(ctx context.Context, id string) (*model.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.st.occurrences[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *Store) GetOccurrenceByTitle(ctx context.Context, title string) (*model.Occurrence, error) {
	s.mu.RLock()
	id, ok := s.st.titles[title]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetOccurrence(ctx, id)
}

func (s *Store) LatestPerSeries(ctx context.Context) (map[string]*model.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*model.Occurrence)
	for _, o := range s.sortedLocked() {
		key := o.SeriesKey()
		if cur, ok := out[key]; !ok || o.StartDate.After(cur.StartDate) {
			cp := *o
			out[key] = &cp
		}
	}
	return out, nil
}

func (s *Store) ListOccurrences(ctx context.Context, filter model.OccurrenceFilter) ([]*model.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Occurrence
	for _, o := range s.sortedLocked() {
		if filter.IsActive != nil && o.IsActive != *filter.IsActive {
			continue
		}
		if filter.Series != "" && o.SeriesKey() != filter.Series {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// sortedLocked returns occurrences ordered by start date, then creation
// time, then id. Callers hold s.mu.
func (s *Store) sortedLocked() []*model.Occurrence {
	list := make([]*model.Occurrence, 0, len(s.st.occurrences))
	for _, o := range s.st.occurrences {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return list
}

func (s *Store) CreateRegistration(ctx context.Context, r *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.occurrences[r.EventID]; !ok {
		return fmt.Errorf("insert registration: event %s: %w", r.EventID, model.ErrNotFound)
	}
	key := registrationKey(r.EventID, r.UserID)
	if _, dup := s.st.registrations[key]; dup {
		return fmt.Errorf("insert registration for user %d: %w", r.UserID, model.ErrConflict)
	}
	if r.ID == "" {
		id, err := idgen.Registration()
		if err != nil {
			return err
		}
		r.ID = id
	}
	if r.Status == "" {
		r.Status = model.RegistrationRegistered
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("insert registration: status %q: %w", r.Status, model.ErrInvariant)
	}
	if r.RegisteredAt.IsZero() {
		r.RegisteredAt = time.Now().UTC()
	}
	cp := *r
	s.st.registrations[key] = &cp
	return nil
}

func (s *Store) GetRegistration(ctx context.Context, eventID string, userID int64) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.registrations[registrationKey(eventID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *Store) DeleteRegistration(ctx context.Context, eventID string, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := registrationKey(eventID, userID)
	if _, ok := s.st.registrations[key]; !ok {
		return false, nil
	}
	delete(s.st.registrations, key)
	return true, nil
}

func (s *Store) ListRegistrations(ctx context.Context, eventID string, status model.RegistrationStatus) ([]*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Registration
	for _, r := range s.st.registrations {
		if r.EventID != eventID || (status != "" && r.Status != status) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) RecordActivity(ctx context.Context, a *model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextActivity++
	a.ID = s.st.nextActivity
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	s.st.activity = append(s.st.activity, &cp)
	return nil
}

func (s *Store) ListActivity(ctx context.Context, eventID string) ([]*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Activity
	for _, a := range s.st.activity {
		if a.EventID == eventID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// LockGeneration is a no-op; RunInTransaction already serializes transactions.
func (s *Store) LockGeneration(ctx context.Context) error {
	return nil
}

// RunInTransaction runs fn against a private copy of the store while holding
// the transaction mutex. Other callers do not see the transaction's writes
// until fn returns nil; the writes are then replayed onto the live state in
// one step. If fn or the replay fails, nothing is applied.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := &Store{st: s.st.clone()}
	s.mu.RUnlock()

	tx := &txStore{Store: work}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx.log)
}

// commit applies logged writes to a copy of the current state and swaps it
// in only if every write succeeds.
func (s *Store) commit(log []func(*Store) error) error {
	if len(log) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &Store{st: s.st.clone()}
	for _, apply := range log {
		if err := apply(staged); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	s.st = staged.st
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// txStore works on a private copy and logs each successful write for replay
// on commit. Nested transactions join the outer one.
type txStore struct {
	*Store
	log []func(*Store) error
}

func (t *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) CreateOccurrence(ctx context.Context, o *model.Occurrence) error {
	if err := t.Store.CreateOccurrence(ctx, o); err != nil {
		return err
	}
	cp := *o
	t.log = append(t.log, func(s *Store) error {
		o := cp
		return s.CreateOccurrence(ctx, &o)
	})
	return nil
}

func (t *txStore) CreateRegistration(ctx context.Context, r *model.Registration) error {
	if err := t.Store.CreateRegistration(ctx, r); err != nil {
		return err
	}
	cp := *r
	t.log = append(t.log, func(s *Store) error {
		r := cp
		return s.CreateRegistration(ctx, &r)
	})
	return nil
}

func (t *txStore) DeleteRegistration(ctx context.Context, eventID string, userID int64) (bool, error) {
	deleted, err := t.Store.DeleteRegistration(ctx, eventID, userID)
	if err != nil || !deleted {
		return deleted, err
	}
	t.log = append(t.log, func(s *Store) error {
		_, err := s.DeleteRegistration(ctx, eventID, userID)
		return err
	})
	return true, nil
}

func (t *txStore) RecordActivity(ctx context.Context, a *model.Activity) error {
	if err := t.Store.RecordActivity(ctx, a); err != nil {
		return err
	}
	cp := *a
	t.log = append(t.log, func(s *Store) error {
		a := cp
		return s.RecordActivity(ctx, &a)
	})
	return nil
}
