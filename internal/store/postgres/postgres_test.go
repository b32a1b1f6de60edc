package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var occurrenceRowColumns = []string{
	"id", "title", "series", "theme", "description",
	"start_date", "end_date", "registration_deadline", "is_active", "created_at",
}

var registrationRowColumns = []string{"id", "event_id", "user_id", "role", "status", "registered_at"}

func addOccurrenceRow(rows *sqlmock.Rows, id, title, series string, start time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, title, series, "Fintech", "",
		start, start.Add(5*24*time.Hour), start.Add(-time.Second), true, start.Add(-time.Hour),
	)
}

func sampleOccurrence(start time.Time) *model.Occurrence {
	return &model.Occurrence{
		Title:                "Demo Day - March 2025",
		Theme:                "Fintech",
		StartDate:            start,
		EndDate:              start.Add(5 * 24 * time.Hour),
		RegistrationDeadline: start.Add(-time.Second),
		IsActive:             true,
	}
}

func TestQueryCreateOccurrence(t *testing.T) {
	db, mock := newMockDB(t)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	o := sampleOccurrence(start)

	mock.ExpectExec("INSERT INTO occurrences").
		WithArgs(
			sqlmock.AnyArg(), "Demo Day - March 2025", "Demo Day", "Fintech", "",
			start, start.Add(5*24*time.Hour), start.Add(-time.Second), true, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateOccurrence(context.Background(), db, o); err != nil {
		t.Fatalf("queryCreateOccurrence: %v", err)
	}
	if !strings.HasPrefix(o.ID, "ev-") {
		t.Errorf("ID = %q, want ev- prefix", o.ID)
	}
	if o.Series != "Demo Day" {
		t.Errorf("Series = %q, want %q", o.Series, "Demo Day")
	}
	if o.CreatedAt.IsZero() {
		t.Error("CreatedAt was not assigned")
	}
}

func TestQueryCreateOccurrence_ConstraintErrors(t *testing.T) {
	for _, tc := range []struct {
		code string
		want error
	}{
		{"23514", model.ErrInvariant},
		{"23505", model.ErrConflict},
		{"23503", model.ErrNotFound},
		{"08006", model.ErrTransient},
	} {
		t.Run(tc.code, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec("INSERT INTO occurrences").
				WillReturnError(&pq.Error{Code: pq.ErrorCode(tc.code), Constraint: "c"})

			err := queryCreateOccurrence(context.Background(), db, sampleOccurrence(time.Now().UTC()))
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	if mapError(nil) != nil {
		t.Error("mapError(nil) should be nil")
	}
	plain := errors.New("boom")
	if got := mapError(plain); got != plain {
		t.Errorf("mapError(plain) = %v, want passthrough", got)
	}
	if got := mapError(driver.ErrBadConn); !errors.Is(got, model.ErrTransient) {
		t.Errorf("mapError(ErrBadConn) = %v, want ErrTransient", got)
	}
	syntax := &pq.Error{Code: "42601"}
	if got := mapError(syntax); model.KindOf(got) != model.KindInternal {
		t.Errorf("mapError(syntax) kind = %s, want Internal", model.KindOf(got))
	}
}

func TestQueryGetOccurrence(t *testing.T) {
	db, mock := newMockDB(t)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM occurrences WHERE id = \\$1").WithArgs("ev-1").
		WillReturnRows(addOccurrenceRow(sqlmock.NewRows(occurrenceRowColumns), "ev-1", "Demo Day - March 2025", "Demo Day", start))

	o, err := queryGetOccurrence(context.Background(), db, "ev-1")
	if err != nil {
		t.Fatalf("queryGetOccurrence: %v", err)
	}
	if o == nil || o.ID != "ev-1" || o.Series != "Demo Day" {
		t.Fatalf("got %+v", o)
	}
	if !o.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", o.StartDate, start)
	}
}

func TestQueryGetOccurrence_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM occurrences WHERE id = \\$1").WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	o, err := queryGetOccurrence(context.Background(), db, "missing")
	if err != nil || o != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", o, err)
	}
}

func TestQueryGetOccurrenceByTitle_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM occurrences WHERE title = \\$1").WithArgs("Demo Day - April 2025").
		WillReturnRows(sqlmock.NewRows(occurrenceRowColumns))

	o, err := queryGetOccurrenceByTitle(context.Background(), db, "Demo Day - April 2025")
	if err != nil || o != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", o, err)
	}
}

func TestQueryLatestPerSeries(t *testing.T) {
	db, mock := newMockDB(t)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(occurrenceRowColumns)
	addOccurrenceRow(rows, "ev-a", "Demo Day - March 2025", "Demo Day", mar)
	addOccurrenceRow(rows, "ev-b", "Pitch Night - February 2025", "Pitch Night", feb)
	mock.ExpectQuery("SELECT DISTINCT ON \\(series\\) .+ FROM occurrences").WillReturnRows(rows)

	latest, err := queryLatestPerSeries(context.Background(), db)
	if err != nil {
		t.Fatalf("queryLatestPerSeries: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len = %d, want 2", len(latest))
	}
	if latest["Demo Day"].ID != "ev-a" || latest["Pitch Night"].ID != "ev-b" {
		t.Errorf("unexpected mapping: %+v", latest)
	}
}

func TestQueryListOccurrences_Filters(t *testing.T) {
	db, mock := newMockDB(t)
	active := true
	mock.ExpectQuery(`SELECT .+ FROM occurrences WHERE is_active = \$1 AND series = \$2 ORDER BY start_date ASC, id ASC LIMIT \$3 OFFSET \$4`).
		WithArgs(true, "Demo Day", 10, 20).
		WillReturnRows(sqlmock.NewRows(occurrenceRowColumns))

	_, err := queryListOccurrences(context.Background(), db, model.OccurrenceFilter{
		IsActive: &active, Series: "Demo Day", Limit: 10, Offset: 20,
	})
	if err != nil {
		t.Fatalf("queryListOccurrences: %v", err)
	}
}

func TestQueryListOccurrences_NoFilters(t *testing.T) {
	db, mock := newMockDB(t)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(occurrenceRowColumns)
	addOccurrenceRow(rows, "ev-1", "Demo Day - March 2025", "Demo Day", start)
	addOccurrenceRow(rows, "ev-2", "Demo Day - April 2025", "Demo Day", start.AddDate(0, 1, 0))
	mock.ExpectQuery(`SELECT .+ FROM occurrences ORDER BY start_date ASC, id ASC$`).
		WillReturnRows(rows)

	got, err := queryListOccurrences(context.Background(), db, model.OccurrenceFilter{})
	if err != nil {
		t.Fatalf("queryListOccurrences: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ev-1" {
		t.Errorf("got %d occurrences", len(got))
	}
}

func TestQueryCreateRegistration(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO registrations").
		WithArgs(sqlmock.AnyArg(), "ev-1", int64(10), "startup", "registered", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &model.Registration{EventID: "ev-1", UserID: 10, Role: "startup"}
	if err := queryCreateRegistration(context.Background(), db, r); err != nil {
		t.Fatalf("queryCreateRegistration: %v", err)
	}
	if !strings.HasPrefix(r.ID, "rg-") || r.Status != model.RegistrationRegistered {
		t.Errorf("got %+v", r)
	}
}

func TestQueryCreateRegistration_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "registrations_event_user_key"})

	err := queryCreateRegistration(context.Background(), db, &model.Registration{EventID: "ev-1", UserID: 10, Role: "startup"})
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestQueryDeleteRegistration(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM registrations WHERE event_id = \\$1 AND user_id = \\$2").
		WithArgs("ev-1", int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM registrations").
		WithArgs("ev-1", int64(11)).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := queryDeleteRegistration(context.Background(), db, "ev-1", 10)
	if err != nil || !ok {
		t.Fatalf("first delete = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = queryDeleteRegistration(context.Background(), db, "ev-1", 11)
	if err != nil || ok {
		t.Fatalf("second delete = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestQueryListRegistrations_Status(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM registrations WHERE event_id = \\$1 AND status = \\$2").
		WithArgs("ev-1", "registered").
		WillReturnRows(sqlmock.NewRows(registrationRowColumns).
			AddRow("rg-1", "ev-1", int64(10), "startup", "registered", now))

	got, err := queryListRegistrations(context.Background(), db, "ev-1", model.RegistrationRegistered)
	if err != nil {
		t.Fatalf("queryListRegistrations: %v", err)
	}
	if len(got) != 1 || got[0].UserID != 10 || got[0].Status != model.RegistrationRegistered {
		t.Errorf("got %+v", got)
	}
}

func TestQueryGetRegistration_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM registrations").WithArgs("ev-1", int64(10)).
		WillReturnError(sql.ErrNoRows)

	r, err := queryGetRegistration(context.Background(), db, "ev-1", 10)
	if err != nil || r != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", r, err)
	}
}

func TestQueryRecordActivity(t *testing.T) {
	db, mock := newMockDB(t)
	payload := json.RawMessage(`{"title":"Demo Day - March 2025"}`)
	mock.ExpectQuery("INSERT INTO activity").
		WithArgs("cadence.occurrence.created", "ev-1", "scheduler", []byte(payload), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	a := &model.Activity{Topic: "cadence.occurrence.created", EventID: "ev-1", Actor: "scheduler", Payload: payload}
	if err := queryRecordActivity(context.Background(), db, a); err != nil {
		t.Fatalf("queryRecordActivity: %v", err)
	}
	if a.ID != 7 {
		t.Errorf("ID = %d, want 7", a.ID)
	}
}

func TestQueryListActivity(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM activity").WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "event_id", "actor", "payload", "created_at"}).
			AddRow(int64(1), "cadence.registration.created", "ev-1", "10", []byte(`{}`), now).
			AddRow(int64(2), "cadence.registration.cancelled", "ev-1", "10", nil, now))

	got, err := queryListActivity(context.Background(), db, "ev-1")
	if err != nil {
		t.Fatalf("queryListActivity: %v", err)
	}
	if len(got) != 2 || got[1].Payload != nil {
		t.Errorf("got %+v", got)
	}
}

func TestJSONBBytes(t *testing.T) {
	if jsonbBytes(nil) != nil {
		t.Error("jsonbBytes(nil) should be nil")
	}
	if jsonbBytes(json.RawMessage{}) != nil {
		t.Error("jsonbBytes({}) should be nil")
	}
	if string(jsonbBytes(json.RawMessage(`{"a":1}`))) != `{"a":1}` {
		t.Error("jsonbBytes should pass through content")
	}
}

func TestRunInTransaction_LockAndCommit(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock\\(\\$1\\)").WithArgs(generationLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.LockGeneration(context.Background())
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestRunInTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	want := errors.New("fail")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

func TestTxStore_CreateOccurrenceSavepoint(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT cadence_write").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO occurrences").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "occurrences_title_key"})
	mock.ExpectExec("ROLLBACK TO SAVEPOINT cadence_write").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT cadence_write").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO occurrences").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RELEASE SAVEPOINT cadence_write").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		if err := tx.CreateOccurrence(context.Background(), sampleOccurrence(start)); !errors.Is(err, model.ErrConflict) {
			t.Errorf("first insert error = %v, want ErrConflict", err)
		}
		other := sampleOccurrence(start.AddDate(0, 1, 0))
		other.Title = "Demo Day - April 2025"
		return tx.CreateOccurrence(context.Background(), other)
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestPing_Transient(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	s := &PostgresStore{db: db}
	if err := s.Ping(context.Background()); !errors.Is(err, model.ErrTransient) {
		t.Fatalf("Ping error = %v, want ErrTransient", err)
	}
}
