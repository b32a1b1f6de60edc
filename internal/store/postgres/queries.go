package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/cadence/internal/idgen"
	"github.com/alfredjeanlab/cadence/internal/model"
)

// occurrenceColumns is the column list used for SELECT statements on the occurrences table.
const occurrenceColumns = `id, title, series, theme, description,
	start_date, end_date, registration_deadline, is_active, created_at`

const registrationColumns = `id, event_id, user_id, role, status, registered_at`

const activityColumns = `id, topic, event_id, actor, payload, created_at`

// generationLockKey identifies the advisory lock held by a recurrence pass.
const generationLockKey int64 = 0x636164656e6365 // "cadence"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateOccurrence(ctx context.Context, db executor, o *model.Occurrence) error {
	if o.ID == "" {
		id, err := idgen.Occurrence()
		if err != nil {
			return err
		}
		o.ID = id
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Series == "" {
		o.Series = model.BaseTitle(o.Title)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO occurrences (
			id, title, series, theme, description,
			start_date, end_date, registration_deadline, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID,
		o.Title,
		o.Series,
		o.Theme,
		o.Description,
		o.StartDate.UTC(),
		o.EndDate.UTC(),
		o.RegistrationDeadline.UTC(),
		o.IsActive,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert occurrence %q: %w", o.Title, mapError(err))
	}
	return nil
}

func queryGetOccurrence(ctx context.Context, db executor, id string) (*model.Occurrence, error) {
	row := db.QueryRowContext(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE id = $1`, id)
	return scanOptionalOccurrence(row)
}

func queryGetOccurrenceByTitle(ctx context.Context, db executor, title string) (*model.Occurrence, error) {
	row := db.QueryRowContext(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE title = $1`, title)
	return scanOptionalOccurrence(row)
}

func scanOptionalOccurrence(row scannable) (*model.Occurrence, error) {
	o, err := scanOccurrence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return o, nil
}

// queryLatestPerSeries returns the occurrence with the greatest start date in
// each series. Ties go to the earliest created row.
func queryLatestPerSeries(ctx context.Context, db executor) (map[string]*model.Occurrence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT ON (series) `+occurrenceColumns+`
		FROM occurrences
		ORDER BY series, start_date DESC, created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("latest per series: %w", mapError(err))
	}
	list, err := scanOccurrences(rows)
	if err != nil {
		return nil, fmt.Errorf("latest per series: %w", mapError(err))
	}
	out := make(map[string]*model.Occurrence, len(list))
	for _, o := range list {
		out[o.SeriesKey()] = o
	}
	return out, nil
}

func queryListOccurrences(ctx context.Context, db executor, filter model.OccurrenceFilter) ([]*model.Occurrence, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.IsActive != nil {
		whereClauses = append(whereClauses, "is_active = "+nextArg())
		args = append(args, *filter.IsActive)
	}
	if filter.Series != "" {
		whereClauses = append(whereClauses, "series = "+nextArg())
		args = append(args, filter.Series)
	}

	query := `SELECT ` + occurrenceColumns + ` FROM occurrences`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", mapError(err))
	}
	out, err := scanOccurrences(rows)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", mapError(err))
	}
	return out, nil
}

func queryCreateRegistration(ctx context.Context, db executor, r *model.Registration) error {
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
	if r.RegisteredAt.IsZero() {
		r.RegisteredAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO registrations (id, event_id, user_id, role, status, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.EventID, r.UserID, r.Role, string(r.Status), r.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration for user %d: %w", r.UserID, mapError(err))
	}
	return nil
}

func queryGetRegistration(ctx context.Context, db executor, eventID string, userID int64) (*model.Registration, error) {
	row := db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations
		WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	r, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func queryDeleteRegistration(ctx context.Context, db executor, eventID string, userID int64) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	return n > 0, nil
}

func queryListRegistrations(ctx context.Context, db executor, eventID string, status model.RegistrationStatus) ([]*model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1`
	args := []any{eventID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY registered_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", mapError(err))
	}
	out, err := scanRegistrations(rows)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", mapError(err))
	}
	return out, nil
}

func queryRecordActivity(ctx context.Context, db executor, a *model.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := db.QueryRowContext(ctx, `
		INSERT INTO activity (topic, event_id, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		a.Topic, a.EventID, a.Actor, jsonbBytes(a.Payload), a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("record activity %s: %w", a.Topic, mapError(err))
	}
	return nil
}

func queryListActivity(ctx context.Context, db executor, eventID string) ([]*model.Activity, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+activityColumns+` FROM activity
		WHERE event_id = $1 ORDER BY id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", mapError(err))
	}
	out, err := scanActivities(rows)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", mapError(err))
	}
	return out, nil
}

// queryLockGeneration takes the transaction-scoped generation lock. Outside a
// transaction the lock is released as soon as the statement completes.
func queryLockGeneration(ctx context.Context, db executor) error {
	if _, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, generationLockKey); err != nil {
		return fmt.Errorf("acquire generation lock: %w", mapError(err))
	}
	return nil
}
