package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanOccurrence scans a single row into a model.Occurrence.
// The row must contain columns in the order defined by occurrenceColumns.
func scanOccurrence(row scannable) (*model.Occurrence, error) {
	var o model.Occurrence
	err := row.Scan(
		&o.ID,
		&o.Title,
		&o.Series,
		&o.Theme,
		&o.Description,
		&o.StartDate,
		&o.EndDate,
		&o.RegistrationDeadline,
		&o.IsActive,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.StartDate = o.StartDate.UTC()
	o.EndDate = o.EndDate.UTC()
	o.RegistrationDeadline = o.RegistrationDeadline.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func scanOccurrences(rows *sql.Rows) ([]*model.Occurrence, error) {
	defer rows.Close()
	var out []*model.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanRegistration(row scannable) (*model.Registration, error) {
	var (
		r      model.Registration
		status string
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.UserID, &r.Role, &status, &r.RegisteredAt); err != nil {
		return nil, err
	}
	r.Status = model.RegistrationStatus(status)
	r.RegisteredAt = r.RegisteredAt.UTC()
	return &r, nil
}

func scanRegistrations(rows *sql.Rows) ([]*model.Registration, error) {
	defer rows.Close()
	var out []*model.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanActivity(row scannable) (*model.Activity, error) {
	var (
		a       model.Activity
		payload []byte
	)
	if err := row.Scan(&a.ID, &a.Topic, &a.EventID, &a.Actor, &payload, &a.CreatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		a.Payload = json.RawMessage(payload)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func scanActivities(rows *sql.Rows) ([]*model.Activity, error) {
	defer rows.Close()
	var out []*model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// jsonbBytes returns nil for empty JSON so the column stores NULL.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
