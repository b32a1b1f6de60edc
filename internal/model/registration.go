package model

import "time"

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

// IsValid checks whether the status is a known value.
func (s RegistrationStatus) IsValid() bool {
	switch s {
	case RegistrationRegistered, RegistrationCancelled:
		return true
	}
	return false
}

// Registration records one attendee's sign-up for an occurrence.
// At most one registration exists per (EventID, UserID).
type Registration struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event_id"`
	UserID       int64              `json:"user_id"`
	Role         string             `json:"role"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
}
