package model

import (
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// NewValidationError returns a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// ValidateOccurrence checks an Occurrence for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the occurrence is valid.
func ValidateOccurrence(o *Occurrence) error {
	var ve ValidationError

	title := strings.TrimSpace(o.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > 150 {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 150 characters or fewer"})
	}
	if BaseTitle(o.Title) == "" && title != "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must start with a base title"})
	}

	theme := strings.TrimSpace(o.Theme)
	if theme == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "theme", Message: "is required"})
	} else if len([]rune(theme)) > 100 {
		ve.Errors = append(ve.Errors, FieldError{Field: "theme", Message: "must be 100 characters or fewer"})
	}

	if o.StartDate.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "start_date", Message: "is required"})
	}
	if o.EndDate.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "end_date", Message: "is required"})
	}
	if o.RegistrationDeadline.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "registration_deadline", Message: "is required"})
	}

	if !o.StartDate.IsZero() && !o.RegistrationDeadline.IsZero() && !o.RegistrationDeadline.Before(o.StartDate) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "registration_deadline",
			Message: "must be strictly before start_date",
		})
	}
	if !o.StartDate.IsZero() && !o.EndDate.IsZero() && !o.StartDate.Before(o.EndDate) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "end_date",
			Message: "must be strictly after start_date",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// CheckInvariants reports ErrInvariant when the occurrence's dates violate
// the ordering enforced by the store.
func CheckInvariants(o *Occurrence) error {
	if !o.RegistrationDeadline.Before(o.StartDate) || !o.StartDate.Before(o.EndDate) {
		return ErrInvariant
	}
	return nil
}
