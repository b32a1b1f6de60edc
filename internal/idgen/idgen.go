// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// OccurrencePrefix is prepended to occurrence ids.
	OccurrencePrefix = "ev-"
	// RegistrationPrefix is prepended to registration ids.
	RegistrationPrefix = "rg-"
)

// Alphabet defines the character set used for the random portion of the ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 10

// Occurrence returns a new occurrence id.
func Occurrence() (string, error) {
	return WithPrefix(OccurrencePrefix)
}

// Registration returns a new registration id.
func Registration() (string, error) {
	return WithPrefix(RegistrationPrefix)
}

// WithPrefix returns a new unique ID with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
