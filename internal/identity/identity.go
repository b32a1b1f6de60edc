// Package identity carries the caller identity asserted by the upstream
// gateway. Headers are trusted verbatim; nothing here verifies signatures.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// Trusted header names.
const (
	HeaderUserID       = "user-id"
	HeaderRole         = "role"
	HeaderAllowedRoles = "allowed-roles"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID       int64    `json:"user_id"`
	Role         string   `json:"role,omitempty"`
	AllowedRoles []string `json:"allowed_roles,omitempty"`
}

// Allows reports whether role is in the caller's allowed roles.
func (id Identity) Allows(role string) bool {
	for _, r := range id.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// FromHeaders builds an Identity from the trusted headers. A missing user id
// is model.ErrUnauthenticated; a malformed one is a validation error.
func FromHeaders(h http.Header) (Identity, error) {
	raw := strings.TrimSpace(h.Get(HeaderUserID))
	if raw == "" {
		return Identity{}, fmt.Errorf("missing %s header: %w", HeaderUserID, model.ErrUnauthenticated)
	}
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Identity{}, model.NewValidationError(HeaderUserID, "must be an integer")
	}
	return Identity{
		UserID:       uid,
		Role:         strings.TrimSpace(h.Get(HeaderRole)),
		AllowedRoles: ParseRoles(h.Get(HeaderAllowedRoles)),
	}, nil
}

// ParseRoles splits a comma-separated role list, dropping blanks.
func ParseRoles(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
