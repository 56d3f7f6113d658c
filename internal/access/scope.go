// Package access implements the request-scoped access context and the role
// filter applied to every configuration read path.
//
// The scope is carried on the request's context.Context and is torn down
// with it; no process-wide state holds the caller's identity. Reading the
// scope where none was established is a programming defect and fails loudly
// with ErrNoScope instead of degrading to "no restriction".
package access

import (
	"context"
	"errors"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// ErrNoScope is returned by FromContext when no access scope was
// established for the current request. Handlers translate it to an internal
// error: authentication is checked at the boundary, so a missing scope is
// never a normal unauthenticated case.
var ErrNoScope = errors.New("access: no scope established")

// Scope holds the authenticated caller's identity and role set for the
// lifetime of one request.
type Scope struct {
	UserID  string
	Subject string
	Roles   []string
	IsAdmin bool
}

// HasRole reports whether the scope carries the named role.
func (s Scope) HasRole(name string) bool {
	for _, r := range s.Roles {
		if r == name {
			return true
		}
	}
	return false
}

type scopeKey struct{}

// WithScope returns a context carrying the caller's access scope. The scope
// lives exactly as long as the request context it is attached to.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the access scope established for ctx, or ErrNoScope
// when none exists. Callers must treat the error as an internal defect.
func FromContext(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	if !ok {
		return Scope{}, ErrNoScope
	}
	return s, nil
}

// ScopeFor builds a Scope from a persisted user and their preloaded roles.
func ScopeFor(u *domain.User) Scope {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Name)
	}
	return Scope{
		UserID:  u.ID,
		Subject: u.Subject,
		Roles:   roles,
		IsAdmin: u.IsAdmin,
	}
}
