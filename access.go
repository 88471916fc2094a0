package vesting

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
)

// Authorizer decides whether a caller may run administrative operations:
// grants, cancellation, withdrawal, asset registration and configuration.
type Authorizer interface {
	IsPrivileged(ctx context.Context, caller string) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, caller string) bool

// IsPrivileged implements Authorizer.
func (f AuthorizerFunc) IsPrivileged(ctx context.Context, caller string) bool {
	return f(ctx, caller)
}

// DenyAll refuses every caller. It is the engine default.
var DenyAll Authorizer = AuthorizerFunc(func(context.Context, string) bool { return false })

// AllowAll grants every caller, including anonymous ones.
var AllowAll Authorizer = AuthorizerFunc(func(context.Context, string) bool { return true })

// AdminSet is an Authorizer backed by a fixed set of privileged callers.
type AdminSet struct {
	admins mapset.Set[string]
}

// NewAdminSet creates an AdminSet from the given callers.
func NewAdminSet(callers ...string) *AdminSet {
	return &AdminSet{admins: mapset.NewSet(callers...)}
}

// IsPrivileged implements Authorizer.
func (a *AdminSet) IsPrivileged(_ context.Context, caller string) bool {
	return caller != "" && a.admins.Contains(caller)
}

// Add grants privileges to caller.
func (a *AdminSet) Add(caller string) { a.admins.Add(caller) }

// Remove revokes privileges from caller.
func (a *AdminSet) Remove(caller string) { a.admins.Remove(caller) }

// ──────────────────────────────────────────────────
// Caller context
// ──────────────────────────────────────────────────

type callerKey struct{}

// WithCaller returns a context carrying the identity of the account invoking
// an engine operation.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by WithCaller, or "".
func CallerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey{}).(string); ok {
		return v
	}
	return ""
}
