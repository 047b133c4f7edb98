package lending

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is issued by the authorization collaborator.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// ParseRole converts a claim value into a Role.
func ParseRole(value string) (Role, error) {
	switch r := Role(value); r {
	case RoleAdmin, RoleUser:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrForbidden, value)
	}
}

// Caller is the identity on whose behalf an operation runs. It is trusted as-is.
type Caller struct {
	UserID uuid.UUID
	Role   Role
}

// SystemCaller is used by scheduled jobs, e.g. the overdue sweep.
func SystemCaller() Caller {
	return Caller{UserID: uuid.Nil, Role: RoleAdmin}
}

// IsAdmin reports whether the caller has the ADMIN role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanActFor reports whether the caller may read or modify data owned by userID.
func (c Caller) CanActFor(userID uuid.UUID) bool {
	return c.IsAdmin() || (c.UserID != uuid.Nil && c.UserID == userID)
}

// RequireAdmin returns ErrForbidden unless the caller is an admin.
func (c Caller) RequireAdmin() error {
	if !c.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	return nil
}

// RequireActingFor returns ErrForbidden unless the caller may act for userID.
func (c Caller) RequireActingFor(userID uuid.UUID) error {
	if !c.CanActFor(userID) {
		return fmt.Errorf("%w: caller %s may not act for user %s", ErrForbidden, c.UserID, userID)
	}

	return nil
}

const callerKey contextKey = "lending.caller"

// WithCaller returns a context carrying the caller identity.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom extracts the caller identity from the context.
func CallerFrom(ctx context.Context) (Caller, error) {
	caller, ok := ctx.Value(callerKey).(Caller)
	if !ok {
		return Caller{}, fmt.Errorf("%w: no caller in context", ErrForbidden)
	}

	return caller, nil
}
