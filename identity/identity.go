// Package identity exposes read-only eligibility lookups against the
// identity store. The store itself (registration, verification, approval)
// is owned elsewhere; this core only consumes it.
package identity

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
)

// Role classifies a dashboard user.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleSystem Role = "SYSTEM"
	RoleUser   Role = "USER"
)

// Privileged reports whether the role bypasses grant lookups entirely.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Eligibility is the per-user snapshot consulted on every validated request.
type Eligibility struct {
	UserID      uuid.UUID
	Role        Role
	VerifiedAt  *time.Time
	ApprovedAt  *time.Time
	SuspendedAt *time.Time
}

// Eligible reports whether the user may hold a usable session:
// verified, approved, and not suspended.
func (e *Eligibility) Eligible() bool {
	return e.VerifiedAt != nil && e.ApprovedAt != nil && e.SuspendedAt == nil
}

// Store is the read-only surface this core requires from the identity store.
type Store interface {
	Eligibility(ctx context.Context, userID uuid.UUID) (*Eligibility, error)
}
