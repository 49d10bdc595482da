// Package session implements the session lifecycle: creation on login,
// per-request validation against the bound device signature, sliding
// expiration, and terminal revocation.
package session

import (
	"fmt"
	"time"

	"github.com/chordline/console/identity"
	"github.com/gofrs/uuid"
)

const name = "github.com/chordline/console/session"

// Lifetime is the absolute session lifetime, slid forward on every
// successfully validated request.
const Lifetime = 24 * time.Hour

// Session binds a bearer token to a user and the device signature captured
// at creation. Once RevokedAt is set the record is immutable.
type Session struct {
	Token       string
	UserID      uuid.UUID
	UserAgent   string
	Fingerprint string
	IPAddress   string
	CreatedAt   time.Time
	AccessedAt  *time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	Metadata    Metadata
}

// Status is the outcome of validating a token against a device signature.
type Status string

const (
	StatusValid               Status = "VALID"
	StatusNoSession           Status = "NO_SESSION"
	StatusExpired             Status = "EXPIRED"
	StatusRevoked             Status = "REVOKED"
	StatusUAMismatch          Status = "UA_MISMATCH"
	StatusFingerprintMismatch Status = "FINGERPRINT_MISMATCH"
	StatusUserMissing         Status = "USER_MISSING"
	StatusNotVerified         Status = "NOT_VERIFIED"
	StatusNotApproved         Status = "NOT_APPROVED"
	StatusSuspended           Status = "SUSPENDED"
)

// RevokeReason records why a session was terminated.
type RevokeReason string

const (
	ReasonExpired             RevokeReason = "EXPIRED"
	ReasonUAMismatch          RevokeReason = "UA_MISMATCH"
	ReasonFingerprintMismatch RevokeReason = "FINGERPRINT_MISMATCH"
	ReasonUserMissing         RevokeReason = "USER_MISSING"
	ReasonNotVerified         RevokeReason = "NOT_VERIFIED"
	ReasonNotApproved         RevokeReason = "NOT_APPROVED"
	ReasonSuspended           RevokeReason = "SUSPENDED"
	ReasonUserLogout          RevokeReason = "USER_LOGOUT"
	ReasonGrantMissing        RevokeReason = "GRANT_MISSING"
	ReasonGrantSuspended      RevokeReason = "GRANT_SUSPENDED"
	ReasonGrantExpired        RevokeReason = "GRANT_EXPIRED"
)

// Validation is the result of Manager.Validate. Session is set for every
// status derived from an existing row, nil for StatusNoSession.
// Eligibility is set only for StatusValid; the owner's identity snapshot is
// what the authorization gate keys its role decisions on.
type Validation struct {
	Status      Status
	Session     *Session
	Eligibility *identity.Eligibility
}

// Valid reports whether the request may proceed to authorization.
func (v Validation) Valid() bool {
	return v.Status == StatusValid
}

// StorageError wraps a session-store failure. It is the only retriable
// error in this package; every caller must fail closed on it.
type StorageError struct {
	err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage: %v", e.err)
}

func (e *StorageError) Unwrap() error {
	return e.err
}
