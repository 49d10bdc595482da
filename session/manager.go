package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/chordline/console/audit"
	"github.com/chordline/console/devicesig"
	"github.com/chordline/console/identity"
	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
)

// Storage is the durable session store. All mutation is keyed by token;
// TouchSession and RevokeSession are single-row atomic updates.
type Storage interface {
	InsertSession(ctx context.Context, session *Session) error
	Session(ctx context.Context, token string) (*Session, error)
	TouchSession(ctx context.Context, token, ipAddress string, accessedAt, expiresAt time.Time) error
	// RevokeSession sets RevokedAt and the metadata blob iff the session is
	// not already revoked. It reports whether this call revoked the session.
	RevokeSession(ctx context.Context, token string, revokedAt time.Time, metadata Metadata) (revoked bool, err error)
}

// Manager owns the session lifecycle and its binding invariants.
type Manager struct {
	storage        Storage
	identities     identity.Store
	sink           audit.Sink
	lifetime       time.Duration
	storageTimeout time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLifetime sets the sliding session lifetime. (default: 24h)
func WithLifetime(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lifetime = d
	}
}

// WithStorageTimeout bounds every session-store call. A store that exceeds
// the bound fails closed as a StorageError. (default: 5s)
func WithStorageTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.storageTimeout = d
	}
}

func NewManager(storage Storage, identities identity.Store, sink audit.Sink, options ...ManagerOption) *Manager {
	m := &Manager{
		storage:        storage,
		identities:     identities,
		sink:           sink,
		lifetime:       Lifetime,
		storageTimeout: 5 * time.Second,
	}
	for _, opt := range options {
		opt(m)
	}

	return m
}

// Create issues a new session for a user who has just authenticated,
// binding it to the resolved device signature. One session per login.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID, sig devicesig.Signature) (*Session, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Create()")
	defer span.End()

	token, err := newToken()
	if err != nil {
		return nil, errors.Wrap(err, "session.newToken()")
	}

	now := time.Now()
	session := &Session{
		Token:       token,
		UserID:      userID,
		UserAgent:   sig.UserAgent,
		Fingerprint: sig.Fingerprint,
		IPAddress:   sig.IPAddress,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.lifetime),
		Metadata:    Metadata{Device: newDeviceInfo(sig)},
	}

	sctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()
	if err := m.storage.InsertSession(sctx, session); err != nil {
		return nil, &StorageError{err: errors.Wrap(err, "session.Storage.InsertSession()")}
	}

	audit.Emit(ctx, m.sink, audit.Event{
		Action:       audit.SessionCreated,
		EntityType:   "session",
		EntityID:     token,
		Description:  "session created for user " + userID.String(),
		Metadata:     map[string]string{"ipAddress": sig.IPAddress},
		ActingUserID: userID,
	})

	return session, nil
}

// Validate checks the token against the current device signature and the
// owner's eligibility, in fixed order, stopping at the first failure. Every
// failure except "not found" and the already-terminal expired/revoked
// pass-throughs force-revokes the session: an integrity violation must
// never leave a retriable credential behind. On success the expiration
// slides forward and the stored IP address is refreshed.
func (m *Manager) Validate(ctx context.Context, token string, sig devicesig.Signature) (Validation, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Validate()")
	defer span.End()

	session, err := m.load(ctx, token)
	if err != nil {
		if httpio.HasNotFound(err) {
			return Validation{Status: StatusNoSession}, nil
		}

		return Validation{Status: StatusNoSession}, &StorageError{err: err}
	}

	now := time.Now()

	if session.ExpiresAt.Before(now) {
		// A session that expired and was already revoked is a pure read.
		if session.RevokedAt == nil {
			if err := m.revoke(ctx, session, ReasonExpired, sig); err != nil {
				return Validation{Status: StatusExpired, Session: session}, err
			}
		}

		return Validation{Status: StatusExpired, Session: session}, nil
	}

	if session.RevokedAt != nil {
		return Validation{Status: StatusRevoked, Session: session}, nil
	}

	if session.UserAgent != sig.UserAgent {
		return m.fail(ctx, session, StatusUAMismatch, ReasonUAMismatch, sig)
	}

	if session.Fingerprint != sig.Fingerprint {
		return m.fail(ctx, session, StatusFingerprintMismatch, ReasonFingerprintMismatch, sig)
	}

	eligibility, err := m.eligibility(ctx, session.UserID)
	if err != nil {
		if httpio.HasNotFound(err) {
			return m.fail(ctx, session, StatusUserMissing, ReasonUserMissing, sig)
		}

		return Validation{Status: StatusNoSession, Session: session}, &StorageError{err: err}
	}

	switch {
	case eligibility.VerifiedAt == nil:
		return m.fail(ctx, session, StatusNotVerified, ReasonNotVerified, sig)
	case eligibility.ApprovedAt == nil:
		return m.fail(ctx, session, StatusNotApproved, ReasonNotApproved, sig)
	case eligibility.SuspendedAt != nil:
		return m.fail(ctx, session, StatusSuspended, ReasonSuspended, sig)
	}

	expiresAt := now.Add(m.lifetime)
	sctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()
	if err := m.storage.TouchSession(sctx, session.Token, sig.IPAddress, now, expiresAt); err != nil {
		return Validation{Status: StatusNoSession, Session: session}, &StorageError{err: errors.Wrap(err, "session.Storage.TouchSession()")}
	}

	session.IPAddress = sig.IPAddress
	session.AccessedAt = &now
	session.ExpiresAt = expiresAt

	return Validation{Status: StatusValid, Session: session, Eligibility: eligibility}, nil
}

// Peek reads the session without sliding its expiration. Read-only checks
// (e.g. server rendering) use this; only the request gate slides expiry.
func (m *Manager) Peek(ctx context.Context, token string) (*Session, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Peek()")
	defer span.End()

	return m.load(ctx, token)
}

// Revoke terminates the session with the given reason. Revoking an already
// revoked session is a no-op; RevokedAt and the revocation metadata are
// written exactly once.
func (m *Manager) Revoke(ctx context.Context, token string, reason RevokeReason, sig devicesig.Signature) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Revoke()")
	defer span.End()

	session, err := m.load(ctx, token)
	if err != nil {
		if httpio.HasNotFound(err) {
			return nil
		}

		return &StorageError{err: err}
	}
	if session.RevokedAt != nil {
		return nil
	}

	return m.revoke(ctx, session, reason, sig)
}

// Logout is the caller-initiated revoke.
func (m *Manager) Logout(ctx context.Context, token string, sig devicesig.Signature) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Manager.Logout()")
	defer span.End()

	return m.Revoke(ctx, token, ReasonUserLogout, sig)
}

func (m *Manager) fail(ctx context.Context, session *Session, status Status, reason RevokeReason, sig devicesig.Signature) (Validation, error) {
	if err := m.revoke(ctx, session, reason, sig); err != nil {
		return Validation{Status: status, Session: session}, err
	}

	return Validation{Status: status, Session: session}, nil
}

func (m *Manager) revoke(ctx context.Context, session *Session, reason RevokeReason, sig devicesig.Signature) error {
	now := time.Now()
	metadata := session.Metadata
	metadata.Revocation = &Revocation{
		Reason:   reason,
		At:       now,
		Observed: newDeviceInfo(sig),
	}

	sctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()
	revoked, err := m.storage.RevokeSession(sctx, session.Token, now, metadata)
	if err != nil {
		return &StorageError{err: errors.Wrap(err, "session.Storage.RevokeSession()")}
	}
	if !revoked {
		// Lost the race to another revoker; the session is terminal either
		// way and the winner emitted the audit event.
		return nil
	}

	session.RevokedAt = &now
	session.Metadata = metadata

	logger.Ctx(ctx).Infof("session revoked for user %s: %s", session.UserID, reason)
	audit.Emit(ctx, m.sink, audit.Event{
		Action:       audit.SessionRevoked,
		EntityType:   "session",
		EntityID:     session.Token,
		Description:  "session revoked for user " + session.UserID.String(),
		Metadata:     map[string]string{"reason": string(reason), "ipAddress": sig.IPAddress},
		ActingUserID: session.UserID,
	})

	return nil
}

func (m *Manager) load(ctx context.Context, token string) (*Session, error) {
	sctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()

	session, err := m.storage.Session(sctx, token)
	if err != nil {
		if httpio.HasNotFound(err) {
			return nil, err
		}

		return nil, errors.Wrap(err, "session.Storage.Session()")
	}

	return session, nil
}

func (m *Manager) eligibility(ctx context.Context, userID uuid.UUID) (*identity.Eligibility, error) {
	sctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()

	eligibility, err := m.identities.Eligibility(sctx, userID)
	if err != nil {
		if httpio.HasNotFound(err) {
			return nil, err
		}

		return nil, errors.Wrap(err, "identity.Store.Eligibility()")
	}

	return eligibility, nil
}

// newToken returns a high-entropy opaque bearer token.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "rand.Read()")
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
