package access

import (
	"context"
	"time"

	"github.com/chordline/console/audit"
	"github.com/chordline/console/identity"
	"github.com/cccteam/httpio"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
)

const name = "github.com/chordline/console/access"

// Storage is the grant persistence surface required by the Editor and the
// authorization gate.
type Storage interface {
	Grant(ctx context.Context, id uuid.UUID) (*Grant, error)
	GrantByUser(ctx context.Context, userID uuid.UUID) (*Grant, error)
	InsertGrant(ctx context.Context, grant *Grant) error
	UpdateGrant(ctx context.Context, id uuid.UUID, levels map[Category][]Level, expiresAt, updatedAt time.Time) error
	SetGrantSuspended(ctx context.Context, id uuid.UUID, suspendedAt *time.Time, updatedAt time.Time) error
	DeleteGrant(ctx context.Context, id uuid.UUID) error
}

// Editor mutates grants on behalf of privileged assigners. All writes go
// through the cascade normalizer, so persisted grants are always
// cascade-consistent even when a caller submitted a sparse level set.
type Editor struct {
	storage    Storage
	identities identity.Store
	sink       audit.Sink
}

func NewEditor(storage Storage, identities identity.Store, sink audit.Sink) *Editor {
	return &Editor{
		storage:    storage,
		identities: identities,
		sink:       sink,
	}
}

// CreateGrant creates a grant for an eligible, currently-ungranted,
// non-privileged subject.
func (e *Editor) CreateGrant(ctx context.Context, assignerID, subjectID uuid.UUID, levels map[Category][]Level, expiresAt time.Time) (*Grant, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Editor.CreateGrant()")
	defer span.End()

	if err := e.checkAssigner(ctx, assignerID, subjectID); err != nil {
		return nil, err
	}

	subject, err := e.identities.Eligibility(ctx, subjectID)
	if err != nil {
		if httpio.HasNotFound(err) {
			return nil, httpio.NewBadRequestMessage("subject user does not exist")
		}

		return nil, errors.Wrap(err, "identity.Store.Eligibility()")
	}
	if !subject.Eligible() {
		return nil, httpio.NewBadRequestMessage("subject user is not eligible")
	}
	if subject.Role.Privileged() {
		return nil, httpio.NewBadRequestMessage("privileged users do not carry grants")
	}

	if _, err := e.storage.GrantByUser(ctx, subjectID); err == nil {
		return nil, httpio.NewBadRequestMessage("subject user already has a grant")
	} else if !httpio.HasNotFound(err) {
		return nil, errors.Wrap(err, "access.Storage.GrantByUser()")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "uuid.NewV4()")
	}

	now := time.Now()
	grant := &Grant{
		ID:         id,
		UserID:     subjectID,
		AssignedBy: assignerID,
		Levels:     normalizeAll(levels),
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.storage.InsertGrant(ctx, grant); err != nil {
		return nil, errors.Wrap(err, "access.Storage.InsertGrant()")
	}

	audit.Emit(ctx, e.sink, audit.Event{
		Action:       audit.AccessCreated,
		EntityType:   "accessGrant",
		EntityID:     grant.ID.String(),
		Description:  "access grant created for user " + subjectID.String(),
		Metadata:     levelMetadata(grant.Levels),
		ActingUserID: assignerID,
	})

	return grant, nil
}

// UpdateGrant replaces the held level sets and expiry of an existing grant.
func (e *Editor) UpdateGrant(ctx context.Context, assignerID, grantID uuid.UUID, levels map[Category][]Level, expiresAt time.Time) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Editor.UpdateGrant()")
	defer span.End()

	grant, err := e.loadForMutation(ctx, assignerID, grantID)
	if err != nil {
		return err
	}

	normalized := normalizeAll(levels)
	if err := e.storage.UpdateGrant(ctx, grant.ID, normalized, expiresAt, time.Now()); err != nil {
		return errors.Wrap(err, "access.Storage.UpdateGrant()")
	}

	audit.Emit(ctx, e.sink, audit.Event{
		Action:       audit.AccessUpdated,
		EntityType:   "accessGrant",
		EntityID:     grant.ID.String(),
		Description:  "access grant updated for user " + grant.UserID.String(),
		Metadata:     levelMetadata(normalized),
		ActingUserID: assignerID,
	})

	return nil
}

// Suspend denies all categories for the grant until Unsuspend.
func (e *Editor) Suspend(ctx context.Context, assignerID, grantID uuid.UUID) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Editor.Suspend()")
	defer span.End()

	grant, err := e.loadForMutation(ctx, assignerID, grantID)
	if err != nil {
		return err
	}
	if grant.SuspendedAt != nil {
		return nil
	}

	now := time.Now()
	if err := e.storage.SetGrantSuspended(ctx, grant.ID, &now, now); err != nil {
		return errors.Wrap(err, "access.Storage.SetGrantSuspended()")
	}

	audit.Emit(ctx, e.sink, audit.Event{
		Action:       audit.AccessSuspended,
		EntityType:   "accessGrant",
		EntityID:     grant.ID.String(),
		Description:  "access grant suspended for user " + grant.UserID.String(),
		ActingUserID: assignerID,
	})

	return nil
}

// Unsuspend restores the grant's held levels.
func (e *Editor) Unsuspend(ctx context.Context, assignerID, grantID uuid.UUID) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Editor.Unsuspend()")
	defer span.End()

	grant, err := e.loadForMutation(ctx, assignerID, grantID)
	if err != nil {
		return err
	}
	if grant.SuspendedAt == nil {
		return nil
	}

	if err := e.storage.SetGrantSuspended(ctx, grant.ID, nil, time.Now()); err != nil {
		return errors.Wrap(err, "access.Storage.SetGrantSuspended()")
	}

	audit.Emit(ctx, e.sink, audit.Event{
		Action:       audit.AccessUnsuspended,
		EntityType:   "accessGrant",
		EntityID:     grant.ID.String(),
		Description:  "access grant unsuspended for user " + grant.UserID.String(),
		ActingUserID: assignerID,
	})

	return nil
}

// ExtendExpiry moves the grant expiry to the given instant.
func (e *Editor) ExtendExpiry(ctx context.Context, assignerID, grantID uuid.UUID, expiresAt time.Time) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Editor.ExtendExpiry()")
	defer span.End()

	grant, err := e.loadForMutation(ctx, assignerID, grantID)
	if err != nil {
		return err
	}

	if err := e.storage.UpdateGrant(ctx, grant.ID, grant.Levels, expiresAt, time.Now()); err != nil {
		return errors.Wrap(err, "access.Storage.UpdateGrant()")
	}

	audit.Emit(ctx, e.sink, audit.Event{
		Action:       audit.AccessUpdated,
		EntityType:   "accessGrant",
		EntityID:     grant.ID.String(),
		Description:  "access grant expiry extended for user " + grant.UserID.String(),
		Metadata:     map[string]string{"expiresAt": expiresAt.Format(time.RFC3339)},
		ActingUserID: assignerID,
	})

	return nil
}

// DeleteGrant removes the grant entirely.
func (e *Editor) DeleteGrant(ctx context.Context, assignerID, grantID uuid.UUID) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Editor.DeleteGrant()")
	defer span.End()

	grant, err := e.loadForMutation(ctx, assignerID, grantID)
	if err != nil {
		return err
	}

	if err := e.storage.DeleteGrant(ctx, grant.ID); err != nil {
		return errors.Wrap(err, "access.Storage.DeleteGrant()")
	}

	audit.Emit(ctx, e.sink, audit.Event{
		Action:       audit.AccessDeleted,
		EntityType:   "accessGrant",
		EntityID:     grant.ID.String(),
		Description:  "access grant deleted for user " + grant.UserID.String(),
		ActingUserID: assignerID,
	})

	return nil
}

// loadForMutation loads the grant and rejects self-mutation and
// non-privileged assigners before any write. Rejections emit no audit
// event; nothing happened.
func (e *Editor) loadForMutation(ctx context.Context, assignerID, grantID uuid.UUID) (*Grant, error) {
	grant, err := e.storage.Grant(ctx, grantID)
	if err != nil {
		if httpio.HasNotFound(err) {
			return nil, err
		}

		return nil, errors.Wrap(err, "access.Storage.Grant()")
	}

	if err := e.checkAssigner(ctx, assignerID, grant.UserID); err != nil {
		return nil, err
	}

	return grant, nil
}

func (e *Editor) checkAssigner(ctx context.Context, assignerID, subjectID uuid.UUID) error {
	if assignerID == subjectID {
		return httpio.NewForbiddenMessage("grants cannot be modified by their own subject")
	}

	assigner, err := e.identities.Eligibility(ctx, assignerID)
	if err != nil {
		if httpio.HasNotFound(err) {
			return httpio.NewForbiddenMessage("assigner does not exist")
		}

		return errors.Wrap(err, "identity.Store.Eligibility()")
	}
	if !assigner.Eligible() || !assigner.Role.Privileged() {
		return httpio.NewForbiddenMessage("assigner is not a privileged, eligible user")
	}

	return nil
}

func normalizeAll(levels map[Category][]Level) map[Category][]Level {
	normalized := make(map[Category][]Level, len(levels))
	for category, requested := range levels {
		if set := Normalize(category, requested); set != nil {
			normalized[category] = set
		}
	}

	return normalized
}

func levelMetadata(levels map[Category][]Level) map[string]string {
	meta := make(map[string]string, len(levels))
	for category, held := range levels {
		if len(held) == 0 {
			continue
		}
		// Held sets are normalized prefixes, so the highest level fully
		// describes the set.
		meta[string(category)] = string(held[len(held)-1])
	}

	return meta
}
