package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chordline/console/access"
	"github.com/cccteam/httpio"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
)

// grantRow mirrors the "AccessGrants" table. Levels are stored as a JSONB
// object of category → cascade-normalized level list.
type grantRow struct {
	ID          uuid.UUID  `db:"Id"`
	UserID      uuid.UUID  `db:"UserId"`
	AssignedBy  uuid.UUID  `db:"AssignedBy"`
	Levels      []byte     `db:"Levels"`
	ExpiresAt   time.Time  `db:"ExpiresAt"`
	SuspendedAt *time.Time `db:"SuspendedAt"`
	CreatedAt   time.Time  `db:"CreatedAt"`
	UpdatedAt   time.Time  `db:"UpdatedAt"`
}

func (r *grantRow) grant() (*access.Grant, error) {
	levels := make(map[access.Category][]access.Level)
	if len(r.Levels) > 0 {
		if err := json.Unmarshal(r.Levels, &levels); err != nil {
			return nil, errors.Wrapf(err, "malformed level sets for grant %s", r.ID)
		}
	}

	return &access.Grant{
		ID:          r.ID,
		UserID:      r.UserID,
		AssignedBy:  r.AssignedBy,
		Levels:      levels,
		ExpiresAt:   r.ExpiresAt,
		SuspendedAt: r.SuspendedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

const selectGrant = `
	SELECT
		"Id", "UserId", "AssignedBy", "Levels", "ExpiresAt", "SuspendedAt", "CreatedAt", "UpdatedAt"
	FROM "AccessGrants"
`

// Grant returns the grant with the given id
func (d *Driver) Grant(ctx context.Context, id uuid.UUID) (*access.Grant, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.Grant()")
	defer span.End()

	row := &grantRow{}
	if err := pgxscan.Get(ctx, d.conn, row, selectGrant+`WHERE "Id" = $1`, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpio.NewNotFoundMessagef("grant %s not found in database", id)
		}

		return nil, errors.Wrapf(err, "failed to scan row for grant %s", id)
	}

	return row.grant()
}

// GrantByUser returns the grant held by the given subject user
func (d *Driver) GrantByUser(ctx context.Context, userID uuid.UUID) (*access.Grant, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.GrantByUser()")
	defer span.End()

	row := &grantRow{}
	if err := pgxscan.Get(ctx, d.conn, row, selectGrant+`WHERE "UserId" = $1`, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpio.NewNotFoundMessagef("no grant for user %s", userID)
		}

		return nil, errors.Wrapf(err, "failed to scan row for user %s grant", userID)
	}

	return row.grant()
}

// InsertGrant inserts the grant into the database
func (d *Driver) InsertGrant(ctx context.Context, grant *access.Grant) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.InsertGrant()")
	defer span.End()

	levels, err := json.Marshal(grant.Levels)
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}

	query := `
		INSERT INTO "AccessGrants"
			("Id", "UserId", "AssignedBy", "Levels", "ExpiresAt", "SuspendedAt", "CreatedAt", "UpdatedAt")
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		`

	if _, err := d.conn.Exec(ctx, query, grant.ID, grant.UserID, grant.AssignedBy, levels, grant.ExpiresAt, grant.SuspendedAt, grant.CreatedAt, grant.UpdatedAt); err != nil {
		return errors.Wrap(err, "failed to insert into table AccessGrants")
	}

	return nil
}

// UpdateGrant replaces the level sets and expiry of the grant
func (d *Driver) UpdateGrant(ctx context.Context, id uuid.UUID, levels map[access.Category][]access.Level, expiresAt, updatedAt time.Time) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.UpdateGrant()")
	defer span.End()

	blob, err := json.Marshal(levels)
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}

	query := `
		UPDATE "AccessGrants" SET "Levels" = $2, "ExpiresAt" = $3, "UpdatedAt" = $4
		WHERE "Id" = $1`

	res, err := d.conn.Exec(ctx, query, id, blob, expiresAt, updatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to update AccessGrants table for %s", id)
	}

	if cnt := res.RowsAffected(); cnt != 1 {
		return errors.Newf("failed to find grant %s", id)
	}

	return nil
}

// SetGrantSuspended sets or clears the grant suspension
func (d *Driver) SetGrantSuspended(ctx context.Context, id uuid.UUID, suspendedAt *time.Time, updatedAt time.Time) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.SetGrantSuspended()")
	defer span.End()

	query := `
		UPDATE "AccessGrants" SET "SuspendedAt" = $2, "UpdatedAt" = $3
		WHERE "Id" = $1`

	res, err := d.conn.Exec(ctx, query, id, suspendedAt, updatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to update AccessGrants table for %s", id)
	}

	if cnt := res.RowsAffected(); cnt != 1 {
		return errors.Newf("failed to find grant %s", id)
	}

	return nil
}

// DeleteGrant removes the grant from the database
func (d *Driver) DeleteGrant(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.DeleteGrant()")
	defer span.End()

	query := `
		DELETE FROM "AccessGrants"
		WHERE "Id" = $1`

	res, err := d.conn.Exec(ctx, query, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete from AccessGrants table for %s", id)
	}

	if cnt := res.RowsAffected(); cnt != 1 {
		return errors.Newf("failed to find grant %s", id)
	}

	return nil
}
