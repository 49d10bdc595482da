package postgres

import (
	"context"
	"time"

	"github.com/chordline/console/identity"
	"github.com/cccteam/httpio"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
)

type userRow struct {
	ID          uuid.UUID  `db:"Id"`
	Role        string     `db:"Role"`
	VerifiedAt  *time.Time `db:"VerifiedAt"`
	ApprovedAt  *time.Time `db:"ApprovedAt"`
	SuspendedAt *time.Time `db:"SuspendedAt"`
}

// Eligibility returns the eligibility snapshot for the given user
func (d *Driver) Eligibility(ctx context.Context, userID uuid.UUID) (*identity.Eligibility, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.Eligibility()")
	defer span.End()

	query := `
		SELECT
			"Id", "Role", "VerifiedAt", "ApprovedAt", "SuspendedAt"
		FROM "Users"
		WHERE "Id" = $1
	`

	row := &userRow{}
	if err := pgxscan.Get(ctx, d.conn, row, query, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpio.NewNotFoundMessagef("user %s not found in database", userID)
		}

		return nil, errors.Wrapf(err, "failed to scan row for user %s", userID)
	}

	return &identity.Eligibility{
		UserID:      row.ID,
		Role:        identity.Role(row.Role),
		VerifiedAt:  row.VerifiedAt,
		ApprovedAt:  row.ApprovedAt,
		SuspendedAt: row.SuspendedAt,
	}, nil
}
