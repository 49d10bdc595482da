package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chordline/console/session"
	"github.com/cccteam/httpio"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
)

// sessionRow mirrors the "Sessions" table.
type sessionRow struct {
	Token       string     `db:"Token"`
	UserID      uuid.UUID  `db:"UserId"`
	UserAgent   string     `db:"UserAgent"`
	Fingerprint string     `db:"Fingerprint"`
	IPAddress   string     `db:"IpAddress"`
	CreatedAt   time.Time  `db:"CreatedAt"`
	AccessedAt  *time.Time `db:"AccessedAt"`
	ExpiresAt   time.Time  `db:"ExpiresAt"`
	RevokedAt   *time.Time `db:"RevokedAt"`
	Metadata    []byte     `db:"Metadata"`
}

// InsertSession inserts the session into the database
func (d *Driver) InsertSession(ctx context.Context, s *session.Session) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.InsertSession()")
	defer span.End()

	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}

	query := `
		INSERT INTO "Sessions"
			("Token", "UserId", "UserAgent", "Fingerprint", "IpAddress", "CreatedAt", "ExpiresAt", "Metadata")
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		`

	if _, err := d.conn.Exec(ctx, query, s.Token, s.UserID, s.UserAgent, s.Fingerprint, s.IPAddress, s.CreatedAt, s.ExpiresAt, metadata); err != nil {
		return errors.Wrap(err, "failed to insert into table Sessions")
	}

	return nil
}

// Session returns the session for the given token
func (d *Driver) Session(ctx context.Context, token string) (*session.Session, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.Session()")
	defer span.End()

	query := `
		SELECT
			"Token", "UserId", "UserAgent", "Fingerprint", "IpAddress", "CreatedAt", "AccessedAt", "ExpiresAt", "RevokedAt", "Metadata"
		FROM "Sessions"
		WHERE "Token" = $1
	`

	row := &sessionRow{}
	if err := pgxscan.Get(ctx, d.conn, row, query, token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpio.NewNotFoundMessage("session not found in database")
		}

		return nil, errors.Wrap(err, "failed to scan row for session")
	}

	s := &session.Session{
		Token:       row.Token,
		UserID:      row.UserID,
		UserAgent:   row.UserAgent,
		Fingerprint: row.Fingerprint,
		IPAddress:   row.IPAddress,
		CreatedAt:   row.CreatedAt,
		AccessedAt:  row.AccessedAt,
		ExpiresAt:   row.ExpiresAt,
		RevokedAt:   row.RevokedAt,
	}
	// Corrupt metadata must not break validation; UnmarshalJSON treats it
	// as absent.
	_ = json.Unmarshal(row.Metadata, &s.Metadata)

	return s, nil
}

// TouchSession applies the sliding-expiration update in a single statement:
// concurrent touches for the same token are last-writer-wins, never torn.
func (d *Driver) TouchSession(ctx context.Context, token, ipAddress string, accessedAt, expiresAt time.Time) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.TouchSession()")
	defer span.End()

	query := `
		UPDATE "Sessions" SET "IpAddress" = $2, "AccessedAt" = $3, "ExpiresAt" = $4
		WHERE "Token" = $1 AND "RevokedAt" IS NULL`

	res, err := d.conn.Exec(ctx, query, token, ipAddress, accessedAt, expiresAt)
	if err != nil {
		return errors.Wrap(err, "failed to update Sessions table")
	}

	if cnt := res.RowsAffected(); cnt != 1 {
		return errors.New("failed to find live session to touch")
	}

	return nil
}

// RevokeSession terminates the session. The guard on "RevokedAt" IS NULL
// makes revocation idempotent and first-writer-wins: a second caller
// affects zero rows and is told the session was already terminal.
func (d *Driver) RevokeSession(ctx context.Context, token string, revokedAt time.Time, metadata session.Metadata) (bool, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.RevokeSession()")
	defer span.End()

	blob, err := json.Marshal(metadata)
	if err != nil {
		return false, errors.Wrap(err, "json.Marshal()")
	}

	query := `
		UPDATE "Sessions" SET "RevokedAt" = $2, "Metadata" = $3
		WHERE "Token" = $1 AND "RevokedAt" IS NULL`

	res, err := d.conn.Exec(ctx, query, token, revokedAt, blob)
	if err != nil {
		return false, errors.Wrap(err, "failed to update Sessions table")
	}

	return res.RowsAffected() == 1, nil
}
