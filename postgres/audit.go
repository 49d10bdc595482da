package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chordline/console/audit"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
)

// Emit appends the event to the "AuditEvents" table. Rows are insert-only;
// nothing in this codebase updates or deletes them.
func (d *Driver) Emit(ctx context.Context, event audit.Event) error {
	ctx, span := otel.Tracer(name).Start(ctx, "Driver.Emit()")
	defer span.End()

	id, err := uuid.NewV4()
	if err != nil {
		return errors.Wrap(err, "uuid.NewV4()")
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return errors.Wrap(err, "json.Marshal()")
		}
	}

	query := `
		INSERT INTO "AuditEvents"
			("Id", "Action", "EntityType", "EntityId", "Description", "Metadata", "ActingUserId", "CreatedAt")
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		`

	if _, err := d.conn.Exec(ctx, query, id, string(event.Action), event.EntityType, event.EntityID, event.Description, metadata, event.ActingUserID, time.Now()); err != nil {
		return errors.Wrap(err, "failed to insert into table AuditEvents")
	}

	return nil
}
