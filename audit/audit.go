// Package audit defines the append-only security event log this core emits
// into. Sinks must never mutate or drop events once accepted.
package audit

import (
	"context"

	"github.com/cccteam/logger"
	"github.com/gofrs/uuid"
)

// Action identifies a security-relevant event type.
type Action string

const (
	SessionCreated    Action = "SESSION_CREATED"
	SessionRevoked    Action = "SESSION_REVOKED"
	AccessCreated     Action = "ACCESS_CREATED"
	AccessUpdated     Action = "ACCESS_UPDATED"
	AccessSuspended   Action = "ACCESS_SUSPENDED"
	AccessUnsuspended Action = "ACCESS_UNSUSPENDED"
	AccessDeleted     Action = "ACCESS_DELETED"
)

// Event is a single audit record.
type Event struct {
	Action       Action
	EntityType   string
	EntityID     string
	Description  string
	Metadata     map[string]string
	ActingUserID uuid.UUID
}

// Sink accepts audit events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Emit sends the event to the sink, logging instead of failing the caller
// when the sink is unavailable. Denials and revocations must still be
// decided correctly even when they cannot be recorded.
func Emit(ctx context.Context, sink Sink, event Event) {
	if err := sink.Emit(ctx, event); err != nil {
		logger.Ctx(ctx).Errorf("audit sink rejected %s for %s %s: %v", event.Action, event.EntityType, event.EntityID, err)
	}
}
