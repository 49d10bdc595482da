package access

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chordline/console/session"
	"github.com/cccteam/httpio"
	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
)

// RouterGrantID is the URL parameter naming the grant being edited.
const RouterGrantID httpio.ParamType = "grantId"

// Handlers is the access-grant editing surface. The gate restricts these
// routes to privileged callers before they run; the Editor re-checks the
// assigner on every mutation regardless.
type Handlers struct {
	editor *Editor
	handle session.LogHandler
}

func NewHandlers(editor *Editor, options ...HandlersOption) *Handlers {
	h := &Handlers{
		editor: editor,
		handle: session.Handle,
	}
	for _, opt := range options {
		opt(h)
	}

	return h
}

// HandlersOption configures Handlers.
type HandlersOption func(*Handlers)

// WithLogHandler sets the LogHandler. (default: session.Handle)
func WithLogHandler(l session.LogHandler) HandlersOption {
	return func(h *Handlers) {
		h.handle = l
	}
}

type grantRequest struct {
	UserID    uuid.UUID           `json:"userId"`
	Levels    map[Category][]Level `json:"levels"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// CreateGrant handles creating a grant for a subject user.
func (h *Handlers) CreateGrant() http.HandlerFunc {
	type response struct {
		ID uuid.UUID `json:"id"`
	}

	return h.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Handlers.CreateGrant()")
		defer span.End()

		req := &grantRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			return httpio.NewEncoder(w).BadRequestMessage(ctx, "invalid request body")
		}

		grant, err := h.editor.CreateGrant(ctx, actingUserID(r), req.UserID, req.Levels, req.ExpiresAt)
		if err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return httpio.NewEncoder(w).Ok(response{ID: grant.ID})
	})
}

// UpdateGrant handles replacing a grant's level sets and expiry.
func (h *Handlers) UpdateGrant() http.HandlerFunc {
	return h.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Handlers.UpdateGrant()")
		defer span.End()

		req := &grantRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			return httpio.NewEncoder(w).BadRequestMessage(ctx, "invalid request body")
		}

		grantID := httpio.Param[uuid.UUID](r, RouterGrantID)
		if err := h.editor.UpdateGrant(ctx, actingUserID(r), grantID, req.Levels, req.ExpiresAt); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return httpio.NewEncoder(w).Ok(nil)
	})
}

// SuspendGrant handles suspending a grant.
func (h *Handlers) SuspendGrant() http.HandlerFunc {
	return h.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Handlers.SuspendGrant()")
		defer span.End()

		grantID := httpio.Param[uuid.UUID](r, RouterGrantID)
		if err := h.editor.Suspend(ctx, actingUserID(r), grantID); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return httpio.NewEncoder(w).Ok(nil)
	})
}

// UnsuspendGrant handles lifting a grant suspension.
func (h *Handlers) UnsuspendGrant() http.HandlerFunc {
	return h.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Handlers.UnsuspendGrant()")
		defer span.End()

		grantID := httpio.Param[uuid.UUID](r, RouterGrantID)
		if err := h.editor.Unsuspend(ctx, actingUserID(r), grantID); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return httpio.NewEncoder(w).Ok(nil)
	})
}

// DeleteGrant handles deleting a grant.
func (h *Handlers) DeleteGrant() http.HandlerFunc {
	return h.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Handlers.DeleteGrant()")
		defer span.End()

		grantID := httpio.Param[uuid.UUID](r, RouterGrantID)
		if err := h.editor.DeleteGrant(ctx, actingUserID(r), grantID); err != nil {
			return httpio.NewEncoder(w).ClientMessage(ctx, err)
		}

		return httpio.NewEncoder(w).Ok(nil)
	})
}

func actingUserID(r *http.Request) uuid.UUID {
	v := session.FromRequest(r)
	if v.Session == nil {
		return uuid.Nil
	}

	return v.Session.UserID
}
