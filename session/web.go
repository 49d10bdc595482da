package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/chordline/console/cookie"
	"github.com/chordline/console/devicesig"
	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
)

// ctxKey is a type for storing values in the request context
type ctxKey string

const ctxValidation ctxKey = "sessionValidation"

// LogHandler defines the handler signature required for handling logs.
type LogHandler func(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc

// Handle returns a handler that logs any error coming from our custom handlers
func Handle(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := handler(w, r); err != nil {
			if httpio.CauseIsError(err) {
				logger.Req(r).Error(err)
			} else {
				logger.Req(r).Infof("['%s']", strings.Join(httpio.Messages(err), "', '"))
			}
		}
	})
}

// Web adapts the Manager to the HTTP layer: it reads the bearer cookie,
// validates the session against the request's device signature, and keeps
// the cookie's lifetime slid alongside the session's.
type Web struct {
	manager *Manager
	cookies *cookie.Client
	handle  LogHandler
}

// WebOption configures Web.
type WebOption func(*Web)

// WithLogHandler sets the LogHandler. (default: session.Handle)
func WithLogHandler(l LogHandler) WebOption {
	return func(w *Web) {
		w.handle = l
	}
}

func NewWeb(manager *Manager, cookies *cookie.Client, options ...WebOption) *Web {
	w := &Web{
		manager: manager,
		cookies: cookies,
		handle:  Handle,
	}
	for _, opt := range options {
		opt(w)
	}

	return w
}

// Validate loads and validates the session named by the auth cookie and
// stores the Validation in the request context. It never redirects; route
// decisions belong to the gate. A dead credential is cleared here so the
// browser stops presenting it.
func (s *Web) Validate(next http.Handler) http.Handler {
	return s.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Web.Validate()")
		defer span.End()

		token, ok := s.cookies.ReadToken(r)
		if !ok {
			next.ServeHTTP(w, r.WithContext(NewCtx(ctx, Validation{Status: StatusNoSession})))

			return nil
		}

		validation, err := s.manager.Validate(ctx, token, devicesig.FromRequest(r))
		if err != nil {
			// Store failure: fail closed, surface as retriable.
			return httpio.NewEncoder(w).ClientMessage(ctx, httpio.NewInternalServerErrorMessageWithError(err, "session store unavailable"))
		}

		switch validation.Status {
		case StatusValid:
			if err := s.cookies.Refresh(w, token); err != nil {
				return httpio.NewEncoder(w).ClientMessage(ctx, err)
			}

			// Add user to logging context
			l := logger.Req(r).AddRequestAttribute("user ID", validation.Session.UserID).
				WithAttributes().AddAttribute("user ID", validation.Session.UserID).Logger()
			ctx = logger.NewCtx(ctx, l)
		case StatusNoSession:
		default:
			s.cookies.Clear(w)
		}

		next.ServeHTTP(w, r.WithContext(NewCtx(ctx, validation)))

		return nil
	})
}

// Issue creates a session for a freshly authenticated user and sets the
// bearer cookie. The login flow (credential verification) calls this after
// it has done its own work.
func (s *Web) Issue(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*Session, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "Web.Issue()")
	defer span.End()

	session, err := s.manager.Create(ctx, userID, devicesig.FromRequest(r))
	if err != nil {
		return nil, err
	}

	if err := s.cookies.SetToken(w, session.Token); err != nil {
		return nil, err
	}

	return session, nil
}

// Authenticated is the handler that reports if the session is authenticated
func (s *Web) Authenticated() http.HandlerFunc {
	type response struct {
		Authenticated bool   `json:"authenticated"`
		UserID        string `json:"userId,omitempty"`
	}

	return s.handle(func(w http.ResponseWriter, r *http.Request) error {
		_, span := otel.Tracer(name).Start(r.Context(), "Web.Authenticated()")
		defer span.End()

		validation := FromRequest(r)
		if !validation.Valid() {
			return httpio.NewEncoder(w).Ok(response{})
		}

		return httpio.NewEncoder(w).Ok(response{
			Authenticated: true,
			UserID:        validation.Session.UserID.String(),
		})
	})
}

// Logout is a handler which destroys the current session
func (s *Web) Logout() http.HandlerFunc {
	return s.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Web.Logout()")
		defer span.End()

		if token, ok := s.cookies.ReadToken(r); ok {
			if err := s.manager.Logout(ctx, token, devicesig.FromRequest(r)); err != nil {
				return httpio.NewEncoder(w).ClientMessage(ctx, err)
			}
		}
		s.cookies.Clear(w)

		return httpio.NewEncoder(w).Ok(nil)
	})
}

// Manager returns the underlying lifecycle manager for collaborators that
// need to revoke directly (the authorization gate).
func (s *Web) Manager() *Manager {
	return s.manager
}

// Cookies returns the bearer-credential client.
func (s *Web) Cookies() *cookie.Client {
	return s.cookies
}

// NewCtx returns a context carrying the session validation.
func NewCtx(ctx context.Context, v Validation) context.Context {
	return context.WithValue(ctx, ctxValidation, v)
}

// FromRequest returns the session validation from the request context.
func FromRequest(r *http.Request) Validation {
	return FromCtx(r.Context())
}

// FromCtx returns the session validation from the context. A request that
// never passed through Web.Validate reads as having no session.
func FromCtx(ctx context.Context) Validation {
	v, ok := ctx.Value(ctxValidation).(Validation)
	if !ok {
		return Validation{Status: StatusNoSession}
	}

	return v
}
