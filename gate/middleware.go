package gate

import (
	"context"
	"net/http"
	"time"

	"github.com/chordline/console/access"
	"github.com/chordline/console/devicesig"
	"github.com/chordline/console/identity"
	"github.com/chordline/console/session"
	"github.com/cccteam/httpio"
	"github.com/cccteam/logger"
	"go.opentelemetry.io/otel"
)

// Gate wires the route matrix into the middleware chain. It runs after
// session validation, fetches the grant for grant-bearing callers, computes
// the capability set once, and enforces the decision.
type Gate struct {
	matrix         *Matrix
	web            *session.Web
	grants         access.Storage
	handle         session.LogHandler
	storageTimeout time.Duration
}

// Option configures a Gate.
type Option func(*Gate)

// WithMatrix overrides the route matrix. (default: DefaultMatrix)
func WithMatrix(m *Matrix) Option {
	return func(g *Gate) {
		g.matrix = m
	}
}

// WithStorageTimeout bounds the grant lookup. (default: 5s)
func WithStorageTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.storageTimeout = d
	}
}

// WithLogHandler sets the LogHandler. (default: session.Handle)
func WithLogHandler(l session.LogHandler) Option {
	return func(g *Gate) {
		g.handle = l
	}
}

func New(web *session.Web, grants access.Storage, options ...Option) *Gate {
	g := &Gate{
		matrix:         DefaultMatrix(),
		web:            web,
		grants:         grants,
		handle:         session.Handle,
		storageTimeout: 5 * time.Second,
	}
	for _, opt := range options {
		opt(g)
	}

	return g
}

// Authorize gates every request behind the route matrix. Web.Validate must
// run earlier in the chain.
func (g *Gate) Authorize(next http.Handler) http.Handler {
	return g.handle(func(w http.ResponseWriter, r *http.Request) error {
		ctx, span := otel.Tracer(name).Start(r.Context(), "Gate.Authorize()")
		defer span.End()

		v := session.FromCtx(ctx)

		caps := ComputeCapabilities("", nil)
		if v.Valid() {
			grant, err := g.grant(r, v)
			if err != nil {
				// Grant store unavailable: fail closed, surface as retriable.
				return httpio.NewEncoder(w).ClientMessage(ctx, httpio.NewInternalServerErrorMessageWithError(err, "authorization store unavailable"))
			}
			caps = ComputeCapabilities(v.Eligibility.Role, grant)
		}

		decision := g.matrix.Authorize(r.URL.Path, v, caps)
		switch decision.Kind {
		case KindAllow:
			next.ServeHTTP(w, r.WithContext(ctx))
		case KindRedirect:
			http.Redirect(w, r, decision.Redirect, http.StatusFound)
		case KindDenyAndRevoke:
			// Denial is never silent: the session ends, with audit, before
			// the caller is redirected.
			if err := g.web.Manager().Revoke(ctx, v.Session.Token, decision.Reason, devicesig.FromRequest(r)); err != nil {
				logger.Ctx(ctx).Error(err)
			}
			g.web.Cookies().Clear(w)
			logger.Ctx(ctx).Infof("request to %s denied and session revoked: %s", r.URL.Path, decision.Reason)
			http.Redirect(w, r, decision.Redirect, http.StatusFound)
		}

		return nil
	})
}

// grant fetches the caller's grant when the role carries one. A missing
// grant is reported as nil; Authorize turns that into a revocation.
func (g *Gate) grant(r *http.Request, v session.Validation) (*access.Grant, error) {
	if v.Eligibility.Role != identity.RoleSystem {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.storageTimeout)
	defer cancel()

	grant, err := g.grants.GrantByUser(ctx, v.Session.UserID)
	if err != nil {
		if httpio.HasNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return grant, nil
}
