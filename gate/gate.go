// Package gate is the request-time authorization decision point. Every
// inbound path is matched against an explicit longest-prefix route matrix;
// a path with no matching entry is denied. Denial of a caller whose
// authorization state is inconsistent (grant-bearing role without a live
// grant) revokes the session rather than merely refusing the request.
package gate

import (
	"strings"

	"github.com/chordline/console/access"
	"github.com/chordline/console/identity"
	"github.com/chordline/console/session"
)

const name = "github.com/chordline/console/gate"

// CapabilitySet is the caller's authorization state, computed once per
// request and immutable afterwards.
type CapabilitySet struct {
	role  identity.Role
	grant *access.Grant
}

// ComputeCapabilities derives the capability set from the caller's role and
// grant. The grant may be nil; privileged roles never consult it.
func ComputeCapabilities(role identity.Role, grant *access.Grant) CapabilitySet {
	return CapabilitySet{role: role, grant: grant}
}

// Role returns the caller's role.
func (c CapabilitySet) Role() identity.Role {
	return c.role
}

// Privileged reports whether the caller bypasses grant checks.
func (c CapabilitySet) Privileged() bool {
	return c.role.Privileged()
}

// Holds reports whether the caller holds the capability level, either by
// privileged role or through a live grant.
func (c CapabilitySet) Holds(category access.Category, level access.Level) bool {
	if c.Privileged() {
		return true
	}

	return c.grant.Holds(category, level)
}

// DecisionKind discriminates Decision.
type DecisionKind int

const (
	KindAllow DecisionKind = iota
	KindRedirect
	KindDenyAndRevoke
)

// Decision is the outcome of authorizing one request.
type Decision struct {
	Kind     DecisionKind
	Redirect string
	Reason   session.RevokeReason
}

// Allow admits the request.
func Allow() Decision {
	return Decision{Kind: KindAllow}
}

// RedirectTo refuses the request and names the path the caller is sent to.
func RedirectTo(path string) Decision {
	return Decision{Kind: KindRedirect, Redirect: path}
}

// DenyAndRevoke refuses the request and terminates the caller's session
// with the given reason before redirecting to login.
func DenyAndRevoke(reason session.RevokeReason) Decision {
	return Decision{Kind: KindDenyAndRevoke, Redirect: LoginPath, Reason: reason}
}

// predicate is a route-entry requirement evaluated against the caller's
// capability set.
type predicate func(CapabilitySet) bool

func requires(category access.Category, level access.Level) predicate {
	return func(c CapabilitySet) bool {
		return c.Holds(category, level)
	}
}

func privilegedOnly() predicate {
	return func(c CapabilitySet) bool {
		return c.Privileged()
	}
}

func roleIn(roles ...identity.Role) predicate {
	return func(c CapabilitySet) bool {
		for _, role := range roles {
			if c.role == role {
				return true
			}
		}

		return false
	}
}

// anyOf ORs child predicates; composite sections are reachable iff at least
// one child capability is held, so navigation and access state agree.
func anyOf(preds ...predicate) predicate {
	return func(c CapabilitySet) bool {
		for _, p := range preds {
			if p(c) {
				return true
			}
		}

		return false
	}
}

// rule binds a path prefix to its required predicate.
type rule struct {
	prefix string
	pred   predicate
}

// Matrix is the route-to-capability table. Lookup is longest-prefix on
// segment boundaries; absence of a match denies.
type Matrix struct {
	rules []rule
}

// match returns the longest-prefix rule covering the path.
func (m *Matrix) match(path string) (rule, bool) {
	var best rule
	found := false
	for _, r := range m.rules {
		if !prefixMatches(path, r.prefix) {
			continue
		}
		if !found || len(r.prefix) > len(best.prefix) {
			best = r
			found = true
		}
	}

	return best, found
}

// prefixMatches reports whether prefix covers path on a segment boundary.
// The root prefix covers only the root itself; an unlisted path must not
// inherit the baseline rule.
func prefixMatches(path, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}

	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Authorize decides one request. The evaluation order is fixed: session
// state first, then grant liveness for grant-bearing roles, then the route
// matrix. Later steps never run once an earlier one has decided.
func (m *Matrix) Authorize(path string, v session.Validation, caps CapabilitySet) Decision {
	if !v.Valid() {
		if isAuthPath(path) {
			return Allow()
		}

		return RedirectTo(LoginPath)
	}

	// No re-login while already authenticated. Other auth endpoints
	// (session check, logout) serve both states.
	if prefixMatches(path, LoginPath) {
		return RedirectTo(HomePath)
	}
	if isAuthPath(path) {
		return Allow()
	}

	// A caller claiming grant-bearing status with no live grant has a
	// stale authorization state; the session is terminated, not merely
	// refused.
	if caps.role == identity.RoleSystem {
		switch {
		case caps.grant == nil:
			return DenyAndRevoke(session.ReasonGrantMissing)
		case caps.grant.SuspendedAt != nil:
			return DenyAndRevoke(session.ReasonGrantSuspended)
		case !caps.grant.Live():
			return DenyAndRevoke(session.ReasonGrantExpired)
		}
	}

	matched, ok := m.match(path)
	if ok && matched.pred(caps) {
		return Allow()
	}

	return m.forbidden(path, caps)
}

// forbidden redirects to the nearest reachable parent section rather than
// serving an opaque 403, so the caller lands somewhere navigation already
// shows them.
func (m *Matrix) forbidden(path string, caps CapabilitySet) Decision {
	for parent := parentPath(path); ; parent = parentPath(parent) {
		if r, ok := m.match(parent); ok && r.pred(caps) {
			return RedirectTo(parent)
		}
		if parent == "/" {
			break
		}
	}

	// Nothing above the path is reachable either. Fall back to the role's
	// landing page, and to login when even that is closed; never redirect
	// to the path that was just refused.
	for _, landing := range []string{SystemPath, HomePath} {
		if landing == path {
			continue
		}
		if r, ok := m.match(landing); ok && r.pred(caps) {
			return RedirectTo(landing)
		}
	}

	return RedirectTo(LoginPath)
}

func parentPath(path string) string {
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}

	return path[:i]
}

func isAuthPath(path string) bool {
	return prefixMatches(path, AuthPathPrefix)
}
