package gate

import (
	"testing"
	"time"

	"github.com/chordline/console/access"
	"github.com/chordline/console/identity"
	"github.com/chordline/console/session"
)

func validValidation(role identity.Role) session.Validation {
	return session.Validation{
		Status:      session.StatusValid,
		Session:     &session.Session{Token: "tok-1"},
		Eligibility: &identity.Eligibility{Role: role},
	}
}

func liveGrant(levels map[access.Category][]access.Level) *access.Grant {
	return &access.Grant{
		Levels:    levels,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func reportingGrant() *access.Grant {
	return liveGrant(map[access.Category][]access.Level{
		access.Reporting: {access.View, access.Approve, access.Status, access.Create},
	})
}

func TestMatrixAuthorize_SessionStates(t *testing.T) {
	t.Parallel()

	m := DefaultMatrix()

	tests := []struct {
		name       string
		path       string
		validation session.Validation
		caps       CapabilitySet
		want       Decision
	}{
		{
			name:       "no session is sent to login",
			path:       "/system/catalog/releases",
			validation: session.Validation{Status: session.StatusNoSession},
			want:       RedirectTo(LoginPath),
		},
		{
			name:       "revoked session is sent to login",
			path:       "/",
			validation: session.Validation{Status: session.StatusRevoked},
			want:       RedirectTo(LoginPath),
		},
		{
			name:       "no session may reach the login page",
			path:       LoginPath,
			validation: session.Validation{Status: session.StatusNoSession},
			want:       Allow(),
		},
		{
			name:       "no session may reach other auth endpoints",
			path:       "/auth/session",
			validation: session.Validation{Status: session.StatusNoSession},
			want:       Allow(),
		},
		{
			name:       "authenticated caller is bounced off the login page",
			path:       LoginPath,
			validation: validValidation(identity.RoleUser),
			caps:       ComputeCapabilities(identity.RoleUser, nil),
			want:       RedirectTo(HomePath),
		},
		{
			name:       "authenticated caller may still log out",
			path:       "/auth/logout",
			validation: validValidation(identity.RoleUser),
			caps:       ComputeCapabilities(identity.RoleUser, nil),
			want:       Allow(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := m.Authorize(tt.path, tt.validation, tt.caps); got != tt.want {
				t.Errorf("Matrix.Authorize(%s) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

// A grant-bearing caller without a live grant does not get a plain refusal;
// the session is terminated with the precise reason.
func TestMatrixAuthorize_GrantLiveness(t *testing.T) {
	t.Parallel()

	m := DefaultMatrix()
	v := validValidation(identity.RoleSystem)

	tests := []struct {
		name  string
		grant *access.Grant
		want  Decision
	}{
		{
			name:  "missing grant",
			grant: nil,
			want:  DenyAndRevoke(session.ReasonGrantMissing),
		},
		{
			name: "suspended grant",
			grant: func() *access.Grant {
				g := reportingGrant()
				now := time.Now()
				g.SuspendedAt = &now

				return g
			}(),
			want: DenyAndRevoke(session.ReasonGrantSuspended),
		},
		{
			name: "expired grant",
			grant: func() *access.Grant {
				g := reportingGrant()
				g.ExpiresAt = time.Now().Add(-time.Minute)

				return g
			}(),
			want: DenyAndRevoke(session.ReasonGrantExpired),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			caps := ComputeCapabilities(identity.RoleSystem, tt.grant)
			if got := m.Authorize("/system/administration/reporting", v, caps); got != tt.want {
				t.Errorf("Matrix.Authorize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMatrixAuthorize_Routes(t *testing.T) {
	t.Parallel()

	m := DefaultMatrix()

	tests := []struct {
		name string
		path string
		caps CapabilitySet
		want Decision
	}{
		{
			name: "owner reaches everything",
			path: "/system/administration/accesses",
			caps: ComputeCapabilities(identity.RoleOwner, nil),
			want: Allow(),
		},
		{
			name: "admin reaches grant administration",
			path: "/system/administration/accesses",
			caps: ComputeCapabilities(identity.RoleAdmin, nil),
			want: Allow(),
		},
		{
			name: "grant-bearing caller never reaches grant administration",
			path: "/system/administration/accesses",
			caps: ComputeCapabilities(identity.RoleSystem, reportingGrant()),
			want: RedirectTo("/system/administration"),
		},
		{
			name: "create level opens the upload alias",
			path: "/system/administration/reporting/upload",
			caps: ComputeCapabilities(identity.RoleSystem, reportingGrant()),
			want: Allow(),
		},
		{
			name: "held section is reachable",
			path: "/system/administration/reporting",
			caps: ComputeCapabilities(identity.RoleSystem, reportingGrant()),
			want: Allow(),
		},
		{
			name: "level above the held prefix redirects to the section",
			path: "/system/administration/reporting/delete",
			caps: ComputeCapabilities(identity.RoleSystem, reportingGrant()),
			want: RedirectTo("/system/administration/reporting"),
		},
		{
			name: "unheld sibling section redirects to the nearest reachable parent",
			path: "/system/administration/users",
			caps: ComputeCapabilities(identity.RoleSystem, reportingGrant()),
			want: RedirectTo("/system/administration"),
		},
		{
			name: "unheld section tree redirects to the system shell",
			path: "/system/catalog/releases",
			caps: ComputeCapabilities(identity.RoleSystem, reportingGrant()),
			want: RedirectTo(SystemPath),
		},
		{
			name: "baseline dashboard admits plain users",
			path: "/",
			caps: ComputeCapabilities(identity.RoleUser, nil),
			want: Allow(),
		},
		{
			name: "plain user is bounced off the system shell",
			path: SystemPath,
			caps: ComputeCapabilities(identity.RoleUser, nil),
			want: RedirectTo(HomePath),
		},
		{
			name: "grant-bearing caller is sent to the system shell from the dashboard",
			path: "/",
			caps: ComputeCapabilities(identity.RoleSystem, reportingGrant()),
			want: RedirectTo(SystemPath),
		},
		{
			name: "live grant opening no section bottoms out at login",
			path: SystemPath,
			caps: ComputeCapabilities(identity.RoleSystem, liveGrant(nil)),
			want: RedirectTo(LoginPath),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			role := tt.caps.Role()
			if got := m.Authorize(tt.path, validValidation(role), tt.caps); got != tt.want {
				t.Errorf("Matrix.Authorize(%s) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

// No path outside the matrix is ever admitted, whatever the caller holds
// short of a privileged role.
func TestMatrixAuthorize_FailClosed(t *testing.T) {
	t.Parallel()

	m := DefaultMatrix()
	paths := []string{
		"/admin",
		"/api/internal",
		"/dashboard",
		"/systemshadow",
	}
	capSets := map[string]CapabilitySet{
		"plain user":    ComputeCapabilities(identity.RoleUser, nil),
		"grant-bearing": ComputeCapabilities(identity.RoleSystem, reportingGrant()),
		"fully granted": ComputeCapabilities(identity.RoleSystem, liveGrant(func() map[access.Category][]access.Level {
			levels := make(map[access.Category][]access.Level)
			for _, c := range access.Categories() {
				levels[c] = access.LevelsFor(c)
			}

			return levels
		}())),
	}

	for capName, caps := range capSets {
		for _, path := range paths {
			got := m.Authorize(path, validValidation(caps.Role()), caps)
			if got.Kind == KindAllow {
				t.Errorf("Matrix.Authorize(%s) admitted a %s caller to an unlisted path", path, capName)
			}
		}
	}
}

func TestPrefixMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		prefix string
		want   bool
	}{
		{path: "/system", prefix: "/system", want: true},
		{path: "/system/catalog", prefix: "/system", want: true},
		{path: "/systemshadow", prefix: "/system", want: false},
		{path: "/system", prefix: "/system/catalog", want: false},
		{path: "/", prefix: "/", want: true},
		{path: "/anything", prefix: "/", want: false},
	}
	for _, tt := range tests {
		if got := prefixMatches(tt.path, tt.prefix); got != tt.want {
			t.Errorf("prefixMatches(%q, %q) = %v, want %v", tt.path, tt.prefix, got, tt.want)
		}
	}
}
