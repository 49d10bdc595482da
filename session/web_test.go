package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chordline/console/cookie"
	"github.com/chordline/console/devicesig"
	"github.com/chordline/console/identity"
	"github.com/gofrs/uuid"
	"github.com/gorilla/securecookie"
)

func testCookies() *cookie.Client {
	sc := securecookie.New(
		[]byte("0123456789abcdef0123456789abcdef"),
		[]byte("fedcba9876543210fedcba9876543210"),
	)

	return cookie.New(sc, cookie.WithSecure(false))
}

func authCookie(t *testing.T, cookies *cookie.Client, token string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := cookies.SetToken(rec, token); err != nil {
		t.Fatalf("cookie.Client.SetToken() error = %v", err)
	}

	return rec.Result().Cookies()[0]
}

func signedRequest(path string, sig devicesig.Signature, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("User-Agent", sig.UserAgent)
	r.Header.Set(devicesig.FingerprintHeader, sig.Fingerprint)
	r.RemoteAddr = sig.IPAddress + ":50000"
	for _, c := range cookies {
		r.AddCookie(c)
	}

	return r.WithContext(devicesig.NewCtx(r.Context(), sig))
}

func TestWebValidate(t *testing.T) {
	t.Parallel()

	sig := devicesig.Signature{UserAgent: "agent-a", Fingerprint: "fp-a", IPAddress: "10.0.0.1"}

	tests := []struct {
		name        string
		session     func() *Session
		withCookie  bool
		wantStatus  Status
		wantCleared bool
	}{
		{
			name:       "no cookie reads as no session",
			session:    func() *Session { return boundSession(sig) },
			wantStatus: StatusNoSession,
		},
		{
			name:       "valid session flows through and refreshes the cookie",
			session:    func() *Session { return boundSession(sig) },
			withCookie: true,
			wantStatus: StatusValid,
		},
		{
			name: "dead session clears the browser credential",
			session: func() *Session {
				s := boundSession(sig)
				s.RevokedAt = timePtr(time.Now())

				return s
			},
			withCookie:  true,
			wantStatus:  StatusRevoked,
			wantCleared: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stored := tt.session()
			storage := newFakeStorage(stored)
			identities := &fakeIdentities{users: map[uuid.UUID]*identity.Eligibility{testUserID: eligibleUser(identity.RoleUser)}}
			cookies := testCookies()
			web := NewWeb(NewManager(storage, identities, &fakeSink{}), cookies)

			var got Validation
			next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = FromRequest(r)
			})

			var reqCookies []*http.Cookie
			if tt.withCookie {
				reqCookies = append(reqCookies, authCookie(t, cookies, stored.Token))
			}

			rec := httptest.NewRecorder()
			web.Validate(next).ServeHTTP(rec, signedRequest("/", sig, reqCookies...))

			if got.Status != tt.wantStatus {
				t.Errorf("validation status = %v, want %v", got.Status, tt.wantStatus)
			}

			var cleared, refreshed bool
			for _, c := range rec.Result().Cookies() {
				if c.MaxAge < 0 {
					cleared = true
				} else if c.Value != "" {
					refreshed = true
				}
			}
			if cleared != tt.wantCleared {
				t.Errorf("cookie cleared = %v, want %v", cleared, tt.wantCleared)
			}
			if tt.wantStatus == StatusValid && !refreshed {
				t.Error("valid session did not refresh the cookie")
			}
		})
	}
}

func TestWebLogout(t *testing.T) {
	t.Parallel()

	sig := devicesig.Signature{UserAgent: "agent-a", Fingerprint: "fp-a", IPAddress: "10.0.0.1"}
	stored := boundSession(sig)
	storage := newFakeStorage(stored)
	sink := &fakeSink{}
	cookies := testCookies()
	web := NewWeb(NewManager(storage, &fakeIdentities{}, sink), cookies)

	rec := httptest.NewRecorder()
	web.Logout().ServeHTTP(rec, signedRequest("/auth/logout", sig, authCookie(t, cookies, stored.Token)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	persisted := storage.sessions[stored.Token]
	if persisted.RevokedAt == nil {
		t.Fatal("session was not revoked")
	}
	if persisted.Metadata.Revocation == nil || persisted.Metadata.Revocation.Reason != ReasonUserLogout {
		t.Errorf("revocation = %+v, want reason %s", persisted.Metadata.Revocation, ReasonUserLogout)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("auth cookie was not cleared")
	}
}

func TestWebAuthenticated(t *testing.T) {
	t.Parallel()

	web := NewWeb(NewManager(newFakeStorage(), &fakeIdentities{}, &fakeSink{}), testCookies())

	tests := []struct {
		name          string
		validation    Validation
		authenticated bool
		userID        string
	}{
		{
			name:       "no session",
			validation: Validation{Status: StatusNoSession},
		},
		{
			name: "valid session",
			validation: Validation{
				Status:  StatusValid,
				Session: &Session{Token: "tok-1", UserID: testUserID},
			},
			authenticated: true,
			userID:        testUserID.String(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
			r = r.WithContext(NewCtx(r.Context(), tt.validation))

			rec := httptest.NewRecorder()
			web.Authenticated().ServeHTTP(rec, r)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}

			var got struct {
				Authenticated bool   `json:"authenticated"`
				UserID        string `json:"userId"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("json.Unmarshal(%s) error = %v", rec.Body.String(), err)
			}
			if got.Authenticated != tt.authenticated || got.UserID != tt.userID {
				t.Errorf("response = %+v, want authenticated=%v userId=%q", got, tt.authenticated, tt.userID)
			}
		})
	}
}
