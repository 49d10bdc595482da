// Package cookie carries the opaque session token in an encoded,
// tamper-evident browser cookie. The cookie is the bearer credential:
// HttpOnly, SameSite=Strict, Secure outside development, and rewritten on
// every successfully validated request so its lifetime slides with the
// session's.
package cookie

import (
	"net/http"
	"time"

	"github.com/cccteam/logger"
	"github.com/go-playground/errors/v5"
	"github.com/gorilla/securecookie"
)

// scKey is a type for keys within the encoded cookie value
type scKey string

func (k scKey) String() string {
	return string(k)
}

const (
	authCookieName = "auth"

	scToken    scKey = "token"
	scIssuedAt scKey = "issuedAt"
)

// Client encodes and decodes the auth cookie.
type Client struct {
	secureCookie *securecookie.SecureCookie
	cookieName   string
	domain       string
	lifetime     time.Duration
	secure       bool
}

// Option configures a Client.
type Option func(*Client)

// WithCookieName overrides the auth cookie name. (default: auth)
func WithCookieName(name string) Option {
	return func(c *Client) {
		c.cookieName = name
	}
}

// WithDomain sets the cookie domain.
func WithDomain(domain string) Option {
	return func(c *Client) {
		c.domain = domain
	}
}

// WithLifetime sets the cookie lifetime; keep it equal to the session
// lifetime so the browser and the store expire together. (default: 24h)
func WithLifetime(d time.Duration) Option {
	return func(c *Client) {
		c.lifetime = d
	}
}

// WithSecure controls the Secure attribute; disable only for local
// development over plain HTTP. (default: true)
func WithSecure(secure bool) Option {
	return func(c *Client) {
		c.secure = secure
	}
}

func New(secureCookie *securecookie.SecureCookie, options ...Option) *Client {
	c := &Client{
		secureCookie: secureCookie,
		cookieName:   authCookieName,
		lifetime:     24 * time.Hour,
		secure:       true,
	}
	for _, opt := range options {
		opt(c)
	}

	return c
}

// SetToken writes the bearer token into a fresh auth cookie.
func (c *Client) SetToken(w http.ResponseWriter, token string) error {
	cval := map[scKey]string{
		scToken:    token,
		scIssuedAt: time.Now().Format(time.RFC3339),
	}

	encoded, err := c.secureCookie.Encode(c.cookieName, cval)
	if err != nil {
		return errors.Wrap(err, "securecookie.Encode()")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    encoded,
		Path:     "/",
		Domain:   c.domain,
		Expires:  time.Now().Add(c.lifetime),
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	return nil
}

// Refresh rewrites the auth cookie so its expiry slides with the session's.
func (c *Client) Refresh(w http.ResponseWriter, token string) error {
	return c.SetToken(w, token)
}

// ReadToken returns the bearer token from the auth cookie. A missing or
// undecodable cookie reads as no credential.
func (c *Client) ReadToken(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		return "", false
	}

	cval := make(map[scKey]string)
	if err := c.secureCookie.Decode(c.cookieName, cookie.Value, &cval); err != nil {
		logger.Req(r).Error(errors.Wrap(err, "securecookie.Decode()"))

		return "", false
	}

	token, ok := cval[scToken]

	return token, ok && token != ""
}

// Clear expires the auth cookie. Called whenever the session is revoked or
// the caller logs out.
func (c *Client) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
