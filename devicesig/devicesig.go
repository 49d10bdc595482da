// Package devicesig resolves the per-request device signature that sessions
// are bound to. The signature is resolved exactly once per request and
// carried in the request context from there on.
package devicesig

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// FingerprintHeader carries the stable device fingerprint computed by the
// client shell. Absence is legal; the fingerprint then binds as the empty
// string.
const FingerprintHeader = "X-Device-Fingerprint"

// Signature is the device identity tuple compared against the value
// captured at session creation.
type Signature struct {
	UserAgent   string
	Fingerprint string
	IPAddress   string
	Raw         map[string]string
}

// Resolver derives a Signature from an incoming request.
type Resolver interface {
	Resolve(r *http.Request) Signature
}

// HTTPResolver resolves signatures from request headers.
type HTTPResolver struct{}

var _ Resolver = HTTPResolver{}

func (HTTPResolver) Resolve(r *http.Request) Signature {
	return Signature{
		UserAgent:   r.UserAgent(),
		Fingerprint: r.Header.Get(FingerprintHeader),
		IPAddress:   clientIP(r),
		Raw: map[string]string{
			"acceptLanguage": r.Header.Get("Accept-Language"),
			"host":           r.Host,
		},
	}
}

// clientIP returns the first forwarded hop when present, falling back to the
// socket peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i > 0 {
			fwd = fwd[:i]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// ctxKey is a type for storing values in the request context
type ctxKey string

const ctxSignature ctxKey = "deviceSignature"

// Middleware resolves the device signature once and stores it in the
// request context for the session and gate layers.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig := resolver.Resolve(r)
			r = r.WithContext(NewCtx(r.Context(), sig))

			next.ServeHTTP(w, r)
		})
	}
}

// NewCtx returns a context carrying the signature.
func NewCtx(ctx context.Context, sig Signature) context.Context {
	return context.WithValue(ctx, ctxSignature, sig)
}

// FromRequest returns the signature resolved for this request. The zero
// Signature is returned if the resolver middleware has not run.
func FromRequest(r *http.Request) Signature {
	return FromCtx(r.Context())
}

// FromCtx returns the signature stored in the context.
func FromCtx(ctx context.Context) Signature {
	sig, _ := ctx.Value(ctxSignature).(Signature)

	return sig
}
