// Command console runs the operations dashboard service: every request
// passes through device-signature resolution, session validation, and the
// authorization gate before reaching a page or API handler.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/chordline/console/access"
	"github.com/chordline/console/cookie"
	"github.com/chordline/console/devicesig"
	"github.com/chordline/console/gate"
	"github.com/chordline/console/internal/config"
	"github.com/chordline/console/postgres"
	"github.com/chordline/console/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/errors/v5"
	"github.com/gorilla/securecookie"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config.Load()")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "pgxpool.New()")
	}
	defer pool.Close()

	hashKey, err := base64.StdEncoding.DecodeString(cfg.CookieHashKey)
	if err != nil {
		return errors.Wrap(err, "decoding COOKIE_HASH_KEY")
	}
	var blockKey []byte
	if cfg.CookieBlockKey != "" {
		if blockKey, err = base64.StdEncoding.DecodeString(cfg.CookieBlockKey); err != nil {
			return errors.Wrap(err, "decoding COOKIE_BLOCK_KEY")
		}
	}

	driver := postgres.NewDriver(pool)

	manager := session.NewManager(driver, driver, driver,
		session.WithLifetime(cfg.SessionLifetime),
		session.WithStorageTimeout(cfg.StorageTimeout),
	)
	cookies := cookie.New(securecookie.New(hashKey, blockKey),
		cookie.WithLifetime(cfg.SessionLifetime),
		cookie.WithSecure(cfg.SecureCookies()),
	)
	web := session.NewWeb(manager, cookies)
	authz := gate.New(web, driver, gate.WithStorageTimeout(cfg.StorageTimeout))
	grants := access.NewHandlers(access.NewEditor(driver, driver, driver))

	r := chi.NewRouter()
	r.Use(devicesig.Middleware(devicesig.HTTPResolver{}))
	r.Use(web.Validate)
	r.Use(authz.Authorize)

	r.Get("/auth/session", web.Authenticated())
	r.Post("/auth/logout", web.Logout())

	r.Route("/system/administration/accesses", func(r chi.Router) {
		r.Post("/create", grants.CreateGrant())
		r.Post("/{grantId}/edit", grants.UpdateGrant())
		r.Post("/{grantId}/suspend", grants.SuspendGrant())
		r.Post("/{grantId}/unsuspend", grants.UnsuspendGrant())
		r.Post("/{grantId}/delete", grants.DeleteGrant())
	})

	// Remaining page and admin-CRUD handlers (user management, reporting
	// upload, the dashboard screens) mount here behind the same gate.

	return http.ListenAndServe(cfg.HTTPAddr, r)
}
