// Package postgres implements the storage driver for sessions, access
// grants, audit events, and user eligibility reads.
package postgres

import (
	"context"

	"github.com/chordline/console/access"
	"github.com/chordline/console/audit"
	"github.com/chordline/console/identity"
	"github.com/chordline/console/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const name = "github.com/chordline/console/postgres"

type Queryer interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
}

// Driver is the PostgreSQL storage driver. It is the single source of truth
// shared across concurrent requests; all mutation is by primary key.
type Driver struct {
	conn Queryer
}

var (
	_ session.Storage = (*Driver)(nil)
	_ access.Storage  = (*Driver)(nil)
	_ audit.Sink      = (*Driver)(nil)
	_ identity.Store  = (*Driver)(nil)
)

// NewDriver creates a new Driver
func NewDriver(conn Queryer) *Driver {
	return &Driver{
		conn: conn,
	}
}
