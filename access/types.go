// Package access implements the hierarchical permission model: resource
// categories, their ordered capability levels, and per-user grants.
package access

import (
	"time"

	"github.com/gofrs/uuid"
)

// Category is a resource category gated by the permission model.
type Category string

const (
	Users             Category = "users"
	WorkspaceAccounts Category = "workspaceAccounts"
	Reporting         Category = "reporting"
	Releases          Category = "releases"
	Tracks            Category = "tracks"
	Videos            Category = "videos"
	Ringtones         Category = "ringtones"
	Artists           Category = "artists"
	Performers        Category = "performers"
	Studio            Category = "studio"
	Writers           Category = "writers"
	Publishers        Category = "publishers"
	Labels            Category = "labels"
	Transactions      Category = "transactions"
	Withdrawals       Category = "withdrawals"
	Consumption       Category = "consumption"
	Engagement        Category = "engagement"
	Revenue           Category = "revenue"
	Geo               Category = "geo"
	Rights            Category = "rights"
)

// Level is a capability level within a category. Levels are ordered; holding
// a level implies holding every lower one in the same category.
type Level string

const (
	View    Level = "VIEW"
	Approve Level = "APPROVE"
	Status  Level = "STATUS"
	Create  Level = "CREATE"
	Update  Level = "UPDATE"
	Delete  Level = "DELETE"
)

// fullLadder is the complete ordered level list for categories exposing the
// whole editing surface.
var fullLadder = []Level{View, Approve, Status, Create, Update, Delete}

// viewOnly is the ladder for read-only analytics categories.
var viewOnly = []Level{View}

var crudLadder = []Level{View, Create, Update, Delete}

// ladders fixes the ordered level list per category. A category absent from
// this table defines no levels and can never be held.
var ladders = map[Category][]Level{
	Users:             crudLadder,
	WorkspaceAccounts: crudLadder,
	Reporting:         fullLadder,
	Releases:          fullLadder,
	Tracks:            fullLadder,
	Videos:            fullLadder,
	Ringtones:         fullLadder,
	Artists:           crudLadder,
	Performers:        crudLadder,
	Studio:            crudLadder,
	Writers:           crudLadder,
	Publishers:        crudLadder,
	Labels:            crudLadder,
	Transactions:      {View, Approve, Status},
	Withdrawals:       {View, Approve, Status},
	Consumption:       viewOnly,
	Engagement:        viewOnly,
	Revenue:           viewOnly,
	Geo:               viewOnly,
	Rights:            crudLadder,
}

// Categories returns every category known to the model.
func Categories() []Category {
	cats := make([]Category, 0, len(ladders))
	for c := range ladders {
		cats = append(cats, c)
	}

	return cats
}

// LevelsFor returns the ordered level list for a category. The returned
// slice must not be mutated.
func LevelsFor(category Category) []Level {
	return ladders[category]
}

// Grant is a per-user authorization record. Level sets are stored
// cascade-normalized: for every category the held set is a prefix of the
// category's ordered ladder.
type Grant struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	AssignedBy  uuid.UUID
	Levels      map[Category][]Level
	ExpiresAt   time.Time
	SuspendedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
