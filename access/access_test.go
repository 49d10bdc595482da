package access

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		category  Category
		requested []Level
		want      []Level
	}{
		{
			name:      "highest level pulls in the whole prefix",
			category:  Releases,
			requested: []Level{Delete},
			want:      []Level{View, Approve, Status, Create, Update, Delete},
		},
		{
			name:      "sparse set normalizes to the highest member",
			category:  Users,
			requested: []Level{View, Update},
			want:      []Level{View, Create, Update},
		},
		{
			name:      "already normalized set is unchanged",
			category:  Transactions,
			requested: []Level{View, Approve},
			want:      []Level{View, Approve},
		},
		{
			name:      "levels the category does not define are dropped",
			category:  Consumption,
			requested: []Level{View, Delete},
			want:      []Level{View},
		},
		{
			name:      "nothing valid requested yields nil",
			category:  Geo,
			requested: []Level{Create, Update},
			want:      nil,
		},
		{
			name:      "empty request yields nil",
			category:  Rights,
			requested: nil,
			want:      nil,
		},
		{
			name:      "unknown category yields nil",
			category:  Category("billing"),
			requested: []Level{View},
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Normalize(tt.category, tt.requested)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
			if !Normalized(tt.category, got) {
				t.Errorf("Normalize() = %v, not a ladder prefix for %s", got, tt.category)
			}
		})
	}
}

// Normalize must produce a ladder prefix for any subset of any category's
// levels, and normalizing twice must be the same as normalizing once.
func TestNormalize_AnySubset(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	all := []Level{View, Approve, Status, Create, Update, Delete}

	for _, category := range Categories() {
		for range 50 {
			var requested []Level
			for _, l := range all {
				if rng.Intn(2) == 0 {
					requested = append(requested, l)
				}
			}

			got := Normalize(category, requested)
			if !Normalized(category, got) {
				t.Fatalf("Normalize(%s, %v) = %v, not a ladder prefix", category, requested, got)
			}
			if diff := cmp.Diff(got, Normalize(category, got)); diff != "" {
				t.Fatalf("Normalize(%s) is not idempotent (-once +twice):\n%s", category, diff)
			}
		}
	}
}

func TestGrantHolds(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		grant    *Grant
		category Category
		level    Level
		want     bool
	}{
		{
			name:     "nil grant holds nothing",
			grant:    nil,
			category: Releases,
			level:    View,
			want:     false,
		},
		{
			name: "held level",
			grant: &Grant{
				Levels:    map[Category][]Level{Releases: {View, Approve, Status, Create}},
				ExpiresAt: future,
			},
			category: Releases,
			level:    Create,
			want:     true,
		},
		{
			name: "level above the held prefix",
			grant: &Grant{
				Levels:    map[Category][]Level{Releases: {View, Approve, Status, Create}},
				ExpiresAt: future,
			},
			category: Releases,
			level:    Delete,
			want:     false,
		},
		{
			name: "category without an entry",
			grant: &Grant{
				Levels:    map[Category][]Level{Releases: {View}},
				ExpiresAt: future,
			},
			category: Tracks,
			level:    View,
			want:     false,
		},
		{
			name: "suspended grant holds nothing",
			grant: &Grant{
				Levels:      map[Category][]Level{Releases: {View}},
				ExpiresAt:   future,
				SuspendedAt: timePtr(time.Now()),
			},
			category: Releases,
			level:    View,
			want:     false,
		},
		{
			name: "expired grant holds nothing",
			grant: &Grant{
				Levels:    map[Category][]Level{Releases: {View}},
				ExpiresAt: time.Now().Add(-time.Minute),
			},
			category: Releases,
			level:    View,
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.grant.Holds(tt.category, tt.level); got != tt.want {
				t.Errorf("Grant.Holds(%s, %s) = %v, want %v", tt.category, tt.level, got, tt.want)
			}
		})
	}
}

func TestGrantLive(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		grant *Grant
		want  bool
	}{
		{name: "nil grant", grant: nil, want: false},
		{name: "live grant", grant: &Grant{ExpiresAt: future}, want: true},
		{name: "suspended grant", grant: &Grant{ExpiresAt: future, SuspendedAt: timePtr(time.Now())}, want: false},
		{name: "expired grant", grant: &Grant{ExpiresAt: time.Now().Add(-time.Minute)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.grant.Live(); got != tt.want {
				t.Errorf("Grant.Live() = %v, want %v", got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
