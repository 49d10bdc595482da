package access

import (
	"slices"
	"time"
)

// Normalize expands a requested level set for one category into its
// cascade-consistent form: the prefix of the category ladder up to and
// including the highest requested level. Levels the category does not
// define are dropped. Normalization happens at write time so that Holds
// stays a flat membership test on the hot path.
func Normalize(category Category, requested []Level) []Level {
	ladder := ladders[category]

	highest := -1
	for _, l := range requested {
		if i := slices.Index(ladder, l); i > highest {
			highest = i
		}
	}
	if highest < 0 {
		return nil
	}

	return slices.Clone(ladder[:highest+1])
}

// Normalized reports whether held is already a cascade-consistent prefix of
// the category ladder.
func Normalized(category Category, held []Level) bool {
	ladder := ladders[category]
	if len(held) > len(ladder) {
		return false
	}
	for i, l := range held {
		if ladder[i] != l {
			return false
		}
	}

	return true
}

// Holds reports whether the grant holds the given level for the category.
// This is the single predicate every authorization check routes through:
// a suspended or expired grant holds nothing, regardless of stored levels.
func (g *Grant) Holds(category Category, level Level) bool {
	if g == nil {
		return false
	}
	if g.SuspendedAt != nil {
		return false
	}
	if g.ExpiresAt.Before(time.Now()) {
		return false
	}

	return slices.Contains(g.Levels[category], level)
}

// Live reports whether the grant exists, is not suspended, and has not
// expired. A grant-bearing caller whose grant is not live has an
// inconsistent authorization state and must be force-revoked by the gate.
func (g *Grant) Live() bool {
	return g != nil && g.SuspendedAt == nil && !g.ExpiresAt.Before(time.Now())
}
