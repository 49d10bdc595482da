package gate

import (
	"github.com/chordline/console/access"
	"github.com/chordline/console/identity"
)

// Well-known paths.
const (
	LoginPath      = "/auth/login"
	AuthPathPrefix = "/auth"
	HomePath       = "/"
	SystemPath     = "/system"
)

// levelSuffixes maps each capability level to the action sub-path it gates
// under a section base. View gates the base itself.
var levelSuffixes = map[access.Level]string{
	access.Approve: "/approve",
	access.Status:  "/status",
	access.Create:  "/create",
	access.Update:  "/edit",
	access.Delete:  "/delete",
}

// categoryRules produces the rules for one grant-gated section: the base
// path requires View, and each deeper action path requires its level.
// Returns the rules and the section's own (View) predicate for parent
// derivation.
func categoryRules(base string, category access.Category) ([]rule, predicate) {
	view := requires(category, access.View)
	rules := []rule{{prefix: base, pred: view}}

	for _, level := range access.LevelsFor(category) {
		suffix, ok := levelSuffixes[level]
		if !ok {
			continue
		}
		rules = append(rules, rule{prefix: base + suffix, pred: requires(category, level)})
	}

	return rules, view
}

// DefaultMatrix builds the dashboard's route-to-capability table. Parent
// sections derive their predicate as the OR of their children's, so a
// section is reachable iff at least one child is.
func DefaultMatrix() *Matrix {
	m := &Matrix{}

	section := func(base string, children map[string]access.Category, extra ...rule) predicate {
		var childPreds []predicate
		for sub, category := range children {
			rules, view := categoryRules(base+sub, category)
			m.rules = append(m.rules, rules...)
			childPreds = append(childPreds, view)
		}
		for _, r := range extra {
			m.rules = append(m.rules, r)
			childPreds = append(childPreds, r.pred)
		}
		parent := anyOf(childPreds...)
		m.rules = append(m.rules, rule{prefix: base, pred: parent})

		return parent
	}

	// Administration: accesses are privileged-only; reporting keeps a
	// legacy /upload alias for its create screen.
	administration := section("/system/administration", map[string]access.Category{
		"/users":      access.Users,
		"/workspaces": access.WorkspaceAccounts,
		"/reporting":  access.Reporting,
	}, rule{prefix: "/system/administration/accesses", pred: privilegedOnly()})
	m.rules = append(m.rules, rule{prefix: "/system/administration/reporting/upload", pred: requires(access.Reporting, access.Create)})

	catalog := section("/system/catalog", map[string]access.Category{
		"/releases":  access.Releases,
		"/tracks":    access.Tracks,
		"/videos":    access.Videos,
		"/ringtones": access.Ringtones,
	})

	roster := section("/system/roster", map[string]access.Category{
		"/artists":    access.Artists,
		"/performers": access.Performers,
		"/studio":     access.Studio,
		"/writers":    access.Writers,
		"/publishers": access.Publishers,
		"/labels":     access.Labels,
	})

	finance := section("/system/finance", map[string]access.Category{
		"/transactions": access.Transactions,
		"/withdrawals":  access.Withdrawals,
	})

	analytics := section("/system/analytics", map[string]access.Category{
		"/consumption": access.Consumption,
		"/engagement":  access.Engagement,
		"/revenue":     access.Revenue,
		"/geo":         access.Geo,
	})

	rightsRules, rights := categoryRules("/system/rights", access.Rights)
	m.rules = append(m.rules, rightsRules...)

	// The system shell itself: reachable by privileged roles and by any
	// grant-bearing caller whose grant opens at least one section.
	m.rules = append(m.rules, rule{
		prefix: SystemPath,
		pred: anyOf(
			privilegedOnly(),
			func(c CapabilitySet) bool {
				if c.role != identity.RoleSystem {
					return false
				}

				return anyOf(administration, catalog, roster, finance, analytics, rights)(c)
			},
		),
	})

	// Baseline dashboard.
	m.rules = append(m.rules, rule{
		prefix: HomePath,
		pred:   roleIn(identity.RoleOwner, identity.RoleAdmin, identity.RoleUser),
	})

	return m
}
