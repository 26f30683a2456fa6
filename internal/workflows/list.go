package workflows

import (
	"context"

	"github.com/halcyonlabs/keywarden/internal/keys"
	"github.com/halcyonlabs/keywarden/internal/registry"
)

// ListedPrincipal is one row of the access listing.
type ListedPrincipal struct {
	Name        string   `json:"name"`
	Group       string   `json:"group"`
	Fingerprint string   `json:"fingerprint"`
	Scope       []string `json:"scope"`
}

// ListedRule summarizes one access rule and its materialized recipients.
type ListedRule struct {
	Pattern    string   `json:"pattern"`
	Groups     []string `json:"groups"`
	Principals []string `json:"principals"`
}

// AccessListing is the full registry view: who is registered, in which
// group, and which rules currently bind patterns to recipients.
type AccessListing struct {
	Principals []ListedPrincipal `json:"principals"`
	Rules      []ListedRule      `json:"rules"`
}

// ListAccess reads the registry and renders it as a listing. Read-only.
func ListAccess(ctx context.Context, env *Environment) (*AccessListing, error) {
	reg, err := env.Registry.Load()
	if err != nil {
		return nil, err
	}

	listing := &AccessListing{}
	for _, p := range reg.Principals {
		listing.Principals = append(listing.Principals, ListedPrincipal{
			Name:        p.Name,
			Group:       string(p.Group),
			Fingerprint: keys.FingerprintPrefix(p.Fingerprint()),
			Scope:       p.Group.Scope(),
		})
	}
	for _, r := range reg.Rules {
		groups := make([]string, 0, len(r.Groups))
		for _, g := range r.Groups {
			groups = append(groups, string(g))
		}
		listing.Rules = append(listing.Rules, ListedRule{
			Pattern:    r.Pattern,
			Groups:     groups,
			Principals: append([]string(nil), r.Principals...),
		})
	}
	return listing, nil
}

// GroupCounts tallies principals per group in group declaration order.
func (l *AccessListing) GroupCounts() map[registry.Group]int {
	counts := make(map[registry.Group]int)
	for _, p := range l.Principals {
		counts[registry.Group(p.Group)]++
	}
	return counts
}
