package registry

import (
	"crypto/rsa"
	"fmt"
	"sort"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/keys"
	"github.com/halcyonlabs/keywarden/internal/utils"

	"github.com/bmatcuk/doublestar/v4"
)

// Group is a role defining which document categories its principals may
// decrypt. Groups form a fixed closed set; they are configuration
// constants, not created or destroyed at runtime.
type Group string

const (
	GroupDeveloper     Group = "developer"
	GroupAdministrator Group = "administrator"
	GroupService       Group = "service"
)

// Groups returns the closed set of valid groups in stable order.
func Groups() []Group {
	return []Group{GroupAdministrator, GroupDeveloper, GroupService}
}

// Valid reports whether g is one of the closed set.
func (g Group) Valid() bool {
	switch g {
	case GroupDeveloper, GroupAdministrator, GroupService:
		return true
	}
	return false
}

// groupScopes is the canonical access scope per group: the ordered path
// patterns members of that group may decrypt.
var groupScopes = map[Group][]string{
	GroupDeveloper:     {"docs/dev/**", "docs/examples/**"},
	GroupAdministrator: {"docs/dev/**", "docs/staging/**", "docs/production/**", "docs/examples/**"},
	GroupService:       {"docs/staging/**", "docs/production/**"},
}

// Scope returns the canonical path patterns for g.
func (g Group) Scope() []string {
	patterns := groupScopes[g]
	out := make([]string, len(patterns))
	copy(out, patterns)
	return out
}

// Principal is a named entity with exactly one public key and exactly one
// group membership. Principals are immutable between onboarding and
// offboarding.
type Principal struct {
	Name      string
	Group     Group
	PublicKey string // OpenSSH authorized_keys line
}

// Key parses the principal's public key.
func (p Principal) Key() (*rsa.PublicKey, error) {
	return keys.ParsePublic(p.PublicKey)
}

// Fingerprint returns the hex SHA-256 fingerprint of the principal's key,
// or an empty string if the key does not parse.
func (p Principal) Fingerprint() string {
	pub, err := p.Key()
	if err != nil {
		return ""
	}
	return keys.Fingerprint(pub)
}

// Rule binds a path pattern to the groups whose members should be
// recipients of any document matching that pattern. Principals holds the
// materialized recipient names for the pattern; the mutator keeps it equal
// to the set of declared principals whose group appears in Groups.
type Rule struct {
	Pattern    string
	Groups     []Group
	Principals []string
}

// Match reports whether path falls under this rule's pattern.
func (r Rule) Match(path string) bool {
	ok, err := doublestar.Match(r.Pattern, path)
	return err == nil && ok
}

// Registry is the aggregate of all principals, groups, and access rules,
// addressable as a single versioned configuration artifact.
type Registry struct {
	Version    int
	Principals []Principal // sorted by name
	Rules      []Rule      // declaration order
}

// CurrentVersion is the registry artifact format version.
const CurrentVersion = 1

// Default returns a registry with the canonical rules derived from the
// group scopes and no principals.
func Default() *Registry {
	reg := &Registry{Version: CurrentVersion}
	for _, pattern := range []string{"docs/dev/**", "docs/staging/**", "docs/production/**", "docs/examples/**"} {
		var groups []Group
		for _, g := range Groups() {
			for _, p := range groupScopes[g] {
				if p == pattern {
					groups = append(groups, g)
					break
				}
			}
		}
		reg.Rules = append(reg.Rules, Rule{Pattern: pattern, Groups: groups})
	}
	return reg
}

// Principal returns the named principal, if declared.
func (r *Registry) Principal(name string) (Principal, bool) {
	for _, p := range r.Principals {
		if p.Name == name {
			return p, true
		}
	}
	return Principal{}, false
}

// Add inserts a new principal and updates every rule whose groups include
// the principal's group. All input validation happens before any part of
// the registry is touched, so a failed Add leaves it unchanged.
func (r *Registry) Add(p Principal) error {
	if !utils.IsValidPrincipalName(p.Name) {
		return fmt.Errorf("%w: %q (want lowercase letters, digits, underscore)", kerrors.ErrInvalidPrincipalName, p.Name)
	}
	if !p.Group.Valid() {
		return fmt.Errorf("%w: %q", kerrors.ErrInvalidGroup, p.Group)
	}
	pub, err := keys.ParsePublic(p.PublicKey)
	if err != nil {
		return err
	}
	if _, exists := r.Principal(p.Name); exists {
		return fmt.Errorf("%w: %s", kerrors.ErrDuplicatePrincipal, p.Name)
	}

	// Normalize the key to a single OpenSSH line regardless of input form.
	encoded, err := keys.EncodePublic(pub)
	if err != nil {
		return err
	}
	p.PublicKey = encoded

	r.Principals = append(r.Principals, p)
	sort.Slice(r.Principals, func(i, j int) bool { return r.Principals[i].Name < r.Principals[j].Name })

	for i := range r.Rules {
		if containsGroup(r.Rules[i].Groups, p.Group) {
			r.Rules[i].Principals = insertSorted(r.Rules[i].Principals, p.Name)
		}
	}
	return nil
}

// Remove deletes the named principal along with every access-rule
// reference to it, returning the removed principal so callers know which
// documents were affected.
func (r *Registry) Remove(name string) (Principal, error) {
	idx := -1
	for i, p := range r.Principals {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Principal{}, fmt.Errorf("%w: %s", kerrors.ErrPrincipalNotFound, name)
	}

	removed := r.Principals[idx]
	r.Principals = append(r.Principals[:idx], r.Principals[idx+1:]...)

	for i := range r.Rules {
		r.Rules[i].Principals = removeString(r.Rules[i].Principals, name)
	}
	return removed, nil
}

// ResolveRecipients returns the principals whose group scope covers the
// given document path, in name order. Pure function over the registry.
func (r *Registry) ResolveRecipients(path string) []Principal {
	seen := make(map[string]bool)
	var out []Principal
	for _, rule := range r.Rules {
		if !rule.Match(path) {
			continue
		}
		for _, name := range rule.Principals {
			if seen[name] {
				continue
			}
			seen[name] = true
			if p, ok := r.Principal(name); ok {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Governed reports whether path matches at least one access rule pattern.
func (r *Registry) Governed(path string) bool {
	for _, rule := range r.Rules {
		if rule.Match(path) {
			return true
		}
	}
	return false
}

// ListByGroup returns the principals belonging to g, in name order.
func (r *Registry) ListByGroup(g Group) []Principal {
	var out []Principal
	for _, p := range r.Principals {
		if p.Group == g {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy. Mutations are applied to a clone and only
// swapped in after they succeed.
func (r *Registry) Clone() *Registry {
	out := &Registry{Version: r.Version}
	out.Principals = append([]Principal(nil), r.Principals...)
	for _, rule := range r.Rules {
		out.Rules = append(out.Rules, Rule{
			Pattern:    rule.Pattern,
			Groups:     append([]Group(nil), rule.Groups...),
			Principals: append([]string(nil), rule.Principals...),
		})
	}
	return out
}

// Validate checks the registry invariants:
//
//  1. Every principal reference in an access rule names exactly one
//     declared principal.
//  2. No two principals share the same name.
//  3. Every declared public key is syntactically valid.
//  4. Rule membership matches group scopes: a principal appears in a rule
//     iff its group is one of the rule's groups.
//
// Mutator logic keeps these invariants; Validate runs before every
// persist to catch hand-edited artifacts.
func (r *Registry) Validate() error {
	names := make(map[string]Group)
	for _, p := range r.Principals {
		if !utils.IsValidPrincipalName(p.Name) {
			return fmt.Errorf("%w: bad principal name %q", kerrors.ErrRegistryInvalid, p.Name)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate principal %q", kerrors.ErrRegistryInvalid, p.Name)
		}
		if !p.Group.Valid() {
			return fmt.Errorf("%w: principal %q has unknown group %q", kerrors.ErrRegistryInvalid, p.Name, p.Group)
		}
		if err := keys.Validate(p.PublicKey); err != nil {
			return fmt.Errorf("%w: principal %q: %v", kerrors.ErrRegistryInvalid, p.Name, err)
		}
		names[p.Name] = p.Group
	}

	for _, rule := range r.Rules {
		if rule.Pattern == "" {
			return fmt.Errorf("%w: rule with empty pattern", kerrors.ErrRegistryInvalid)
		}
		if len(rule.Groups) == 0 {
			return fmt.Errorf("%w: rule %q names no groups", kerrors.ErrRegistryInvalid, rule.Pattern)
		}
		for _, g := range rule.Groups {
			if !g.Valid() {
				return fmt.Errorf("%w: rule %q names unknown group %q", kerrors.ErrRegistryInvalid, rule.Pattern, g)
			}
		}
		member := make(map[string]bool, len(rule.Principals))
		for _, name := range rule.Principals {
			g, declared := names[name]
			if !declared {
				return fmt.Errorf("%w: rule %q references undeclared principal %q", kerrors.ErrRegistryInvalid, rule.Pattern, name)
			}
			if !containsGroup(rule.Groups, g) {
				return fmt.Errorf("%w: rule %q lists %q whose group %q is out of scope", kerrors.ErrRegistryInvalid, rule.Pattern, name, g)
			}
			member[name] = true
		}
		for name, g := range names {
			if containsGroup(rule.Groups, g) && !member[name] {
				return fmt.Errorf("%w: rule %q is missing principal %q of group %q", kerrors.ErrRegistryInvalid, rule.Pattern, name, g)
			}
		}
	}
	return nil
}

func containsGroup(groups []Group, g Group) bool {
	for _, have := range groups {
		if have == g {
			return true
		}
	}
	return false
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

func removeString(list []string, s string) []string {
	for i, have := range list {
		if have == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
