package registry

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"

	"github.com/BurntSushi/toml"
)

// On-disk shape of the registry artifact. Principals are a TOML table of
// inline tables so each one occupies a single line; rules are array
// tables in declaration order.
type registryDoc struct {
	Version    int                     `toml:"version"`
	Principals map[string]principalDoc `toml:"principals"`
	Rules      []ruleDoc               `toml:"rule"`
}

type principalDoc struct {
	Group     string `toml:"group"`
	PublicKey string `toml:"public_key"`
}

type ruleDoc struct {
	Pattern    string   `toml:"pattern"`
	Groups     []string `toml:"groups"`
	Principals []string `toml:"principals"`
}

// Encode renders the registry in its deterministic, diff-friendly layout:
// stable key ordering, one principal per line. External tooling parses
// this file, so the layout is a compatibility contract, not cosmetics.
func Encode(reg *Registry) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "version = %d\n", reg.Version)

	b.WriteString("\n[principals]\n")
	principals := append([]Principal(nil), reg.Principals...)
	sort.Slice(principals, func(i, j int) bool { return principals[i].Name < principals[j].Name })
	for _, p := range principals {
		fmt.Fprintf(&b, "%s = { group = %q, public_key = %q }\n", p.Name, string(p.Group), p.PublicKey)
	}

	for _, rule := range reg.Rules {
		b.WriteString("\n[[rule]]\n")
		fmt.Fprintf(&b, "pattern = %q\n", rule.Pattern)
		fmt.Fprintf(&b, "groups = [%s]\n", quotedList(groupNames(rule.Groups)))
		fmt.Fprintf(&b, "principals = [%s]\n", quotedList(rule.Principals))
	}

	return b.Bytes()
}

// Decode parses a registry artifact produced by Encode (or hand-edited
// TOML with the same shape).
func Decode(data []byte) (*Registry, error) {
	var doc registryDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrRegistryInvalid, err)
	}

	reg := &Registry{Version: doc.Version}
	if reg.Version == 0 {
		reg.Version = CurrentVersion
	}

	for name, p := range doc.Principals {
		reg.Principals = append(reg.Principals, Principal{
			Name:      name,
			Group:     Group(p.Group),
			PublicKey: p.PublicKey,
		})
	}
	sort.Slice(reg.Principals, func(i, j int) bool { return reg.Principals[i].Name < reg.Principals[j].Name })

	for _, rule := range doc.Rules {
		groups := make([]Group, 0, len(rule.Groups))
		for _, g := range rule.Groups {
			groups = append(groups, Group(g))
		}
		principals := append([]string(nil), rule.Principals...)
		sort.Strings(principals)
		reg.Rules = append(reg.Rules, Rule{
			Pattern:    rule.Pattern,
			Groups:     groups,
			Principals: principals,
		})
	}

	return reg, nil
}

func groupNames(groups []Group) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, string(g))
	}
	sort.Strings(names)
	return names
}

func quotedList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, fmt.Sprintf("%q", item))
	}
	return strings.Join(quoted, ", ")
}
