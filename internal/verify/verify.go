package verify

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sort"

	"github.com/halcyonlabs/keywarden/internal/docs"
	"github.com/halcyonlabs/keywarden/internal/gateway"
	"github.com/halcyonlabs/keywarden/internal/keys"
	"github.com/halcyonlabs/keywarden/internal/registry"
)

// CategoryReport counts how many documents in one governed category the
// candidate key can currently decrypt.
type CategoryReport struct {
	Category   string `json:"category"`
	Accessible int    `json:"accessible"`
	Total      int    `json:"total"`
}

// Report is the best-effort global picture of a key's effective access.
type Report struct {
	Fingerprint string           `json:"fingerprint"`
	Categories  []CategoryReport `json:"categories"`

	// Principal is set when the key belongs to a currently registered
	// principal. Effective access may lag registry state if reconciliation
	// has not run; comparing the two surfaces that inconsistency.
	Principal *registry.Principal `json:"principal,omitempty"`
}

// TotalAccessible sums accessible counts across categories.
func (r *Report) TotalAccessible() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Accessible
	}
	return total
}

// Verify attempts decryption of every governed document with the
// candidate key and reports accessible/total per category. Decryption
// attempts are independent: malformed documents or unsupported schemes
// are counted, not propagated as errors.
func Verify(ctx context.Context, priv *rsa.PrivateKey, reg *registry.Registry, store docs.Store, gw gateway.Gateway) (*Report, error) {
	paths, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	counts := make(map[string]*CategoryReport)
	for _, path := range paths {
		if !reg.Governed(path) {
			continue
		}
		category := docs.Category(path)
		if category == "" {
			continue
		}

		c, ok := counts[category]
		if !ok {
			c = &CategoryReport{Category: category}
			counts[category] = c
		}
		c.Total++

		if _, err := gw.Decrypt(ctx, path, priv); err == nil {
			c.Accessible++
		}
	}

	report := &Report{Fingerprint: keys.Fingerprint(&priv.PublicKey)}
	for _, c := range counts {
		report.Categories = append(report.Categories, *c)
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		return report.Categories[i].Category < report.Categories[j].Category
	})

	if p, ok := IsKeyRegistered(&priv.PublicKey, reg); ok {
		report.Principal = &p
	}
	return report, nil
}

// IsKeyRegistered cross-checks whether the presented key corresponds to a
// principal currently in the registry, independent of whether any
// decryption succeeds.
func IsKeyRegistered(pub *rsa.PublicKey, reg *registry.Registry) (registry.Principal, bool) {
	fp := keys.Fingerprint(pub)
	for _, p := range reg.Principals {
		if p.Fingerprint() == fp {
			return p, true
		}
	}
	return registry.Principal{}, false
}
