package registry

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pemPublic encodes a public key as a PEM PKIX block for tests that feed
// the alternate input format.
func pemPublic(t *testing.T, pub *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshaling public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func populatedRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := Default()
	_, pub0 := testKey(t, 0)
	_, pub1 := testKey(t, 1)
	_, pub2 := testKey(t, 2)
	require.NoError(t, reg.Add(Principal{Name: "carol", Group: GroupAdministrator, PublicKey: pub2}))
	require.NoError(t, reg.Add(Principal{Name: "alice", Group: GroupDeveloper, PublicKey: pub0}))
	require.NoError(t, reg.Add(Principal{Name: "bob", Group: GroupService, PublicKey: pub1}))
	return reg
}

func TestEncodeIsDeterministic(t *testing.T) {
	reg := populatedRegistry(t)

	first := Encode(reg)
	second := Encode(reg.Clone())
	assert.Equal(t, string(first), string(second))
}

func TestEncodeOnePrincipalPerLine(t *testing.T) {
	reg := populatedRegistry(t)
	text := string(Encode(reg))

	var names []string
	inPrincipals := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "[principals]" {
			inPrincipals = true
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			inPrincipals = false
			continue
		}
		if inPrincipals && trimmed != "" {
			names = append(names, strings.SplitN(trimmed, " ", 2)[0])
		}
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, names,
		"principals must appear one per line in name order")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	reg := populatedRegistry(t)

	decoded, err := Decode(Encode(reg))
	require.NoError(t, err)
	require.NoError(t, decoded.Validate())

	require.Len(t, decoded.Principals, 3)
	assert.Equal(t, reg.Principals, decoded.Principals)
	require.Len(t, decoded.Rules, len(reg.Rules))
	for i, rule := range reg.Rules {
		assert.Equal(t, rule.Pattern, decoded.Rules[i].Pattern)
		assert.Equal(t, rule.Principals, decoded.Rules[i].Principals)
	}

	// Re-resolving recipients after a round trip must give the same answer.
	assert.Equal(t,
		names(reg.ResolveRecipients("docs/production/db.sealed")),
		names(decoded.ResolveRecipients("docs/production/db.sealed")))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("version = }{"))
	assert.Error(t, err)
}

func TestDecodeHandEditedToml(t *testing.T) {
	_, pub := testKey(t, 0)
	text := "version = 1\n\n[principals]\n" +
		"alice = { group = \"developer\", public_key = \"" + pub + "\" }\n" +
		"\n[[rule]]\npattern = \"docs/dev/**\"\ngroups = [\"developer\"]\nprincipals = [\"alice\"]\n"

	reg, err := Decode([]byte(text))
	require.NoError(t, err)
	require.Len(t, reg.Principals, 1)
	assert.Equal(t, GroupDeveloper, reg.Principals[0].Group)
	assert.Equal(t, []string{"alice"}, reg.Rules[0].Principals)
}

func names(principals []Principal) []string {
	out := make([]string, 0, len(principals))
	for _, p := range principals {
		out = append(out, p.Name)
	}
	return out
}
