package rotate

import (
	"context"
	"crypto/rsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/keywarden/internal/docs"
	"github.com/halcyonlabs/keywarden/internal/gateway"
	"github.com/halcyonlabs/keywarden/internal/keys"
	"github.com/halcyonlabs/keywarden/internal/registry"
)

var testKeyPool struct {
	once sync.Once
	priv []*rsa.PrivateKey
	pub  []string
}

func testKey(t *testing.T, i int) (*rsa.PrivateKey, string) {
	t.Helper()
	testKeyPool.once.Do(func() {
		for n := 0; n < 2; n++ {
			k, err := keys.Generate()
			if err != nil {
				t.Fatalf("generating test key: %v", err)
			}
			line, err := keys.EncodePublic(&k.PublicKey)
			if err != nil {
				t.Fatalf("encoding test key: %v", err)
			}
			testKeyPool.priv = append(testKeyPool.priv, k)
			testKeyPool.pub = append(testKeyPool.pub, line)
		}
	})
	return testKeyPool.priv[i], testKeyPool.pub[i]
}

// fixedGenerator returns predictable values so tests can assert on the
// rewritten content.
type fixedGenerator struct{ value string }

func (g fixedGenerator) Generate(kind string, length int) (string, error) {
	return g.value, nil
}

func setup(t *testing.T, path, content string) (*registry.Registry, *docs.MemStore, *gateway.Envelope, *rsa.PrivateKey) {
	t.Helper()
	operator, operatorPub := testKey(t, 0)

	reg := registry.Default()
	require.NoError(t, reg.Add(registry.Principal{Name: "op", Group: registry.GroupAdministrator, PublicKey: operatorPub}))

	store := docs.NewMemStore()
	gw := &gateway.Envelope{Docs: store, Operator: operator}

	sealed, err := gw.Encrypt(context.Background(), []byte(content), []gateway.Recipient{
		{Name: "op", Key: &operator.PublicKey},
	})
	require.NoError(t, err)
	require.NoError(t, store.Write(path, sealed))

	return reg, store, gw, operator
}

func decrypt(t *testing.T, gw *gateway.Envelope, path string, priv *rsa.PrivateKey) string {
	t.Helper()
	got, err := gw.Decrypt(context.Background(), path, priv)
	require.NoError(t, err)
	return string(got)
}

func TestRotateReplacesSecretFields(t *testing.T) {
	content := "# production database\nDB_HOST=db.internal\nDB_PASSWORD=old\nAPP_NAME=shop\n"
	reg, store, gw, operator := setup(t, "docs/production/db.sealed", content)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	record, err := Rotate(context.Background(), "docs/production/db.sealed", reg, store, gw, Options{
		Key:       operator,
		Generator: fixedGenerator{value: "FRESH"},
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)

	assert.Equal(t, ClassDatabaseCredential, record.Classification)
	assert.Equal(t, 1, record.FieldsChanged)
	assert.False(t, record.ManualUpdateRequired)
	assert.NotEmpty(t, record.ID)

	got := decrypt(t, gw, "docs/production/db.sealed", operator)
	assert.Contains(t, got, "DB_PASSWORD=FRESH")
	assert.Contains(t, got, "DB_HOST=db.internal", "non-secret fields keep their values")
	assert.Contains(t, got, "APP_NAME=shop")
	assert.Contains(t, got, "# production database", "comments survive rotation")
	assert.Contains(t, got, "# rotated 2026-08-01T12:00:00Z")
}

func TestRotateClassifiesAPIKeys(t *testing.T) {
	content := "SERVICE_URL=https://api.example.com\nAPI_TOKEN=old\n"
	reg, store, gw, operator := setup(t, "docs/staging/api.sealed", content)

	record, err := Rotate(context.Background(), "docs/staging/api.sealed", reg, store, gw, Options{
		Key:       operator,
		Generator: fixedGenerator{value: "FRESH"},
	})
	require.NoError(t, err)
	assert.Equal(t, ClassAPIKey, record.Classification)
	assert.Equal(t, 1, record.FieldsChanged)
}

func TestRotateAnnotationOverridesInference(t *testing.T) {
	content := "# keywarden-class: database-credential\nACCESS_TOKEN=old\n"
	reg, store, gw, operator := setup(t, "docs/staging/x.sealed", content)

	record, err := Rotate(context.Background(), "docs/staging/x.sealed", reg, store, gw, Options{
		Key:       operator,
		Generator: fixedGenerator{value: "FRESH"},
	})
	require.NoError(t, err)
	assert.Equal(t, ClassDatabaseCredential, record.Classification)
}

func TestRotateGenericNeedsManualUpdate(t *testing.T) {
	content := "REGION=us-east-1\nLOG_LEVEL=info\n"
	reg, store, gw, operator := setup(t, "docs/dev/app.sealed", content)

	record, err := Rotate(context.Background(), "docs/dev/app.sealed", reg, store, gw, Options{
		Key: operator,
	})
	require.NoError(t, err)

	assert.Equal(t, ClassGeneric, record.Classification)
	assert.Equal(t, 0, record.FieldsChanged)
	assert.True(t, record.ManualUpdateRequired)

	got := decrypt(t, gw, "docs/dev/app.sealed", operator)
	assert.Contains(t, got, "REGION=us-east-1")
	assert.Contains(t, got, "(manual update required)")
}

func TestRotateSelectorsLimitFields(t *testing.T) {
	content := "DB_PASSWORD=old1\nAPI_TOKEN=old2\n"
	reg, store, gw, operator := setup(t, "docs/production/mixed.sealed", content)

	record, err := Rotate(context.Background(), "docs/production/mixed.sealed", reg, store, gw, Options{
		Key:       operator,
		Selectors: []string{"token"},
		Generator: fixedGenerator{value: "FRESH"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, record.FieldsChanged)

	got := decrypt(t, gw, "docs/production/mixed.sealed", operator)
	assert.Contains(t, got, "API_TOKEN=FRESH")
	assert.Contains(t, got, "DB_PASSWORD=old1")
}

func TestRotatePreservesRecipientSet(t *testing.T) {
	operator, operatorPub := testKey(t, 0)
	alice, alicePub := testKey(t, 1)

	reg := registry.Default()
	require.NoError(t, reg.Add(registry.Principal{Name: "op", Group: registry.GroupAdministrator, PublicKey: operatorPub}))
	require.NoError(t, reg.Add(registry.Principal{Name: "alice", Group: registry.GroupDeveloper, PublicKey: alicePub}))

	store := docs.NewMemStore()
	gw := &gateway.Envelope{Docs: store, Operator: operator}
	sealed, err := gw.Encrypt(context.Background(), []byte("SECRET_KEY=old\n"), []gateway.Recipient{
		{Name: "op", Key: &operator.PublicKey},
		{Name: "alice", Key: &alice.PublicKey},
	})
	require.NoError(t, err)
	require.NoError(t, store.Write("docs/dev/s.sealed", sealed))

	_, err = Rotate(context.Background(), "docs/dev/s.sealed", reg, store, gw, Options{Key: operator})
	require.NoError(t, err)

	// Both expected recipients can still read, with a new value in place.
	for _, k := range []*rsa.PrivateKey{operator, alice} {
		got := decrypt(t, gw, "docs/dev/s.sealed", k)
		assert.True(t, strings.HasPrefix(got, "SECRET_KEY="))
		assert.NotContains(t, got, "SECRET_KEY=old")
	}
}

func TestRotateDropsStaleAnnotation(t *testing.T) {
	content := "TOKEN=old\n# rotated 2025-01-01T00:00:00Z\n"
	reg, store, gw, operator := setup(t, "docs/dev/t.sealed", content)

	_, err := Rotate(context.Background(), "docs/dev/t.sealed", reg, store, gw, Options{
		Key:       operator,
		Generator: fixedGenerator{value: "FRESH"},
	})
	require.NoError(t, err)

	got := decrypt(t, gw, "docs/dev/t.sealed", operator)
	assert.Equal(t, 1, strings.Count(got, "# rotated"), "exactly one rotation annotation must remain")
	assert.NotContains(t, got, "2025-01-01")
}

func TestRandomGeneratorShapes(t *testing.T) {
	gen := RandomGenerator{}

	password, err := gen.Generate("password", 32)
	require.NoError(t, err)
	assert.Len(t, password, 32)
	for _, r := range password {
		assert.Contains(t, passwordCharset, string(r))
	}

	token, err := gen.Generate("token", 48)
	require.NoError(t, err)
	assert.Len(t, token, 48)

	a, _ := gen.Generate("token", 48)
	b, _ := gen.Generate("token", 48)
	assert.NotEqual(t, a, b)
}
