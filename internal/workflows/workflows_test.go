package workflows

import (
	"context"
	"crypto/rsa"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/keywarden/internal/audit"
	"github.com/halcyonlabs/keywarden/internal/configs"
	"github.com/halcyonlabs/keywarden/internal/docs"
	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/gateway"
	"github.com/halcyonlabs/keywarden/internal/keys"
	logger "github.com/halcyonlabs/keywarden/internal/logging"
	"github.com/halcyonlabs/keywarden/internal/registry"
	"github.com/halcyonlabs/keywarden/internal/vcs"
)

var testKeyPool struct {
	once sync.Once
	priv []*rsa.PrivateKey
	pub  []string
}

func testKey(t *testing.T, i int) (*rsa.PrivateKey, string) {
	t.Helper()
	testKeyPool.once.Do(func() {
		for n := 0; n < 3; n++ {
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

// testEnv builds an in-memory environment with an administrator operator
// already registered and one sealed document per category.
func testEnv(t *testing.T) *Environment {
	t.Helper()
	operator, operatorPub := testKey(t, 0)

	reg := registry.Default()
	require.NoError(t, reg.Add(registry.Principal{Name: "op", Group: registry.GroupAdministrator, PublicKey: operatorPub}))

	store := docs.NewMemStore()
	tmp := t.TempDir()
	env := &Environment{
		Settings: &configs.Settings{
			ProjectPath:  tmp,
			RegistryPath: filepath.Join(tmp, ".keywarden", "registry.toml"),
			AuditPath:    filepath.Join(tmp, ".keywarden", "audit.jsonl"),
			UserKeysPath: filepath.Join(tmp, "keys"),
		},
		Registry:  registry.NewMemoryStore(reg),
		Documents: store,
		Operator:  operator,
		Audit:     audit.At(tmp),
		Sink:      vcs.Nop{},
		Logger:    logger.Logger{},
	}

	gw := env.Gateway()
	ctx := context.Background()
	for _, path := range []string{
		"docs/dev/db.sealed",
		"docs/staging/svc.sealed",
		"docs/production/api.sealed",
		"docs/examples/sample.sealed",
	} {
		sealed, err := gw.Encrypt(ctx, []byte("SECRET_TOKEN=original\n"), []gateway.Recipient{
			{Name: "op", Key: &operator.PublicKey},
		})
		require.NoError(t, err)
		require.NoError(t, store.Write(path, sealed))
	}
	return env
}

func TestOnboardGrantsScopedAccess(t *testing.T) {
	env := testEnv(t)
	alice, alicePub := testKey(t, 1)
	ctx := context.Background()

	result, err := Onboard(ctx, env, OnboardOptions{
		Name:          "alice",
		Group:         registry.GroupDeveloper,
		PublicKeyText: alicePub,
	})
	require.NoError(t, err)

	assert.Equal(t, registry.GroupDeveloper, result.Group)
	assert.NotEmpty(t, result.Fingerprint)
	require.NotNil(t, result.Report)
	assert.True(t, result.Report.Ok())
	assert.Equal(t, 4, result.Report.Attempted)

	gw := env.Gateway()
	_, err = gw.Decrypt(ctx, "docs/dev/db.sealed", alice)
	assert.NoError(t, err, "developer should read dev documents")
	_, err = gw.Decrypt(ctx, "docs/examples/sample.sealed", alice)
	assert.NoError(t, err)
	_, err = gw.Decrypt(ctx, "docs/production/api.sealed", alice)
	assert.Error(t, err, "developer must not read production documents")

	entries, err := env.Audit.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "onboard", entries[0].Operation)
	assert.Equal(t, "alice", entries[0].Principal)
	assert.Equal(t, "ok", entries[0].Outcome)
}

func TestOnboardDryRunChangesNothing(t *testing.T) {
	env := testEnv(t)
	_, alicePub := testKey(t, 1)

	result, err := Onboard(context.Background(), env, OnboardOptions{
		Name:          "alice",
		Group:         registry.GroupDeveloper,
		PublicKeyText: alicePub,
		DryRun:        true,
	})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Nil(t, result.Report)

	reg, err := env.Registry.Load()
	require.NoError(t, err)
	_, exists := reg.Principal("alice")
	assert.False(t, exists)

	entries, err := env.Audit.Read()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOnboardRejectsDuplicate(t *testing.T) {
	env := testEnv(t)
	_, alicePub := testKey(t, 1)
	ctx := context.Background()

	_, err := Onboard(ctx, env, OnboardOptions{Name: "alice", Group: registry.GroupDeveloper, PublicKeyText: alicePub})
	require.NoError(t, err)

	_, err = Onboard(ctx, env, OnboardOptions{Name: "alice", Group: registry.GroupService, PublicKeyText: alicePub})
	assert.ErrorIs(t, err, kerrors.ErrDuplicatePrincipal)
}

func TestOnboardGeneratesKeypair(t *testing.T) {
	env := testEnv(t)
	ctx := context.Background()

	result, err := Onboard(ctx, env, OnboardOptions{
		Name:        "deploy_bot",
		Group:       registry.GroupService,
		GenerateKey: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.PrivateKeyPath)

	priv, err := keys.LoadPrivate(result.PrivateKeyPath)
	require.NoError(t, err)

	_, err = env.Gateway().Decrypt(ctx, "docs/production/api.sealed", priv)
	assert.NoError(t, err, "generated key should open service-scope documents")
}

func TestOffboardRevokesAccess(t *testing.T) {
	env := testEnv(t)
	alice, alicePub := testKey(t, 1)
	ctx := context.Background()

	_, err := Onboard(ctx, env, OnboardOptions{Name: "alice", Group: registry.GroupDeveloper, PublicKeyText: alicePub})
	require.NoError(t, err)

	result, err := Offboard(ctx, env, OffboardOptions{Name: "alice"})
	require.NoError(t, err)

	assert.Equal(t, "developer", result.Group)
	assert.ElementsMatch(t, []string{"docs/dev/db.sealed", "docs/examples/sample.sealed"}, result.AffectedDocs)
	require.NotNil(t, result.Report)
	assert.True(t, result.Report.Ok())

	gw := env.Gateway()
	_, err = gw.Decrypt(ctx, "docs/dev/db.sealed", alice)
	assert.Error(t, err, "offboarded key must not open anything")

	operator, _ := testKey(t, 0)
	got, err := gw.Decrypt(ctx, "docs/dev/db.sealed", operator)
	require.NoError(t, err)
	assert.Equal(t, "SECRET_TOKEN=original\n", string(got), "offboarding alone keeps values")
}

func TestOffboardWithRotationReplacesValues(t *testing.T) {
	env := testEnv(t)
	_, alicePub := testKey(t, 1)
	ctx := context.Background()

	_, err := Onboard(ctx, env, OnboardOptions{Name: "alice", Group: registry.GroupDeveloper, PublicKeyText: alicePub})
	require.NoError(t, err)

	result, err := Offboard(ctx, env, OffboardOptions{Name: "alice", RotateAffected: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, result.AffectedDocs, result.Rotated)
	assert.Empty(t, result.RotationFailures)

	operator, _ := testKey(t, 0)
	got, err := env.Gateway().Decrypt(ctx, "docs/dev/db.sealed", operator)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "original", "rotation must replace the leaked value")
	assert.Contains(t, string(got), "SECRET_TOKEN=")
}

func TestOffboardUnknownPrincipal(t *testing.T) {
	env := testEnv(t)
	_, err := Offboard(context.Background(), env, OffboardOptions{Name: "ghost"})
	assert.ErrorIs(t, err, kerrors.ErrPrincipalNotFound)
}

func TestReconcileAllRecordsAudit(t *testing.T) {
	env := testEnv(t)

	report, err := ReconcileAll(context.Background(), env, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, report.Ok())
	assert.Equal(t, 4, report.Attempted)

	entries, err := env.Audit.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "reconcile", entries[0].Operation)
	assert.Equal(t, 4, entries[0].DocsAttempted)
}

func TestVerifyAccessAfterLifecycle(t *testing.T) {
	env := testEnv(t)
	_, alicePub := testKey(t, 1)
	ctx := context.Background()

	_, err := Onboard(ctx, env, OnboardOptions{Name: "alice", Group: registry.GroupDeveloper, PublicKeyText: alicePub})
	require.NoError(t, err)

	report, err := VerifyAccess(ctx, env, VerifyOptions{})
	require.NoError(t, err)
	require.NotNil(t, report.Principal)
	assert.Equal(t, "op", report.Principal.Name)
	assert.Equal(t, 4, report.TotalAccessible())
}

func TestRotateDocsSelectsByPattern(t *testing.T) {
	env := testEnv(t)
	ctx := context.Background()

	result, err := RotateDocs(ctx, env, RotateOptions{Paths: []string{"docs/staging/**"}})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "docs/staging/svc.sealed", result.Records[0].Path)
	assert.Equal(t, 1, result.Records[0].FieldsChanged)

	_, err = RotateDocs(ctx, env, RotateOptions{Paths: []string{"docs/nowhere/**"}})
	assert.ErrorIs(t, err, kerrors.ErrNoDocumentsFound)
}

func TestQueryLogFilters(t *testing.T) {
	env := testEnv(t)
	_, alicePub := testKey(t, 1)
	ctx := context.Background()

	_, err := Onboard(ctx, env, OnboardOptions{Name: "alice", Group: registry.GroupDeveloper, PublicKeyText: alicePub})
	require.NoError(t, err)
	_, err = ReconcileAll(ctx, env, ReconcileOptions{})
	require.NoError(t, err)
	_, err = Offboard(ctx, env, OffboardOptions{Name: "alice"})
	require.NoError(t, err)

	all, err := QueryLog(ctx, env, LogOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	onboards, err := QueryLog(ctx, env, LogOptions{Operation: "onboard"})
	require.NoError(t, err)
	require.Len(t, onboards, 1)
	assert.Equal(t, "alice", onboards[0].Principal)

	newestFirst, err := QueryLog(ctx, env, LogOptions{Reverse: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, newestFirst, 2)
	assert.Equal(t, "offboard", newestFirst[0].Operation)
	assert.Equal(t, "reconcile", newestFirst[1].Operation)
}
