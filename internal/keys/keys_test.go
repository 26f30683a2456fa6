package keys

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
)

func TestEncodeParsePublicRoundTrip(t *testing.T) {
	priv, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	line, err := EncodePublic(&priv.PublicKey)
	if err != nil {
		t.Fatalf("EncodePublic failed: %v", err)
	}
	if strings.Contains(line, "\n") {
		t.Error("encoded key must be a single line")
	}
	if !strings.HasPrefix(line, "ssh-rsa ") {
		t.Errorf("encoded key has unexpected prefix: %q", line[:20])
	}

	parsed, err := ParsePublic(line)
	if err != nil {
		t.Fatalf("ParsePublic failed: %v", err)
	}
	if parsed.N.Cmp(priv.PublicKey.N) != 0 || parsed.E != priv.PublicKey.E {
		t.Error("round trip changed key material")
	}
}

func TestParsePublicPEM(t *testing.T) {
	priv, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	parsed, err := ParsePublic(pemText)
	if err != nil {
		t.Fatalf("ParsePublic failed: %v", err)
	}
	if parsed.N.Cmp(priv.PublicKey.N) != 0 {
		t.Error("PEM parse changed key material")
	}

	// Same key, either input form, must fingerprint identically.
	line, _ := EncodePublic(&priv.PublicKey)
	fromLine, _ := ParsePublic(line)
	if Fingerprint(parsed) != Fingerprint(fromLine) {
		t.Error("fingerprint differs between input formats")
	}
}

func TestParsePublicRejectsInvalid(t *testing.T) {
	for _, text := range []string{
		"",
		"not a key",
		"ssh-rsa garbage",
		"-----BEGIN PUBLIC KEY-----\ngarbage\n-----END PUBLIC KEY-----",
	} {
		_, err := ParsePublic(text)
		if !errors.Is(err, kerrors.ErrInvalidKeyFormat) {
			t.Errorf("ParsePublic(%q) error = %v, want ErrInvalidKeyFormat", text, err)
		}
	}
}

func TestFingerprintDistinct(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	fpA := Fingerprint(&a.PublicKey)
	fpB := Fingerprint(&b.PublicKey)
	if fpA == fpB {
		t.Error("distinct keys produced the same fingerprint")
	}
	if len(fpA) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fpA))
	}
	if FingerprintPrefix(fpA) != fpA[:12] {
		t.Error("FingerprintPrefix should return the first 12 characters")
	}
}

func TestSaveLoadPrivate(t *testing.T) {
	priv, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "dir", "key.pem")
	if err := SavePrivate(priv, path); err != nil {
		t.Fatalf("SavePrivate failed: %v", err)
	}

	loaded, err := LoadPrivate(path)
	if err != nil {
		t.Fatalf("LoadPrivate failed: %v", err)
	}
	if loaded.D.Cmp(priv.D) != 0 {
		t.Error("loaded key differs from saved key")
	}
}

func TestLoadPrivateMissing(t *testing.T) {
	_, err := LoadPrivate(filepath.Join(t.TempDir(), "absent.pem"))
	if !errors.Is(err, kerrors.ErrPrivateKeyNotFound) {
		t.Errorf("error = %v, want ErrPrivateKeyNotFound", err)
	}
}

func TestParsePrivateRejectsGarbage(t *testing.T) {
	_, err := ParsePrivate([]byte("not pem at all"))
	if !errors.Is(err, kerrors.ErrInvalidPrivateKey) {
		t.Errorf("error = %v, want ErrInvalidPrivateKey", err)
	}
}
