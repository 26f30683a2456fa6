package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"

	"golang.org/x/crypto/ssh"
)

// KeySize is the RSA modulus size used for generated principal keys.
const KeySize = 2048

// ParsePublic parses a public key from either an OpenSSH authorized_keys
// line or a PEM PKIX block. Only RSA keys are supported by the envelope
// scheme; anything else is rejected.
func ParsePublic(text string) (*rsa.PublicKey, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty key", kerrors.ErrInvalidKeyFormat)
	}

	if strings.HasPrefix(trimmed, "ssh-") {
		return parseOpenSSHPublic(trimmed)
	}
	return parsePEMPublic(trimmed)
}

func parseOpenSSHPublic(line string) (*rsa.PublicKey, error) {
	sshPub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidKeyFormat, err)
	}

	cryptoPub, ok := sshPub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported key type %s", kerrors.ErrInvalidKeyFormat, sshPub.Type())
	}
	rsaPub, ok := cryptoPub.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: key type %s is not RSA", kerrors.ErrInvalidKeyFormat, sshPub.Type())
	}
	return rsaPub, nil
}

func parsePEMPublic(text string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("%w: expected an OpenSSH line or a PEM PUBLIC KEY block", kerrors.ErrInvalidKeyFormat)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidKeyFormat, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", kerrors.ErrInvalidKeyFormat)
	}
	return rsaPub, nil
}

// EncodePublic encodes a public key as a single OpenSSH authorized_keys
// line. The registry stores keys in this form so the artifact stays one
// principal per line.
func EncodePublic(pub *rsa.PublicKey) (string, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("encoding public key: %w", err)
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))), nil
}

// Validate reports whether text is a syntactically valid public key for the
// envelope scheme.
func Validate(text string) error {
	_, err := ParsePublic(text)
	return err
}

// Fingerprint returns the hex SHA-256 digest of the PKIX encoding of pub.
func Fingerprint(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		// MarshalPKIXPublicKey cannot fail for a well-formed RSA key.
		return ""
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// FingerprintPrefix returns the short form of a fingerprint used in audit
// entries and console output.
func FingerprintPrefix(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}

// Generate creates a new RSA keypair for an onboarded principal.
func Generate() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	return priv, nil
}

// ParsePrivate parses an RSA private key from PEM (PKCS#1 or PKCS#8) or
// OpenSSH format.
func ParsePrivate(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", kerrors.ErrInvalidPrivateKey)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		return priv, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		priv, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", kerrors.ErrInvalidPrivateKey)
		}
		return priv, nil
	case "OPENSSH PRIVATE KEY":
		parsed, err := ssh.ParseRawPrivateKey(data)
		if err != nil {
			// Surface passphrase errors unwrapped so callers can prompt.
			if IsPassphraseMissing(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		priv, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", kerrors.ErrInvalidPrivateKey)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", kerrors.ErrInvalidPrivateKey, block.Type)
	}
}

// ParsePrivateWithPassphrase parses a passphrase-protected OpenSSH
// private key.
func ParsePrivateWithPassphrase(data, passphrase []byte) (*rsa.PrivateKey, error) {
	parsed, err := ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", kerrors.ErrInvalidPrivateKey)
	}
	return priv, nil
}

// IsPassphraseMissing reports whether err means the key is encrypted and
// a passphrase is required.
func IsPassphraseMissing(err error) bool {
	var missing *ssh.PassphraseMissingError
	return errors.As(err, &missing)
}

// LoadPrivate loads an RSA private key from disk.
func LoadPrivate(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrPrivateKeyNotFound, path)
		}
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	return ParsePrivate(data)
}

// SavePrivate writes an RSA private key to disk in PKCS#1 PEM format,
// creating parent directories as needed.
func SavePrivate(priv *rsa.PrivateKey, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	if err := os.WriteFile(path, pemBytes, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}
