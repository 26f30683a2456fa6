package rotate

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Generator supplies freshly generated secret values. kind is "password"
// for database-style credentials and "token" for opaque API secrets.
type Generator interface {
	Generate(kind string, length int) (string, error)
}

// RandomGenerator draws values from crypto/rand.
type RandomGenerator struct{}

// passwordCharset avoids shell-hostile characters so generated values can
// be pasted into connection strings without quoting.
const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_."

func (RandomGenerator) Generate(kind string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid secret length %d", length)
	}

	switch kind {
	case "password":
		return randomFromCharset(length)
	case "token":
		raw := make([]byte, length)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
	default:
		return "", fmt.Errorf("unknown secret kind %q", kind)
	}
}

func randomFromCharset(length int) (string, error) {
	max := big.NewInt(int64(len(passwordCharset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		out[i] = passwordCharset[n.Int64()]
	}
	return string(out), nil
}
