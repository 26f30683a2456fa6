package gateway

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/halcyonlabs/keywarden/internal/keys"

	"golang.org/x/crypto/nacl/secretbox"
)

// envelopeVersion is the on-disk envelope format version.
const envelopeVersion = 1

// header is the cleartext first line of an encrypted document: the nonce
// and the per-recipient wrapped copies of the content key, indexed by key
// fingerprint.
type header struct {
	Version    int               `json:"v"`
	Nonce      string            `json:"nonce"`
	Recipients map[string]string `json:"recipients"`
}

// seal encrypts plaintext under a fresh content key and wraps that key
// for every recipient. An empty recipient set produces a valid envelope
// that nobody can open; callers flag that case upstream.
func seal(plaintext []byte, recipients []Recipient) ([]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("generating content key: %w", err)
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	hdr := header{
		Version:    envelopeVersion,
		Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
		Recipients: make(map[string]string, len(recipients)),
	}
	for _, r := range recipients {
		wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, r.Key, key[:])
		if err != nil {
			return nil, fmt.Errorf("wrapping content key for %s: %w", r.Name, err)
		}
		hdr.Recipients[keys.Fingerprint(r.Key)] = base64.StdEncoding.EncodeToString(wrapped)
	}

	headerLine, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope header: %w", err)
	}

	ciphertext := secretbox.Seal(nil, plaintext, &nonce, &key)

	var out bytes.Buffer
	out.Write(headerLine)
	out.WriteByte('\n')
	out.Write(ciphertext)
	return out.Bytes(), nil
}

// open decrypts an envelope with the given private key. Returns a
// malformed error if the envelope cannot be parsed, and an access-denied
// error if the key's fingerprint is not among the recipients or the
// wrapped key does not decrypt.
func open(path string, data []byte, priv *rsa.PrivateKey) ([]byte, error) {
	hdr, ciphertext, err := splitEnvelope(data)
	if err != nil {
		return nil, malformed(path, err)
	}

	fp := keys.Fingerprint(&priv.PublicKey)
	wrappedB64, ok := hdr.Recipients[fp]
	if !ok {
		return nil, denied(path, fmt.Errorf("key %s is not a recipient", keys.FingerprintPrefix(fp)))
	}
	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return nil, malformed(path, fmt.Errorf("decoding wrapped key: %w", err))
	}

	contentKey, err := rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped)
	if err != nil {
		return nil, denied(path, fmt.Errorf("unwrapping content key: %w", err))
	}
	if len(contentKey) != 32 {
		return nil, malformed(path, fmt.Errorf("content key has %d bytes, want 32", len(contentKey)))
	}

	nonceBytes, err := base64.StdEncoding.DecodeString(hdr.Nonce)
	if err != nil || len(nonceBytes) != 24 {
		return nil, malformed(path, fmt.Errorf("invalid nonce"))
	}

	var key [32]byte
	var nonce [24]byte
	copy(key[:], contentKey)
	copy(nonce[:], nonceBytes)

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return nil, malformed(path, fmt.Errorf("secretbox open failed"))
	}
	return plaintext, nil
}

func splitEnvelope(data []byte) (*header, []byte, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, nil, fmt.Errorf("missing envelope header")
	}

	var hdr header
	if err := json.Unmarshal(data[:idx], &hdr); err != nil {
		return nil, nil, fmt.Errorf("parsing envelope header: %w", err)
	}
	if hdr.Version != envelopeVersion {
		return nil, nil, fmt.Errorf("unsupported envelope version %d", hdr.Version)
	}
	if hdr.Recipients == nil {
		hdr.Recipients = map[string]string{}
	}
	return &hdr, data[idx+1:], nil
}

// RecipientFingerprints returns the sorted key fingerprints a sealed
// document is wrapped for, without decrypting anything.
func RecipientFingerprints(data []byte) ([]string, error) {
	hdr, _, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hdr.Recipients))
	for fp := range hdr.Recipients {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out, nil
}
