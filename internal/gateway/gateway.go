package gateway

import (
	"context"
	"crypto/rsa"

	"github.com/halcyonlabs/keywarden/internal/docs"
)

// Recipient identifies a wrapped-key holder for a sealed document.
type Recipient struct {
	Name string
	Key  *rsa.PublicKey
}

// Gateway is the envelope-encryption capability the engine depends on.
// Implementations classify failures with *Error so orchestrators can
// record per-document outcomes and continue.
type Gateway interface {
	// Rewrap re-encrypts the document at path so exactly the given
	// recipients can decrypt it. The content key is replaced, not reused,
	// so former recipients cannot fall back on a captured key.
	Rewrap(ctx context.Context, path string, recipients []Recipient) error

	// Decrypt attempts to open the document at path with the given key.
	Decrypt(ctx context.Context, path string, priv *rsa.PrivateKey) ([]byte, error)

	// Encrypt seals plaintext for the given recipients and returns the
	// envelope bytes. It does not touch the store.
	Encrypt(ctx context.Context, plaintext []byte, recipients []Recipient) ([]byte, error)
}

// Envelope is the file-backed gateway. The operator key must be a current
// recipient of any document it rewraps.
type Envelope struct {
	Docs     docs.Store
	Operator *rsa.PrivateKey
}

func (g *Envelope) Rewrap(ctx context.Context, path string, recipients []Recipient) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTimeout, Path: path, Err: err}
	}

	data, err := g.Docs.Read(path)
	if err != nil {
		return unavailable(path, err)
	}

	plaintext, err := open(path, data, g.Operator)
	if err != nil {
		return err
	}

	sealed, err := seal(plaintext, recipients)
	if err != nil {
		return unavailable(path, err)
	}
	if err := g.Docs.Write(path, sealed); err != nil {
		return unavailable(path, err)
	}
	return nil
}

func (g *Envelope) Decrypt(ctx context.Context, path string, priv *rsa.PrivateKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTimeout, Path: path, Err: err}
	}

	data, err := g.Docs.Read(path)
	if err != nil {
		return nil, unavailable(path, err)
	}
	return open(path, data, priv)
}

func (g *Envelope) Encrypt(ctx context.Context, plaintext []byte, recipients []Recipient) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTimeout, Err: err}
	}
	return seal(plaintext, recipients)
}
