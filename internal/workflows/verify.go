package workflows

import (
	"context"
	"crypto/rsa"
	"fmt"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/keys"
	"github.com/halcyonlabs/keywarden/internal/verify"
)

// VerifyOptions configures the verify workflow.
type VerifyOptions struct {
	// PrivateKeyData is the candidate private key (PEM). When empty the
	// environment's operator key is verified.
	PrivateKeyData []byte
}

// VerifyAccess reports which governed documents a private key can
// actually decrypt, per category, alongside the registry's view of the
// key. A mismatch between the two means reconciliation is overdue.
func VerifyAccess(ctx context.Context, env *Environment, opts VerifyOptions) (*verify.Report, error) {
	priv := env.Operator
	if len(opts.PrivateKeyData) > 0 {
		parsed, err := keys.ParsePrivate(opts.PrivateKeyData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		priv = parsed
	}
	if priv == nil {
		return nil, kerrors.ErrPrivateKeyNotFound
	}

	reg, err := env.Registry.Load()
	if err != nil {
		return nil, err
	}

	return verify.Verify(ctx, priv, reg, env.Documents, env.Gateway())
}

// VerifyKey is like VerifyAccess for an already parsed key.
func VerifyKey(ctx context.Context, env *Environment, priv *rsa.PrivateKey) (*verify.Report, error) {
	reg, err := env.Registry.Load()
	if err != nil {
		return nil, err
	}
	return verify.Verify(ctx, priv, reg, env.Documents, env.Gateway())
}
