// Package keys handles principal key material: parsing and encoding RSA
// public keys (OpenSSH and PEM forms), fingerprinting, and private key
// storage. The registry records public keys as OpenSSH authorized_keys
// lines so the persisted artifact remains one principal per line.
package keys
