// Package gateway implements the envelope-encryption gateway: each
// governed document carries a cleartext JSON header line holding a nonce
// and per-recipient RSA-wrapped copies of a fresh secretbox content key,
// followed by the ciphertext.
//
// Failures are classified (access denied, malformed, unavailable,
// timeout) so orchestrators can aggregate per-document outcomes instead
// of aborting a batch.
package gateway
