// Package crypto exposes the primitives used by parlor.
//
// Contents
//
//   - X25519 key-pair generation for user identities (GenerateKeyPair)
//   - Random session-key generation (GenerateSessionKey)
//   - Key wrapping to a recipient's public key (WrapKey, UnwrapKey):
//     ephemeral X25519 Diffie–Hellman, HKDF-SHA256, ChaCha20-Poly1305
//   - Authenticated message encryption with a detached tag and contextual
//     associated data (Encrypt, Decrypt, AssociatedData)
//   - Short public-key fingerprints for display (Fingerprint)
//
// All operations are constant time in secret material; failures surface as
// domain errors and never depend on key or plaintext content beyond the
// AEAD verification itself.
package crypto
