// Package identity manages the user's long-term X25519 key pair: generation
// under a passphrase strength policy, encrypted persistence, registration of
// the public half with the relay's directory, and fingerprint display for
// out-of-band verification.
package identity
