package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/curve25519"

	"parlor/internal/domain"
)

// GenerateKeyPair returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748. Fails only when the entropy
// source is exhausted, which is fatal for the caller.
func GenerateKeyPair() (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pb)
	return
}

// GenerateSessionKey returns a fresh random symmetric session key.
func GenerateSessionKey() (key domain.SymmetricKey, err error) {
	_, err = rand.Read(key[:])
	return
}

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
