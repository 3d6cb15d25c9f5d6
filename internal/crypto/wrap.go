package crypto

import (
	"crypto/cipher"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"parlor/internal/domain"
	"parlor/internal/util/memzero"
)

const wrapInfo = "parlor-key-wrap-v1"

// wrappedLen is an ephemeral public key plus the sealed 32-byte session key.
const wrappedLen = 32 + 32 + chacha20poly1305.Overhead

// WrapKey encrypts a session key to the recipient's public key.
//
// A fresh ephemeral X25519 pair is generated per wrap; the shared secret is
// expanded with HKDF-SHA256 into a one-use AEAD key, so a fixed nonce is
// safe. The wrapped form is ephemeral pub || sealed key, with the ephemeral
// pub bound as associated data. Unwrapping the same event twice yields the
// same session key.
func WrapKey(key domain.SymmetricKey, pub domain.X25519Public) (domain.WrappedKey, error) {
	ephPriv, ephPub, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	aead, err := wrapAEAD(ephPriv, pub)
	memzero.Zero(ephPriv[:])
	if err != nil {
		return nil, domain.ErrInvalidKeyMaterial
	}

	out := make([]byte, 32, wrappedLen)
	copy(out, ephPub[:])
	nonce := make([]byte, aead.NonceSize())
	return aead.Seal(out, nonce, key.Slice(), ephPub.Slice()), nil
}

// UnwrapKey recovers a session key wrapped for priv's public half.
// Malformed or mismatched material yields ErrInvalidKeyMaterial.
func UnwrapKey(w domain.WrappedKey, priv domain.X25519Private) (domain.SymmetricKey, error) {
	var key domain.SymmetricKey
	if len(w) != wrappedLen {
		return key, domain.ErrInvalidKeyMaterial
	}
	var ephPub domain.X25519Public
	copy(ephPub[:], w[:32])

	aead, err := wrapAEAD(priv, ephPub)
	if err != nil {
		return key, domain.ErrInvalidKeyMaterial
	}
	nonce := make([]byte, aead.NonceSize())
	raw, err := aead.Open(nil, nonce, w[32:], ephPub.Slice())
	if err != nil {
		return key, domain.ErrInvalidKeyMaterial
	}
	copy(key[:], raw)
	memzero.Zero(raw)
	return key, nil
}

// wrapAEAD derives the one-use wrapping AEAD from an X25519 shared secret.
// Wrapping passes the ephemeral private and the recipient public; unwrapping
// passes the recipient private and the ephemeral public.
func wrapAEAD(priv domain.X25519Private, pub domain.X25519Public) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(shared)

	kek := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(wrapInfo)), kek); err != nil {
		return nil, err
	}
	defer memzero.Zero(kek)
	return chacha20poly1305.New(kek)
}
