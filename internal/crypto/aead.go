package crypto

import (
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"parlor/internal/domain"
)

// TagBytes is the length of the detached authentication tag.
const TagBytes = chacha20poly1305.Overhead

// AssociatedData binds a ciphertext to its room, epoch, sender, and the
// sender's own message counter, so it cannot be replayed into a different
// context. The counter travels with the message; the room's sequence number
// is assigned only after encryption and so cannot be bound here.
func AssociatedData(room domain.RoomID, epoch domain.Epoch, sender domain.Username, counter uint64) []byte {
	ad := make([]byte, 0, len(room)+len(sender)+18)
	ad = append(ad, room...)
	ad = append(ad, 0)
	ad = binary.BigEndian.AppendUint64(ad, uint64(epoch))
	ad = append(ad, sender...)
	ad = append(ad, 0)
	ad = binary.BigEndian.AppendUint64(ad, counter)
	return ad
}

// Encrypt seals plaintext under the session key with a random nonce.
// The nonce is prepended to the returned ciphertext; the Poly1305 tag is
// returned detached.
func Encrypt(key domain.SymmetricKey, plaintext, ad []byte) (ciphertext, tag []byte, err error) {
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, ad)
	split := len(sealed) - TagBytes
	return sealed[:split], sealed[split:], nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any altered byte of
// ciphertext, tag, or associated data yields ErrAuthenticationFailed.
func Decrypt(key domain.SymmetricKey, ciphertext, tag, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() || len(tag) != TagBytes {
		return nil, domain.ErrAuthenticationFailed
	}
	nonce := ciphertext[:aead.NonceSize()]
	sealed := append(append([]byte(nil), ciphertext[aead.NonceSize():]...), tag...)
	plain, err := aead.Open(nil, nonce, sealed, ad)
	if err != nil {
		return nil, domain.ErrAuthenticationFailed
	}
	return plain, nil
}
