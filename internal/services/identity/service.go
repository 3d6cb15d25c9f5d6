package identity

import (
	"context"
	"fmt"
	"unicode"

	"parlor/internal/crypto"
	"parlor/internal/domain"
)

// minPassphraseLength is the minimum number of characters in a passphrase.
const minPassphraseLength = 12

// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
var ErrWeakPassphrase = fmt.Errorf(
	"passphrase is too weak (must be at least %d characters and include upper, lower, "+
		"number, and symbol)",
	minPassphraseLength,
)

// Service manages the local identity key pair using a backing store.
type Service struct {
	store domain.IdentityStore
	relay domain.RelayClient
}

// New returns an identity service backed by the given store and relay.
func New(store domain.IdentityStore, relay domain.RelayClient) *Service {
	return &Service{store: store, relay: relay}
}

// Generate creates a new X25519 identity, saves it encrypted with the
// passphrase, and returns it with a short fingerprint of the public key.
func (s *Service) Generate(passphrase string) (domain.Identity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.Identity{}, "", err
	}
	id := domain.Identity{Pub: pub, Priv: priv}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, domain.Fingerprint(crypto.Fingerprint(pub.Slice())), nil
}

// Load decrypts and returns the local identity.
func (s *Service) Load(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

// Register publishes the local public key to the relay's directory under the
// given username, so other members can wrap session keys to it.
func (s *Service) Register(ctx context.Context, passphrase string, user domain.Username) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	if err := s.relay.RegisterKey(ctx, user, id.Pub); err != nil {
		return "", fmt.Errorf("register %s: %w", user, err)
	}
	return domain.Fingerprint(crypto.Fingerprint(id.Pub.Slice())), nil
}

// Fingerprint returns a short fingerprint of the local public key.
func (s *Service) Fingerprint(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(id.Pub.Slice())), nil
}

// PeerFingerprint fetches a peer's published key and returns its fingerprint
// for out-of-band comparison.
func (s *Service) PeerFingerprint(ctx context.Context, user domain.Username) (domain.Fingerprint, error) {
	pub, err := s.relay.FetchPublicKey(ctx, user)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(pub.Slice())), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
