package keystore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"parlor/internal/domain"
	"parlor/internal/util/memzero"
)

const (
	identityFile = "identity.enc"
	sessionsFile = "sessions.enc"
)

// sessionState is the persisted form of the session-key cache.
type sessionState struct {
	Rooms    map[domain.RoomID]map[domain.Epoch]domain.SymmetricKey `json:"rooms"`
	Counters map[domain.RoomID]uint64                               `json:"counters"`
}

// SaveIdentity writes the long-term key pair encrypted under the passphrase.
func (s *Store) SaveIdentity(passphrase string, id domain.Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	return sealFile(filepath.Join(s.dir, identityFile), passphrase, raw)
}

// LoadIdentity decrypts and returns the long-term key pair.
func (s *Store) LoadIdentity(passphrase string) (domain.Identity, error) {
	raw, err := openFile(filepath.Join(s.dir, identityFile), passphrase)
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(raw)

	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// load reads the session-key state once per Store. Callers hold s.mu.
func (s *Store) load() error {
	if s.loaded {
		return nil
	}
	raw, err := openFile(filepath.Join(s.dir, sessionsFile), s.passphrase)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	var state sessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return err
	}
	if state.Rooms != nil {
		s.rooms = state.Rooms
	}
	if state.Counters != nil {
		s.counters = state.Counters
	}
	s.loaded = true
	return nil
}

// save writes the session-key state. Callers hold s.mu.
func (s *Store) save() error {
	raw, err := json.Marshal(sessionState{Rooms: s.rooms, Counters: s.counters})
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	return sealFile(filepath.Join(s.dir, sessionsFile), s.passphrase, raw)
}

// envelope is the at-rest encryption wrapper. The AEAD key is derived from
// the passphrase with scrypt; the key is fresh per write (random salt), so a
// fixed nonce is safe.
type envelope struct {
	Salt []byte `json:"salt"`
	CT   []byte `json:"ct"`
}

func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }

func sealFile(path, passphrase string, plaintext []byte) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	aead, err := fileAEAD(passphrase, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	blob, err := json.Marshal(envelope{Salt: salt, CT: aead.Seal(nil, nonce, plaintext, salt)})
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}

func openFile(path, passphrase string) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, err
	}
	aead, err := fileAEAD(passphrase, env.Salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	plain, err := aead.Open(nil, nonce, env.CT, env.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", domain.ErrAuthenticationFailed)
	}
	return plain, nil
}

func fileAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	N, r, p := scryptParams()
	key, err := scrypt.Key([]byte(passphrase), salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	return chacha20poly1305.New(key)
}
