package keystore

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"parlor/internal/domain"
	"parlor/internal/util/memzero"
)

// Store implements domain.KeyStore and domain.IdentityStore on disk.
type Store struct {
	dir        string
	passphrase string

	mu       sync.Mutex
	rooms    map[domain.RoomID]map[domain.Epoch]domain.SymmetricKey
	counters map[domain.RoomID]uint64
	loaded   bool
}

// Open returns a Store rooted at dir. Session-key state is lazily loaded
// and re-encrypted under passphrase on every mutation.
func Open(dir, passphrase string) *Store {
	return &Store{
		dir:        dir,
		passphrase: passphrase,
		rooms:      make(map[domain.RoomID]map[domain.Epoch]domain.SymmetricKey),
		counters:   make(map[domain.RoomID]uint64),
	}
}

// StoreSessionKey inserts a session key for (room, epoch). Inserting the
// same key again is a no-op; a differing key for an occupied slot is
// ErrKeyConflict, which is fatal for the session.
func (s *Store) StoreSessionKey(room domain.RoomID, epoch domain.Epoch, key domain.SymmetricKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}

	keys := s.rooms[room]
	if keys == nil {
		keys = make(map[domain.Epoch]domain.SymmetricKey)
		s.rooms[room] = keys
	}
	if held, ok := keys[epoch]; ok {
		if subtle.ConstantTimeCompare(held.Slice(), key.Slice()) != 1 {
			return fmt.Errorf("room %s epoch %d: %w", room, epoch, domain.ErrKeyConflict)
		}
		return nil
	}
	keys[epoch] = key
	return s.save()
}

// Lookup returns the session key for (room, epoch). ErrKeyUnavailable means
// the key-distribution event has not arrived yet or the message predates the
// user's membership; callers treat it as "cannot decrypt yet".
func (s *Store) Lookup(room domain.RoomID, epoch domain.Epoch) (domain.SymmetricKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return domain.SymmetricKey{}, err
	}

	key, ok := s.rooms[room][epoch]
	if !ok {
		return domain.SymmetricKey{}, fmt.Errorf("room %s epoch %d: %w", room, epoch, domain.ErrKeyUnavailable)
	}
	return key, nil
}

// LatestEpoch returns the highest epoch with a stored key for room.
// ErrKeyUnavailable means no key is held yet; an unreadable store (wrong
// passphrase, corruption) surfaces as its own error, not as key absence.
func (s *Store) LatestEpoch(room domain.RoomID) (domain.Epoch, domain.SymmetricKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return 0, domain.SymmetricKey{}, err
	}

	keys := s.rooms[room]
	if len(keys) == 0 {
		return 0, domain.SymmetricKey{}, fmt.Errorf("room %s: %w", room, domain.ErrKeyUnavailable)
	}
	var best domain.Epoch
	found := false
	for epoch := range keys {
		if !found || epoch > best {
			best = epoch
			found = true
		}
	}
	return best, keys[best], nil
}

// NextCounter returns the next per-room send counter, starting at 0.
func (s *Store) NextCounter(room domain.RoomID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return 0, err
	}

	n := s.counters[room]
	s.counters[room] = n + 1
	if err := s.save(); err != nil {
		return 0, err
	}
	return n, nil
}

// ForgetRoom purges every key and the counter for room. One-way: used on
// leave, with no recovery path.
func (s *Store) ForgetRoom(room domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}

	for epoch, key := range s.rooms[room] {
		memzero.Zero(key[:])
		delete(s.rooms[room], epoch)
	}
	delete(s.rooms, room)
	delete(s.counters, room)
	return s.save()
}

var (
	_ domain.KeyStore      = (*Store)(nil)
	_ domain.IdentityStore = (*Store)(nil)
)
