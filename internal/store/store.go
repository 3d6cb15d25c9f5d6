// Package store implements the relay's durable state on bbolt: the
// append-only per-room message log and the user public-key directory.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"parlor/internal/domain"
)

var (
	messagesBucket  = []byte("messages")
	directoryBucket = []byte("directory")
)

// Store is a single bbolt database backing both collaborator interfaces.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the relay database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(messagesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(directoryBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Append persists m in its room's bucket, keyed by sequence number. Records
// are immutable: overwriting an existing sequence is refused.
func (s *Store) Append(m domain.Message) error {
	raw, err := cbor.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(messagesBucket).CreateBucketIfNotExists([]byte(m.Room))
		if err != nil {
			return err
		}
		key := seqKey(m.Sequence)
		if b.Get(key) != nil {
			return fmt.Errorf("room %s sequence %d already persisted", m.Room, m.Sequence)
		}
		return b.Put(key, raw)
	})
}

// ReadRange returns room messages with epoch >= sinceEpoch in sequence
// order. The log is immutable, so repeated calls with the same arguments
// return identical sequences.
func (s *Store) ReadRange(room domain.RoomID, sinceEpoch domain.Epoch) ([]domain.Message, error) {
	var out []domain.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket).Bucket([]byte(room))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, raw []byte) error {
			var m domain.Message
			if err := cbor.Unmarshal(raw, &m); err != nil {
				return err
			}
			if m.Epoch >= sinceEpoch {
				out = append(out, m)
			}
			return nil
		})
	})
	return out, err
}

// Tail returns the last message persisted for room, if any.
func (s *Store) Tail(room domain.RoomID) (domain.Message, bool, error) {
	var (
		m     domain.Message
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket).Bucket([]byte(room))
		if b == nil {
			return nil
		}
		_, raw := b.Cursor().Last()
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &m)
	})
	return m, found, err
}

// Register publishes (or refreshes) a user's public key.
func (s *Store) Register(user domain.Username, pub domain.X25519Public) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(directoryBucket).Put([]byte(user), pub.Slice())
	})
}

// PublicKey returns the published key for user, if registered.
func (s *Store) PublicKey(user domain.Username) (domain.X25519Public, bool, error) {
	var (
		pub   domain.X25519Public
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(directoryBucket).Get([]byte(user))
		if len(raw) != len(pub) {
			return nil
		}
		copy(pub[:], raw)
		found = true
		return nil
	})
	return pub, found, err
}

// seqKey encodes a sequence number so bucket order equals numeric order.
func seqKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

var (
	_ domain.MessageLog = (*Store)(nil)
	_ domain.Directory  = (*Store)(nil)
)
