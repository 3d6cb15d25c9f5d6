package domain

import "context"

// MessageLog is the storage collaborator: a durable, per-room-ordered,
// append-only log of encrypted messages. Records are immutable once appended.
type MessageLog interface {
	// Append persists m under its already-assigned sequence number.
	Append(m Message) error
	// ReadRange returns all messages in room with epoch >= sinceEpoch,
	// in increasing sequence order.
	ReadRange(room RoomID, sinceEpoch Epoch) ([]Message, error)
	// Tail returns the last message persisted for room, if any.
	Tail(room RoomID) (Message, bool, error)
}

// Directory is the user-directory collaborator mapping users to their
// published public keys.
type Directory interface {
	PublicKey(user Username) (X25519Public, bool, error)
	Register(user Username, pub X25519Public) error
}

// KeyDeliverer queues key-distribution events for transport delivery.
// Delivery is fire-and-forget here; the transport retries until the
// recipient acknowledges or disconnects.
type KeyDeliverer interface {
	DeliverKey(ev KeyDistributionEvent)
}

// MessageFanout pushes a relayed message to currently connected members.
// Best effort only; durability comes from the MessageLog.
type MessageFanout interface {
	Fanout(recipients []Username, m Message)
}

// KeyStore is the client-side cache of unwrapped session keys plus the
// bookkeeping the client needs to encrypt (latest epoch, send counter).
type KeyStore interface {
	// StoreSessionKey inserts idempotently and returns ErrKeyConflict if
	// the (room, epoch) slot already holds a different key.
	StoreSessionKey(room RoomID, epoch Epoch, key SymmetricKey) error
	// Lookup returns ErrKeyUnavailable when no key is held yet.
	Lookup(room RoomID, epoch Epoch) (SymmetricKey, error)
	// LatestEpoch returns the highest epoch with a stored key for room, or
	// ErrKeyUnavailable when no key is held yet. Other errors mean the
	// store itself could not be read.
	LatestEpoch(room RoomID) (Epoch, SymmetricKey, error)
	// NextCounter returns a strictly increasing per-room send counter.
	NextCounter(room RoomID) (uint64, error)
	// ForgetRoom purges every key for room. One-way.
	ForgetRoom(room RoomID) error
}

// IdentityStore persists the user's long-term key pair, encrypted at rest.
type IdentityStore interface {
	SaveIdentity(passphrase string, id Identity) error
	LoadIdentity(passphrase string) (Identity, error)
}

// RelayClient is how the client talks to the relay server.
type RelayClient interface {
	RegisterKey(ctx context.Context, user Username, pub X25519Public) error
	FetchPublicKey(ctx context.Context, user Username) (X25519Public, error)

	Join(ctx context.Context, room RoomID, user Username) (JoinAck, error)
	Leave(ctx context.Context, room RoomID, user Username) error
	ListRooms(ctx context.Context) ([]RoomInfo, error)

	Submit(ctx context.Context, m Message) (Message, error)
	History(ctx context.Context, room RoomID, user Username, sinceEpoch Epoch) ([]Message, error)

	FetchKeyEvents(ctx context.Context, user Username) ([]KeyDistributionEvent, error)
	AckKeyEvents(ctx context.Context, user Username, count int) error
}
