package domain

// Username is an opaque, already-authenticated user identifier.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// RoomID identifies a chat room.
type RoomID string

// String returns the string form of the room identifier.
func (r RoomID) String() string { return string(r) }

// Epoch numbers a room's session-key generation. Epochs start at 0 on the
// first join and only ever increase.
type Epoch uint64

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// SymmetricKey is a per-epoch room session key.
type SymmetricKey [32]byte

// Slice returns the key as a []byte.
func (k SymmetricKey) Slice() []byte { return k[:] }

// WrappedKey is a session key encrypted to one recipient's public key:
// a 32-byte ephemeral X25519 public key followed by the sealed key.
type WrappedKey []byte

// Identity holds a user's long-term X25519 key pair. The private half never
// leaves the owning client.
type Identity struct {
	Pub  X25519Public  `json:"pub"`
	Priv X25519Private `json:"priv"`
}

// Fingerprint is a short public-key digest presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// MemberRecord ties a room member to the epoch at which it joined. A member
// holds keys for its join epoch forward, never earlier ones.
type MemberRecord struct {
	User        Username `json:"user"`
	JoinedEpoch Epoch    `json:"joined_epoch"`
}

// KeyDistributionEvent carries one epoch's session key, wrapped for exactly
// one recipient. Immutable once issued; redelivery is idempotent-safe.
type KeyDistributionEvent struct {
	ID         string     `json:"id"`
	Room       RoomID     `json:"room"`
	Epoch      Epoch      `json:"epoch"`
	Recipient  Username   `json:"recipient"`
	WrappedKey WrappedKey `json:"wrapped_key"`
	IssuedAt   int64      `json:"issued_at"`
}

// Message is an encrypted room message as persisted and relayed. The server
// never sees the plaintext; Counter is the sender's own per-room counter and
// is bound into the AEAD associated data, Sequence is assigned by the room.
type Message struct {
	Room       RoomID   `json:"room"`
	Epoch      Epoch    `json:"epoch"`
	Sender     Username `json:"sender"`
	Ciphertext []byte   `json:"ciphertext"`
	Tag        []byte   `json:"tag"`
	Counter    uint64   `json:"counter"`
	Timestamp  int64    `json:"timestamp"`
	Sequence   uint64   `json:"sequence"`
}

// DecryptedMessage is a room message after client-side decryption.
type DecryptedMessage struct {
	Room      RoomID   `json:"room"`
	Epoch     Epoch    `json:"epoch"`
	Sender    Username `json:"sender"`
	Plaintext []byte   `json:"plaintext"`
	Timestamp int64    `json:"timestamp"`
	Sequence  uint64   `json:"sequence"`
}

// RoomInfo is a public snapshot of a room's state.
type RoomInfo struct {
	ID      RoomID `json:"id"`
	Name    string `json:"name"`
	Epoch   Epoch  `json:"epoch"`
	Members int    `json:"members"`
}

// JoinAck is returned to a joining user. Warning is non-empty when the key
// for the new epoch could not be wrapped for every member ("partially
// delivered"); the join itself still succeeds.
type JoinAck struct {
	Room    RoomID `json:"room"`
	Epoch   Epoch  `json:"epoch"`
	Warning string `json:"warning,omitempty"`
}
