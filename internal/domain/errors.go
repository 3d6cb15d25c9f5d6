package domain

import "errors"

var (
	// ErrAuthenticationFailed means a ciphertext, tag, or its associated
	// data did not verify. The message is discarded, never shown.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrKeyUnavailable means no session key is held for a (room, epoch).
	// Recoverable: the key-distribution event may still be in flight.
	ErrKeyUnavailable = errors.New("session key unavailable")

	// ErrKeyConflict means a (room, epoch) already holds a different key.
	// Fatal for the session: it indicates relay tampering or a protocol bug.
	ErrKeyConflict = errors.New("conflicting session key")

	// ErrEpochMismatch rejects a submit whose claimed epoch is not the
	// room's current epoch. The sender must refresh its keys and resend.
	ErrEpochMismatch = errors.New("claimed epoch is not current")

	// ErrNotAMember rejects an operation by a user outside the room.
	ErrNotAMember = errors.New("not a room member")

	// ErrInvalidKeyMaterial means a wrapped key or public key is malformed
	// or does not unwrap. Fatal: the key pair must be regenerated.
	ErrInvalidKeyMaterial = errors.New("invalid key material")
)
