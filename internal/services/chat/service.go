package chat

import (
	"context"
	"errors"
	"fmt"

	"parlor/internal/crypto"
	"parlor/internal/domain"
)

// Service drives one user's room membership and messaging against a relay.
type Service struct {
	relay domain.RelayClient
	keys  domain.KeyStore
	id    domain.Identity
	user  domain.Username
}

// New returns a chat service for user, unwrapping keys with id.
func New(relay domain.RelayClient, keys domain.KeyStore, id domain.Identity, user domain.Username) *Service {
	return &Service{relay: relay, keys: keys, id: id, user: user}
}

// Join enters the room and drains the resulting key-distribution events, so
// the new epoch's key is available locally before the ack is returned.
func (s *Service) Join(ctx context.Context, room domain.RoomID) (domain.JoinAck, error) {
	ack, err := s.relay.Join(ctx, room, s.user)
	if err != nil {
		return domain.JoinAck{}, err
	}
	if err := s.DrainKeyEvents(ctx); err != nil {
		return ack, fmt.Errorf("join %s: %w", room, err)
	}
	return ack, nil
}

// Leave exits the room and purges its keys from the local store. History for
// the room becomes undecryptable on this device; rejoining starts fresh at a
// later epoch.
func (s *Service) Leave(ctx context.Context, room domain.RoomID) error {
	if err := s.relay.Leave(ctx, room, s.user); err != nil {
		return err
	}
	return s.keys.ForgetRoom(room)
}

// Rooms lists the rooms known to the relay.
func (s *Service) Rooms(ctx context.Context) ([]domain.RoomInfo, error) {
	return s.relay.ListRooms(ctx)
}

// Send encrypts plaintext under the room's newest session key and submits it.
// A stale-epoch rejection means the room rekeyed since the last drain; the
// send drains once and retries under the new key. A second rejection is
// returned to the caller.
func (s *Service) Send(ctx context.Context, room domain.RoomID, plaintext []byte) (domain.Message, error) {
	stamped, err := s.sendOnce(ctx, room, plaintext)
	if errors.Is(err, domain.ErrEpochMismatch) {
		if derr := s.DrainKeyEvents(ctx); derr != nil {
			return domain.Message{}, derr
		}
		stamped, err = s.sendOnce(ctx, room, plaintext)
	}
	return stamped, err
}

func (s *Service) sendOnce(ctx context.Context, room domain.RoomID, plaintext []byte) (domain.Message, error) {
	epoch, key, err := s.keys.LatestEpoch(room)
	if errors.Is(err, domain.ErrKeyUnavailable) {
		if derr := s.DrainKeyEvents(ctx); derr != nil {
			return domain.Message{}, derr
		}
		epoch, key, err = s.keys.LatestEpoch(room)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("session key for %s: %w", room, err)
	}
	counter, err := s.keys.NextCounter(room)
	if err != nil {
		return domain.Message{}, err
	}
	ad := crypto.AssociatedData(room, epoch, s.user, counter)
	ciphertext, tag, err := crypto.Encrypt(key, plaintext, ad)
	if err != nil {
		return domain.Message{}, err
	}
	return s.relay.Submit(ctx, domain.Message{
		Room:       room,
		Epoch:      epoch,
		Sender:     s.user,
		Ciphertext: ciphertext,
		Tag:        tag,
		Counter:    counter,
	})
}

// Decrypt opens one relayed message with the locally held key for its epoch.
// ErrKeyUnavailable means this client never held that epoch's key, which is
// the expected shape of messages sent before it joined.
func (s *Service) Decrypt(m domain.Message) (domain.DecryptedMessage, error) {
	key, err := s.keys.Lookup(m.Room, m.Epoch)
	if err != nil {
		return domain.DecryptedMessage{}, err
	}
	ad := crypto.AssociatedData(m.Room, m.Epoch, m.Sender, m.Counter)
	plain, err := crypto.Decrypt(key, m.Ciphertext, m.Tag, ad)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("message %s/%d from %s: %w", m.Room, m.Sequence, m.Sender, err)
	}
	return domain.DecryptedMessage{
		Room:      m.Room,
		Epoch:     m.Epoch,
		Sender:    m.Sender,
		Plaintext: plain,
		Timestamp: m.Timestamp,
		Sequence:  m.Sequence,
	}, nil
}

// History fetches the room's log from sinceEpoch and decrypts what this
// client holds keys for. The relay clamps the range to the join epoch, so a
// missing key inside the range means its event has not been drained yet; one
// drain is attempted before such messages are skipped. Tampered messages
// abort with ErrAuthenticationFailed rather than being skipped.
func (s *Service) History(ctx context.Context, room domain.RoomID, sinceEpoch domain.Epoch) ([]domain.DecryptedMessage, error) {
	msgs, err := s.relay.History(ctx, room, s.user, sinceEpoch)
	if err != nil {
		return nil, err
	}

	drained := false
	out := make([]domain.DecryptedMessage, 0, len(msgs))
	for _, m := range msgs {
		dm, err := s.Decrypt(m)
		if errors.Is(err, domain.ErrKeyUnavailable) && !drained {
			drained = true
			if derr := s.DrainKeyEvents(ctx); derr != nil {
				return nil, derr
			}
			dm, err = s.Decrypt(m)
		}
		switch {
		case errors.Is(err, domain.ErrKeyUnavailable):
			continue
		case err != nil:
			return nil, err
		}
		out = append(out, dm)
	}
	return out, nil
}

// DrainKeyEvents pulls pending key-distribution events, unwraps each with the
// local identity, stores the session keys, and acknowledges what was
// processed. Redelivered events are absorbed by the store's idempotent
// insert; a conflicting key for an already-filled (room, epoch) slot is a
// protocol violation and aborts the drain after acking the clean prefix.
func (s *Service) DrainKeyEvents(ctx context.Context) error {
	evs, err := s.relay.FetchKeyEvents(ctx, s.user)
	if err != nil {
		return err
	}
	processed := 0
	for _, ev := range evs {
		key, err := crypto.UnwrapKey(ev.WrappedKey, s.id.Priv)
		if err != nil {
			s.ack(ctx, processed)
			return fmt.Errorf("unwrap key event %s (%s epoch %d): %w", ev.ID, ev.Room, ev.Epoch, err)
		}
		if err := s.keys.StoreSessionKey(ev.Room, ev.Epoch, key); err != nil {
			s.ack(ctx, processed)
			return fmt.Errorf("store key for %s epoch %d: %w", ev.Room, ev.Epoch, err)
		}
		processed++
	}
	s.ack(ctx, processed)
	return nil
}

// ack is best effort; an unacked event is simply redelivered.
func (s *Service) ack(ctx context.Context, count int) {
	if count > 0 {
		_ = s.relay.AckKeyEvents(ctx, s.user, count)
	}
}
