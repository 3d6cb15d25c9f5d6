package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/op/go-logging.v1"

	"parlor/internal/crypto"
	"parlor/internal/domain"
	"parlor/internal/room"
	"parlor/internal/util/memzero"
)

// Coordinator drives room membership transitions and the rekeying they
// require: every effective join or leave mints a fresh session key for the
// new epoch and wraps it for each entitled member. The plaintext key lives
// only for the duration of the wrap loop and is never persisted or logged.
type Coordinator struct {
	rooms *room.Registry
	dir   domain.Directory
	keys  domain.KeyDeliverer
	log   *logging.Logger
}

// NewCoordinator wires the membership coordinator.
func NewCoordinator(rooms *room.Registry, dir domain.Directory, keys domain.KeyDeliverer, log *logging.Logger) *Coordinator {
	return &Coordinator{rooms: rooms, dir: dir, keys: keys, log: log}
}

// Join registers user in the room (activating it on first join) and, when
// the membership actually changed, distributes the new epoch's key to every
// current member, the joiner included. A member whose key cannot be wrapped
// does not block the join; it is reported in the ack's warning.
func (c *Coordinator) Join(ctx context.Context, id domain.RoomID, name string, user domain.Username) (domain.JoinAck, error) {
	sess, err := c.rooms.Activate(id, name)
	if err != nil {
		return domain.JoinAck{}, err
	}
	res := sess.Join(user)
	ack := domain.JoinAck{Room: id, Epoch: res.Epoch}
	if !res.Changed {
		return ack, nil
	}
	c.log.Infof("room %s: %s joined, epoch %d", id, user, res.Epoch)

	ack.Warning, err = c.rekey(sess, id, res)
	return ack, err
}

// Leave removes user from the room and rekeys for the remaining members
// only; the leaver never receives the new epoch's key. Leaving a room the
// user is not in is a no-op.
func (c *Coordinator) Leave(ctx context.Context, id domain.RoomID, user domain.Username) error {
	sess, ok := c.rooms.Lookup(id)
	if !ok {
		return nil
	}
	res := sess.Leave(user)
	if !res.Changed {
		return nil
	}
	c.log.Infof("room %s: %s left, epoch %d", id, user, res.Epoch)

	warning, err := c.rekey(sess, id, res)
	if warning != "" {
		c.log.Warningf("room %s: %s", id, warning)
	}
	return err
}

// LeaveAll removes user from every room it is in. Used when the transport
// detects a dead connection: the disconnect is an implicit leave.
func (c *Coordinator) LeaveAll(ctx context.Context, user domain.Username) {
	for _, info := range c.rooms.List() {
		if err := c.Leave(ctx, info.ID, user); err != nil {
			c.log.Errorf("implicit leave of %s from %s: %v", user, info.ID, err)
		}
	}
}

// rekey mints the session key for the epoch in res and queues one
// KeyDistributionEvent per member of the frozen member set. The rekey flag
// clears only when every member got an event; otherwise the epoch stays
// marked pending and the returned warning names the gap.
func (c *Coordinator) rekey(sess *room.Session, id domain.RoomID, res room.ChangeResult) (string, error) {
	key, err := crypto.GenerateSessionKey()
	if err != nil {
		// Entropy exhaustion is fatal and non-retryable here.
		return "", fmt.Errorf("mint session key for %s: %w", id, err)
	}
	defer memzero.Zero(key[:])

	issued := time.Now().Unix()
	var missed []string
	for _, member := range res.Members {
		pub, ok, err := c.dir.PublicKey(member.User)
		if err != nil || !ok {
			c.log.Warningf("room %s epoch %d: no public key for %s", id, res.Epoch, member.User)
			missed = append(missed, string(member.User))
			continue
		}
		wrapped, err := crypto.WrapKey(key, pub)
		if err != nil {
			c.log.Warningf("room %s epoch %d: wrap for %s: %v", id, res.Epoch, member.User, err)
			missed = append(missed, string(member.User))
			continue
		}
		c.keys.DeliverKey(domain.KeyDistributionEvent{
			ID:         uuid.NewString(),
			Room:       id,
			Epoch:      res.Epoch,
			Recipient:  member.User,
			WrappedKey: wrapped,
			IssuedAt:   issued,
		})
	}
	if len(missed) > 0 {
		return "key not distributed to: " + strings.Join(missed, ", "), nil
	}
	sess.RekeyComplete(res.Epoch)
	return "", nil
}
