package server

import (
	"context"
	"fmt"

	"gopkg.in/op/go-logging.v1"

	"parlor/internal/domain"
	"parlor/internal/room"
)

// Relay accepts already-encrypted messages, stamps them with the room's
// next sequence number, persists them, and fans them out. The relay never
// decrypts; validation is limited to membership and the claimed epoch.
type Relay struct {
	rooms  *room.Registry
	logDB  domain.MessageLog
	fanout domain.MessageFanout
	log    *logging.Logger
}

// NewRelay wires the message relay.
func NewRelay(rooms *room.Registry, logDB domain.MessageLog, fanout domain.MessageFanout, log *logging.Logger) *Relay {
	return &Relay{rooms: rooms, logDB: logDB, fanout: fanout, log: log}
}

// Submit validates, stamps, persists, and fans out one message. The stamp
// (membership + epoch check + sequence assignment) is linearized in the
// room's session; persistence precedes fan-out, so durability never depends
// on live delivery succeeding.
func (r *Relay) Submit(ctx context.Context, m domain.Message) (domain.Message, error) {
	sess, ok := r.rooms.Lookup(m.Room)
	if !ok {
		return domain.Message{}, fmt.Errorf("room %s: %w", m.Room, domain.ErrNotAMember)
	}
	stamped, err := sess.Stamp(m)
	if err != nil {
		return domain.Message{}, err
	}
	if err := r.logDB.Append(stamped); err != nil {
		return domain.Message{}, fmt.Errorf("persist %s/%d: %w", stamped.Room, stamped.Sequence, err)
	}

	members := sess.Members()
	recipients := make([]domain.Username, 0, len(members))
	for _, rec := range members {
		recipients = append(recipients, rec.User)
	}
	r.fanout.Fanout(recipients, stamped)
	r.log.Debugf("room %s: relayed seq %d epoch %d from %s", stamped.Room, stamped.Sequence, stamped.Epoch, stamped.Sender)
	return stamped, nil
}
