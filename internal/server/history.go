package server

import (
	"context"
	"fmt"

	"parlor/internal/domain"
	"parlor/internal/room"
)

// History replays persisted room messages to a member. It never decrypts
// and never blocks writers; the member decrypts locally with whatever
// epoch keys it holds.
type History struct {
	rooms *room.Registry
	logDB domain.MessageLog
}

// NewHistory wires the history replayer.
func NewHistory(rooms *room.Registry, logDB domain.MessageLog) *History {
	return &History{rooms: rooms, logDB: logDB}
}

// Replay returns the room's messages with epoch >= sinceEpoch in sequence
// order, clamped to the requesting member's join epoch: no one can page
// back past their own forward-secrecy boundary, whatever they ask for.
// Identical arguments against an unchanged log yield identical results.
func (h *History) Replay(ctx context.Context, id domain.RoomID, user domain.Username, sinceEpoch domain.Epoch) ([]domain.Message, error) {
	sess, ok := h.rooms.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, domain.ErrNotAMember)
	}
	joinEpoch, ok := sess.MemberJoinEpoch(user)
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", user, id, domain.ErrNotAMember)
	}
	if sinceEpoch < joinEpoch {
		sinceEpoch = joinEpoch
	}
	return h.logDB.ReadRange(id, sinceEpoch)
}
