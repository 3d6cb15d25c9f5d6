// Package room holds the per-room server-side session state machine:
// membership, the session-key epoch counter, and message sequencing.
package room

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"parlor/internal/domain"
)

// State is the lifecycle of a room session.
type State int

const (
	// Empty means no room object exists yet; the first join activates it.
	Empty State = iota
	// Active is every state after the first join. Rooms never terminate.
	Active
)

// Session is the single owned state object for one room. Every mutation —
// join, leave, epoch increment, sequence assignment — happens under one
// mutex, so concurrent operations on the same room are linearized in
// arrival order. Different rooms are fully independent.
type Session struct {
	mu sync.Mutex

	id    domain.RoomID
	name  string
	state State

	epoch        domain.Epoch
	members      map[domain.Username]domain.MemberRecord
	rekeyPending bool
	nextSeq      uint64
}

// ChangeResult reports a membership transition. Members is the frozen member
// set entitled to the new epoch's key; Changed is false for idempotent
// no-op joins and leaves, in which case no rekey is due.
type ChangeResult struct {
	Epoch   domain.Epoch
	Members []domain.MemberRecord
	Changed bool
}

// New returns a session for id in the Empty state.
func New(id domain.RoomID, name string) *Session {
	if name == "" {
		name = string(id)
	}
	return &Session{
		id:      id,
		name:    name,
		members: make(map[domain.Username]domain.MemberRecord),
	}
}

// Resume seeds a fresh session from the persisted log tail so epochs and
// sequence numbers continue past a server restart instead of colliding with
// already-persisted messages. The session resumes at the tail's epoch; the
// room is Active with no members, so the first join increments past it and
// nothing can be stamped against the stale epoch in between.
func Resume(id domain.RoomID, name string, tail domain.Message) *Session {
	s := New(id, name)
	s.state = Active
	s.epoch = tail.Epoch
	s.nextSeq = tail.Sequence + 1
	return s
}

// Join adds user and mints a new epoch. The first-ever join activates the
// room at epoch 0; later joins increment the epoch so the joiner can never
// decrypt messages sent before it joined. Joining twice is a no-op.
func (s *Session) Join(user domain.Username) ChangeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[user]; ok {
		return ChangeResult{Epoch: s.epoch, Members: s.memberList()}
	}
	if s.state == Empty {
		s.state = Active
	} else {
		s.epoch++
	}
	s.members[user] = domain.MemberRecord{User: user, JoinedEpoch: s.epoch}
	s.rekeyPending = true
	return ChangeResult{Epoch: s.epoch, Members: s.memberList(), Changed: true}
}

// Leave removes user and mints a new epoch for the remaining members, so a
// departed member's cached key stops working. Leaving a room the user is
// not in is a no-op.
func (s *Session) Leave(user domain.Username) ChangeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[user]; !ok {
		return ChangeResult{Epoch: s.epoch, Members: s.memberList()}
	}
	delete(s.members, user)
	s.epoch++
	s.rekeyPending = true
	return ChangeResult{Epoch: s.epoch, Members: s.memberList(), Changed: true}
}

// RekeyComplete clears the pending-rekey flag once every current member has
// been issued a key-distribution event for epoch. A later transition keeps
// the flag if epoch is already stale.
func (s *Session) RekeyComplete(epoch domain.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch == s.epoch {
		s.rekeyPending = false
	}
}

// RekeyPending reports whether the current epoch still awaits distribution.
func (s *Session) RekeyPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rekeyPending
}

// Stamp validates a submit and assigns the room's next sequence number.
// The claimed epoch must be current and the sender a member; both checks
// and the sequence assignment share the session mutex, so no two messages
// in a room ever receive the same sequence number and a message can never
// be stamped against an epoch that has already rotated.
func (s *Session) Stamp(m domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.Sender]; !ok {
		return domain.Message{}, fmt.Errorf("%s in %s: %w", m.Sender, s.id, domain.ErrNotAMember)
	}
	if m.Epoch != s.epoch {
		return domain.Message{}, fmt.Errorf("claimed %d, current %d: %w", m.Epoch, s.epoch, domain.ErrEpochMismatch)
	}
	m.Room = s.id
	m.Sequence = s.nextSeq
	m.Timestamp = time.Now().Unix()
	s.nextSeq++
	return m, nil
}

// MemberJoinEpoch returns the epoch at which user joined, if a member.
func (s *Session) MemberJoinEpoch(user domain.Username) (domain.Epoch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.members[user]
	return rec.JoinedEpoch, ok
}

// Members returns the current member set, ordered by username.
func (s *Session) Members() []domain.MemberRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberList()
}

// Info returns a public snapshot of the room.
func (s *Session) Info() domain.RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.RoomInfo{ID: s.id, Name: s.name, Epoch: s.epoch, Members: len(s.members)}
}

// memberList copies the member set while holding s.mu.
func (s *Session) memberList() []domain.MemberRecord {
	out := make([]domain.MemberRecord, 0, len(s.members))
	for _, rec := range s.members {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}
