package room_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
	"parlor/internal/room"
)

func TestJoin_FirstJoinIsEpochZero(t *testing.T) {
	s := room.New("lobby", "")

	res := s.Join("alice")
	require.True(t, res.Changed)
	require.Equal(t, domain.Epoch(0), res.Epoch)
	require.Len(t, res.Members, 1)
	require.True(t, s.RekeyPending())
}

func TestJoin_Idempotent(t *testing.T) {
	s := room.New("lobby", "")
	s.Join("alice")

	res := s.Join("alice")
	require.False(t, res.Changed, "second join must be a no-op")
	require.Equal(t, domain.Epoch(0), res.Epoch)
}

func TestJoinLeave_EpochsStrictlyIncrease(t *testing.T) {
	s := room.New("lobby", "")

	require.Equal(t, domain.Epoch(0), s.Join("alice").Epoch)
	require.Equal(t, domain.Epoch(1), s.Join("bob").Epoch)
	require.Equal(t, domain.Epoch(2), s.Join("carol").Epoch)
	require.Equal(t, domain.Epoch(3), s.Leave("bob").Epoch)
	require.Equal(t, domain.Epoch(4), s.Join("bob").Epoch)
}

func TestLeave_NonMemberIsNoOp(t *testing.T) {
	s := room.New("lobby", "")
	s.Join("alice")

	res := s.Leave("mallory")
	require.False(t, res.Changed)
	require.Equal(t, domain.Epoch(0), res.Epoch)
}

func TestLeave_ExcludesLeaverFromNewEpochMembers(t *testing.T) {
	s := room.New("lobby", "")
	s.Join("alice")
	s.Join("bob")

	res := s.Leave("bob")
	require.True(t, res.Changed)
	require.Len(t, res.Members, 1)
	require.Equal(t, domain.Username("alice"), res.Members[0].User)
}

func TestMemberJoinEpoch_RecordsForwardSecrecyBoundary(t *testing.T) {
	s := room.New("lobby", "")
	s.Join("alice")
	s.Join("bob")

	aliceEpoch, ok := s.MemberJoinEpoch("alice")
	require.True(t, ok)
	require.Equal(t, domain.Epoch(0), aliceEpoch)

	bobEpoch, ok := s.MemberJoinEpoch("bob")
	require.True(t, ok)
	require.Equal(t, domain.Epoch(1), bobEpoch)
}

func TestRekeyComplete_OnlyClearsCurrentEpoch(t *testing.T) {
	s := room.New("lobby", "")
	joined := s.Join("alice")

	// A stale completion (for an epoch already rotated past) keeps the flag.
	s.Join("bob")
	s.RekeyComplete(joined.Epoch)
	require.True(t, s.RekeyPending())

	s.RekeyComplete(joined.Epoch + 1)
	require.False(t, s.RekeyPending())
}

func TestStamp_Validations(t *testing.T) {
	s := room.New("lobby", "")
	s.Join("alice")
	s.Join("bob") // current epoch is now 1

	_, err := s.Stamp(domain.Message{Sender: "mallory", Epoch: 1})
	require.ErrorIs(t, err, domain.ErrNotAMember)

	_, err = s.Stamp(domain.Message{Sender: "alice", Epoch: 0})
	require.ErrorIs(t, err, domain.ErrEpochMismatch)

	m, err := s.Stamp(domain.Message{Sender: "alice", Epoch: 1})
	require.NoError(t, err)
	require.Equal(t, uint64(0), m.Sequence)
	require.Equal(t, domain.RoomID("lobby"), m.Room)
}

func TestStamp_GapFreeUnderConcurrency(t *testing.T) {
	s := room.New("lobby", "")
	senders := []domain.Username{"u0", "u1", "u2", "u3", "u4"}
	for _, u := range senders {
		s.Join(u)
	}
	epoch := domain.Epoch(len(senders) - 1)

	const perSender = 10
	var (
		mu   sync.Mutex
		seqs []uint64
		wg   sync.WaitGroup
	)
	for _, u := range senders {
		wg.Add(1)
		go func(u domain.Username) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				m, err := s.Stamp(domain.Message{Sender: u, Epoch: epoch})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seqs = append(seqs, m.Sequence)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	require.Len(t, seqs, len(senders)*perSender)
	seen := make(map[uint64]bool)
	for _, n := range seqs {
		require.False(t, seen[n], "duplicate sequence %d", n)
		require.Less(t, n, uint64(len(senders)*perSender))
		seen[n] = true
	}
}

func TestResume_ContinuesPastPersistedTail(t *testing.T) {
	s := room.Resume("lobby", "", domain.Message{Epoch: 4, Sequence: 17})
	require.Equal(t, domain.Epoch(4), s.Info().Epoch, "a resumed room sits at the tail's epoch until someone joins")

	// Exactly one epoch is minted by the first join after a restart.
	res := s.Join("alice")
	require.Equal(t, domain.Epoch(5), res.Epoch)

	m, err := s.Stamp(domain.Message{Sender: "alice", Epoch: 5})
	require.NoError(t, err)
	require.Equal(t, uint64(18), m.Sequence)

	// The pre-join epoch can never be stamped against.
	_, err = s.Stamp(domain.Message{Sender: "alice", Epoch: 4})
	require.ErrorIs(t, err, domain.ErrEpochMismatch)
}

func TestRegistry_ActivateAndList(t *testing.T) {
	reg := room.NewRegistry(emptyLog{})

	s1, err := reg.Activate("lobby", "The Lobby")
	require.NoError(t, err)
	s2, err := reg.Activate("lobby", "")
	require.NoError(t, err)
	require.Same(t, s1, s2, "activation must be idempotent")

	_, ok := reg.Lookup("attic")
	require.False(t, ok)

	s1.Join("alice")
	infos := reg.List()
	require.Len(t, infos, 1)
	require.Equal(t, "The Lobby", infos[0].Name)
	require.Equal(t, 1, infos[0].Members)
}

// Resume is exercised through the registry when history already exists.
func TestRegistry_ResumesFromLogTail(t *testing.T) {
	reg := room.NewRegistry(tailLog{tail: domain.Message{Room: "lobby", Epoch: 2, Sequence: 9}})

	s, err := reg.Activate("lobby", "")
	require.NoError(t, err)
	require.Equal(t, domain.Epoch(3), s.Join("alice").Epoch)
}

type emptyLog struct{}

func (emptyLog) Append(domain.Message) error { return nil }
func (emptyLog) ReadRange(domain.RoomID, domain.Epoch) ([]domain.Message, error) {
	return nil, nil
}
func (emptyLog) Tail(domain.RoomID) (domain.Message, bool, error) {
	return domain.Message{}, false, nil
}

type tailLog struct{ tail domain.Message }

func (tailLog) Append(domain.Message) error { return nil }
func (tailLog) ReadRange(domain.RoomID, domain.Epoch) ([]domain.Message, error) {
	return nil, nil
}
func (l tailLog) Tail(domain.RoomID) (domain.Message, bool, error) {
	return l.tail, true, nil
}
