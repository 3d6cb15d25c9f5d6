package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"parlor/internal/crypto"
	"parlor/internal/domain"
	"parlor/internal/room"
)

type fixture struct {
	coord *Coordinator
	rooms *room.Registry
	dir   *memDirectory
	keys  *captureDeliverer
	ids   map[domain.Username]domain.Identity
}

func newFixture(t *testing.T, users ...domain.Username) *fixture {
	t.Helper()
	f := &fixture{
		rooms: room.NewRegistry(newMemLog()),
		dir:   newMemDirectory(),
		keys:  &captureDeliverer{},
		ids:   make(map[domain.Username]domain.Identity),
	}
	for _, u := range users {
		priv, pub, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		f.ids[u] = domain.Identity{Pub: pub, Priv: priv}
		require.NoError(t, f.dir.Register(u, pub))
	}
	f.coord = NewCoordinator(f.rooms, f.dir, f.keys, testLogger("coordinator"))
	return f
}

func (f *fixture) unwrap(t *testing.T, ev domain.KeyDistributionEvent) domain.SymmetricKey {
	t.Helper()
	id, ok := f.ids[ev.Recipient]
	require.True(t, ok, "no identity for %s", ev.Recipient)
	key, err := crypto.UnwrapKey(ev.WrappedKey, id.Priv)
	require.NoError(t, err)
	return key
}

func TestJoinFirstMemberGetsEpochZeroKey(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	ack, err := f.coord.Join(ctx, "lobby", "Lobby", "alice")
	require.NoError(t, err)
	require.Equal(t, domain.Epoch(0), ack.Epoch)
	require.Empty(t, ack.Warning)

	evs := f.keys.forRecipient("alice")
	require.Len(t, evs, 1)
	require.Equal(t, domain.Epoch(0), evs[0].Epoch)
	require.Equal(t, domain.RoomID("lobby"), evs[0].Room)
}

func TestJoinRekeysEveryCurrentMember(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.coord.Join(ctx, "lobby", "", "alice")
	require.NoError(t, err)
	ack, err := f.coord.Join(ctx, "lobby", "", "bob")
	require.NoError(t, err)
	require.Equal(t, domain.Epoch(1), ack.Epoch)

	var epoch1 []domain.KeyDistributionEvent
	for _, ev := range f.keys.all() {
		if ev.Epoch == 1 {
			epoch1 = append(epoch1, ev)
		}
	}
	require.Len(t, epoch1, 2)

	// Both members recover the same epoch-1 key, and it differs from epoch 0.
	k0 := f.unwrap(t, f.keys.forRecipient("alice")[0])
	ka := f.unwrap(t, epoch1[0])
	kb := f.unwrap(t, epoch1[1])
	require.Equal(t, ka, kb)
	require.NotEqual(t, k0, ka)
}

func TestJoinIdempotentMintsNoEvents(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	first, err := f.coord.Join(ctx, "lobby", "", "alice")
	require.NoError(t, err)
	again, err := f.coord.Join(ctx, "lobby", "", "alice")
	require.NoError(t, err)
	require.Equal(t, first.Epoch, again.Epoch)
	require.Len(t, f.keys.all(), 1)
}

func TestLeaveExcludesLeaverFromNewEpoch(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.coord.Join(ctx, "lobby", "", "alice")
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, "lobby", "", "bob")
	require.NoError(t, err)
	require.NoError(t, f.coord.Leave(ctx, "lobby", "bob"))

	for _, ev := range f.keys.forRecipient("bob") {
		require.Less(t, ev.Epoch, domain.Epoch(2), "leaver must not receive the post-leave key")
	}
	var aliceEpoch2 int
	for _, ev := range f.keys.forRecipient("alice") {
		if ev.Epoch == 2 {
			aliceEpoch2++
		}
	}
	require.Equal(t, 1, aliceEpoch2)
}

func TestLeaveUnknownRoomOrNonMemberIsNoop(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	require.NoError(t, f.coord.Leave(ctx, "ghost", "alice"))

	_, err := f.coord.Join(ctx, "lobby", "", "alice")
	require.NoError(t, err)
	before := len(f.keys.all())
	require.NoError(t, f.coord.Leave(ctx, "lobby", "mallory"))
	require.Len(t, f.keys.all(), before)
}

func TestJoinerNeverSeesEarlierEpochKeys(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	_, err := f.coord.Join(ctx, "lobby", "", "alice")
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, "lobby", "", "bob")
	require.NoError(t, err)
	ack, err := f.coord.Join(ctx, "lobby", "", "carol")
	require.NoError(t, err)
	require.Equal(t, domain.Epoch(2), ack.Epoch)

	for _, ev := range f.keys.forRecipient("carol") {
		require.GreaterOrEqual(t, ev.Epoch, domain.Epoch(2))
	}
}

func TestJoinWithUnknownPublicKeyWarnsAndKeepsRekeyPending(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	_, err := f.coord.Join(ctx, "lobby", "", "alice")
	require.NoError(t, err)

	// bob never registered; the join still succeeds but bob gets no key.
	ack, err := f.coord.Join(ctx, "lobby", "", "bob")
	require.NoError(t, err)
	require.Contains(t, ack.Warning, "bob")
	require.Empty(t, f.keys.forRecipient("bob"))

	sess, ok := f.rooms.Lookup("lobby")
	require.True(t, ok)
	require.True(t, sess.RekeyPending())
}

func TestLeaveAllRemovesUserFromEveryRoom(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	for _, id := range []domain.RoomID{"lobby", "dev"} {
		_, err := f.coord.Join(ctx, id, "", "alice")
		require.NoError(t, err)
		_, err = f.coord.Join(ctx, id, "", "bob")
		require.NoError(t, err)
	}

	f.coord.LeaveAll(ctx, "bob")

	for _, id := range []domain.RoomID{"lobby", "dev"} {
		sess, ok := f.rooms.Lookup(id)
		require.True(t, ok)
		_, member := sess.MemberJoinEpoch("bob")
		require.False(t, member)
		require.Equal(t, domain.Epoch(2), sess.Info().Epoch)
	}
}
