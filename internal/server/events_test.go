package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
)

func TestEventQueueAckDropsOldestFirst(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 3; i++ {
		q.push(domain.KeyDistributionEvent{ID: string(rune('a' + i)), Recipient: "alice", Epoch: domain.Epoch(i)})
	}

	evs := q.pendingFor("alice")
	require.Len(t, evs, 3)
	require.Equal(t, domain.Epoch(0), evs[0].Epoch)

	q.ack("alice", 2)
	evs = q.pendingFor("alice")
	require.Len(t, evs, 1)
	require.Equal(t, domain.Epoch(2), evs[0].Epoch)

	// Over-acking clears the queue instead of panicking.
	q.ack("alice", 10)
	require.Empty(t, q.pendingFor("alice"))
}

func TestEventQueueIsolatesRecipients(t *testing.T) {
	q := newEventQueue()
	q.push(domain.KeyDistributionEvent{ID: "1", Recipient: "alice"})
	q.push(domain.KeyDistributionEvent{ID: "2", Recipient: "bob"})

	q.drop("alice")
	require.Empty(t, q.pendingFor("alice"))
	require.Len(t, q.pendingFor("bob"), 1)
}

func TestEventQueuePendingForReturnsCopy(t *testing.T) {
	q := newEventQueue()
	q.push(domain.KeyDistributionEvent{ID: "1", Recipient: "alice"})

	evs := q.pendingFor("alice")
	evs[0].ID = "mutated"
	require.Equal(t, "1", q.pendingFor("alice")[0].ID)
}
