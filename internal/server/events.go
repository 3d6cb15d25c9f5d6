package server

import (
	"sync"

	"parlor/internal/domain"
)

// eventQueue is the store-and-forward side of key distribution: events stay
// queued per recipient until acknowledged, giving at-least-once delivery to
// clients that are offline when an epoch is minted. Redelivery is safe
// because unwrapping an event is idempotent.
//
// The queue is in-memory on purpose: room membership resets on relay
// restart, so members rejoin and fresh events are minted.
type eventQueue struct {
	mu      sync.Mutex
	pending map[domain.Username][]domain.KeyDistributionEvent
}

func newEventQueue() *eventQueue {
	return &eventQueue{pending: make(map[domain.Username][]domain.KeyDistributionEvent)}
}

// push appends an event to the recipient's queue.
func (q *eventQueue) push(ev domain.KeyDistributionEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[ev.Recipient] = append(q.pending[ev.Recipient], ev)
}

// pendingFor returns a copy of the user's queued events, oldest first.
func (q *eventQueue) pendingFor(user domain.Username) []domain.KeyDistributionEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.KeyDistributionEvent(nil), q.pending[user]...)
}

// ack drops the user's oldest count events.
func (q *eventQueue) ack(user domain.Username, count int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.pending[user]
	if count >= len(evs) {
		delete(q.pending, user)
		return
	}
	q.pending[user] = evs[count:]
}

// drop discards everything queued for user (used once the user is gone).
func (q *eventQueue) drop(user domain.Username) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, user)
}
