package server

import (
	"io"
	"sort"
	"sync"

	"gopkg.in/op/go-logging.v1"

	"parlor/internal/domain"
	parlorlogging "parlor/internal/logging"
)

func testLogger(module string) *logging.Logger {
	backend, err := parlorlogging.New(io.Discard, "CRITICAL")
	if err != nil {
		panic(err)
	}
	return backend.GetLogger(module)
}

// memDirectory is an in-memory user directory.
type memDirectory struct {
	mu   sync.Mutex
	keys map[domain.Username]domain.X25519Public
}

func newMemDirectory() *memDirectory {
	return &memDirectory{keys: make(map[domain.Username]domain.X25519Public)}
}

func (d *memDirectory) Register(user domain.Username, pub domain.X25519Public) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[user] = pub
	return nil
}

func (d *memDirectory) PublicKey(user domain.Username) (domain.X25519Public, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pub, ok := d.keys[user]
	return pub, ok, nil
}

// captureDeliverer records every minted key-distribution event.
type captureDeliverer struct {
	mu     sync.Mutex
	events []domain.KeyDistributionEvent
}

func (c *captureDeliverer) DeliverKey(ev domain.KeyDistributionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureDeliverer) all() []domain.KeyDistributionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.KeyDistributionEvent(nil), c.events...)
}

func (c *captureDeliverer) forRecipient(user domain.Username) []domain.KeyDistributionEvent {
	var out []domain.KeyDistributionEvent
	for _, ev := range c.all() {
		if ev.Recipient == user {
			out = append(out, ev)
		}
	}
	return out
}

// memLog is an in-memory MessageLog.
type memLog struct {
	mu   sync.Mutex
	msgs map[domain.RoomID][]domain.Message
}

func newMemLog() *memLog {
	return &memLog{msgs: make(map[domain.RoomID][]domain.Message)}
}

func (l *memLog) Append(m domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs[m.Room] = append(l.msgs[m.Room], m)
	return nil
}

func (l *memLog) ReadRange(room domain.RoomID, sinceEpoch domain.Epoch) ([]domain.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Message
	for _, m := range l.msgs[room] {
		if m.Epoch >= sinceEpoch {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (l *memLog) Tail(room domain.RoomID) (domain.Message, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := l.msgs[room]
	if len(msgs) == 0 {
		return domain.Message{}, false, nil
	}
	tail := msgs[0]
	for _, m := range msgs[1:] {
		if m.Sequence > tail.Sequence {
			tail = m
		}
	}
	return tail, true, nil
}

// captureFanout records live-delivery attempts.
type captureFanout struct {
	mu    sync.Mutex
	calls []fanoutCall
}

type fanoutCall struct {
	recipients []domain.Username
	msg        domain.Message
}

func (f *captureFanout) Fanout(recipients []domain.Username, m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fanoutCall{recipients: recipients, msg: m})
}

func (f *captureFanout) last() (fanoutCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return fanoutCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}
