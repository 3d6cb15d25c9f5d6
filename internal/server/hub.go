package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
	"gopkg.in/op/go-logging.v1"

	"parlor/internal/domain"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer; clients only send control chatter.
	maxFrameSize = 512

	// Inbound frame rate limit per connection.
	framesPerSecond = 20
	frameBurst      = 30
)

// wsFrame is what the relay pushes to connected clients: either a relayed
// message or a nudge that key-distribution events are waiting to be fetched.
type wsFrame struct {
	Type    string          `json:"type"` // "message" or "key_events"
	Message *domain.Message `json:"message,omitempty"`
}

// Hub tracks connected clients and implements the transport collaborator:
// at-least-once key-event delivery (queue + nudge + client ack) and
// best-effort live message fan-out.
type Hub struct {
	log    *logging.Logger
	events *eventQueue

	// onIdle is invoked when a user's last connection goes away, letting
	// the membership layer treat the disconnect as an implicit leave.
	onIdle func(user domain.Username)

	mu      sync.RWMutex
	clients map[domain.Username]map[*wsClient]struct{}
}

// NewHub returns an empty hub logging through log.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:     log,
		events:  newEventQueue(),
		clients: make(map[domain.Username]map[*wsClient]struct{}),
	}
}

// OnIdle registers the implicit-leave hook. Must be set before serving.
func (h *Hub) OnIdle(fn func(user domain.Username)) { h.onIdle = fn }

// DeliverKey queues ev for its recipient and nudges any live connection.
// Never blocks on delivery completion.
func (h *Hub) DeliverKey(ev domain.KeyDistributionEvent) {
	h.events.push(ev)
	h.send(ev.Recipient, wsFrame{Type: "key_events"})
}

// Fanout pushes m to every connected recipient. Best effort: a slow or
// absent client misses the live copy and reads it from history instead.
func (h *Hub) Fanout(recipients []domain.Username, m domain.Message) {
	frame := wsFrame{Type: "message", Message: &m}
	for _, user := range recipients {
		h.send(user, frame)
	}
}

// PendingEvents returns the user's queued key-distribution events.
func (h *Hub) PendingEvents(user domain.Username) []domain.KeyDistributionEvent {
	return h.events.pendingFor(user)
}

// AckEvents acknowledges the user's oldest count events.
func (h *Hub) AckEvents(user domain.Username, count int) {
	h.events.ack(user, count)
}

func (h *Hub) send(user domain.Username, frame wsFrame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[user] {
		select {
		case c.send <- raw:
		default:
			// Buffer full: drop. Durability comes from the log.
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.user] == nil {
		h.clients[c.user] = make(map[*wsClient]struct{})
	}
	h.clients[c.user][c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients[c.user], c)
	idle := len(h.clients[c.user]) == 0
	if idle {
		delete(h.clients, c.user)
	}
	h.mu.Unlock()

	if idle {
		// The disconnect leaves every room, so undelivered events are for
		// epochs the user no longer belongs to; rejoining mints fresh ones.
		h.events.drop(c.user)
		if h.onIdle != nil {
			h.onIdle(c.user)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades an HTTP request to a client connection for user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, user domain.Username) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warningf("ws upgrade for %s: %v", user, err)
		return
	}
	c := &wsClient{
		hub:     h,
		user:    user,
		conn:    conn,
		send:    make(chan []byte, 128),
		limiter: rate.NewLimiter(rate.Limit(framesPerSecond), frameBurst),
	}
	h.register(c)

	// Anything queued before the connection existed is announced now.
	if len(h.events.pendingFor(user)) > 0 {
		h.send(user, wsFrame{Type: "key_events"})
	}

	go c.writePump()
	go c.readPump()
}

// wsClient is a middleman between one websocket connection and the hub.
type wsClient struct {
	hub     *Hub
	user    domain.Username
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// readPump drains the connection. Clients do not submit data over the
// socket (submission is HTTP), so inbound frames are only read to service
// pongs and detect the peer going away.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debugf("ws read for %s: %v", c.user, err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.hub.log.Warningf("ws client %s over frame rate limit", c.user)
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var (
	_ domain.KeyDeliverer  = (*Hub)(nil)
	_ domain.MessageFanout = (*Hub)(nil)
)
