package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"parlor/internal/domain"
)

// HTTP talks JSON over HTTP to a parlor relay server.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for the relay at base, e.g. "http://localhost:8484".
func NewHTTP(base string) *HTTP {
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient}
}

var _ domain.RelayClient = (*HTTP)(nil)

func (c *HTTP) RegisterKey(ctx context.Context, user domain.Username, pub domain.X25519Public) error {
	return c.post(ctx, "/register", struct {
		User      domain.Username     `json:"user"`
		PublicKey domain.X25519Public `json:"public_key"`
	}{user, pub}, nil)
}

func (c *HTTP) FetchPublicKey(ctx context.Context, user domain.Username) (domain.X25519Public, error) {
	var out struct {
		PublicKey domain.X25519Public `json:"public_key"`
	}
	if err := c.getJSON(ctx, "/directory/"+url.PathEscape(string(user)), &out); err != nil {
		return domain.X25519Public{}, err
	}
	return out.PublicKey, nil
}

func (c *HTTP) Join(ctx context.Context, room domain.RoomID, user domain.Username) (domain.JoinAck, error) {
	var ack domain.JoinAck
	err := c.post(ctx, "/rooms/"+url.PathEscape(string(room))+"/join", struct {
		User domain.Username `json:"user"`
	}{user}, &ack)
	return ack, err
}

func (c *HTTP) Leave(ctx context.Context, room domain.RoomID, user domain.Username) error {
	return c.post(ctx, "/rooms/"+url.PathEscape(string(room))+"/leave", struct {
		User domain.Username `json:"user"`
	}{user}, nil)
}

func (c *HTTP) ListRooms(ctx context.Context) ([]domain.RoomInfo, error) {
	var rooms []domain.RoomInfo
	return rooms, c.getJSON(ctx, "/rooms", &rooms)
}

func (c *HTTP) Submit(ctx context.Context, m domain.Message) (domain.Message, error) {
	var stamped domain.Message
	err := c.post(ctx, "/rooms/"+url.PathEscape(string(m.Room))+"/messages", m, &stamped)
	return stamped, err
}

func (c *HTTP) History(ctx context.Context, room domain.RoomID, user domain.Username, sinceEpoch domain.Epoch) ([]domain.Message, error) {
	path := "/rooms/" + url.PathEscape(string(room)) + "/history" +
		"?user=" + url.QueryEscape(string(user)) +
		"&since_epoch=" + strconv.FormatUint(uint64(sinceEpoch), 10)
	var msgs []domain.Message
	return msgs, c.getJSON(ctx, path, &msgs)
}

func (c *HTTP) FetchKeyEvents(ctx context.Context, user domain.Username) ([]domain.KeyDistributionEvent, error) {
	var evs []domain.KeyDistributionEvent
	return evs, c.getJSON(ctx, "/events/"+url.PathEscape(string(user)), &evs)
}

func (c *HTTP) AckKeyEvents(ctx context.Context, user domain.Username, count int) error {
	return c.post(ctx, "/events/"+url.PathEscape(string(user))+"/ack", struct {
		Count int `json:"count"`
	}{count}, nil)
}

// Notification is one nudge frame from the relay's websocket: either a key
// event notice or a freshly relayed message.
type Notification struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message,omitempty"`
}

// Subscribe opens the relay's websocket for user and streams notifications
// into the returned channel until ctx is cancelled or the connection drops,
// at which point the channel closes.
func (c *HTTP) Subscribe(ctx context.Context, user domain.Username) (<-chan Notification, error) {
	wsBase := "ws" + strings.TrimPrefix(c.Base, "http")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsBase+"/ws?user="+url.QueryEscape(string(user)), nil)
	if err != nil {
		return nil, fmt.Errorf("relay subscribe: %w", err)
	}

	ch := make(chan Notification, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var n Notification
			if err := conn.ReadJSON(&n); err != nil {
				return
			}
			select {
			case ch <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *HTTP) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusErr(http.MethodPost, path, resp); err != nil {
		return err
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusErr(http.MethodGet, path, resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusErr maps the relay's error statuses back onto the domain taxonomy so
// callers can branch with errors.Is.
func statusErr(method, path string, resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("relay %s %s: %s: %w", method, path, body.Error, domain.ErrEpochMismatch)
	case http.StatusForbidden:
		return fmt.Errorf("relay %s %s: %s: %w", method, path, body.Error, domain.ErrNotAMember)
	}
	if body.Error != "" {
		return fmt.Errorf("relay %s %s: %s (%s)", method, path, body.Error, resp.Status)
	}
	return fmt.Errorf("relay %s %s: %s", method, path, resp.Status)
}
