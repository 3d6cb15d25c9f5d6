package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"parlor/internal/domain"
	"parlor/internal/logging"
	"parlor/internal/room"
	"parlor/internal/store"
)

// Server assembles the relay: durable store, room registry, membership
// coordinator, message relay, history replayer, and the websocket hub.
type Server struct {
	cfg     *Config
	st      *store.Store
	hub     *Hub
	coord   *Coordinator
	relay   *Relay
	history *History
}

// New builds a Server from its configuration and an open store.
func New(cfg *Config, backend *logging.Backend, st *store.Store) *Server {
	hub := NewHub(backend.GetLogger("hub"))
	rooms := room.NewRegistry(st)
	coord := NewCoordinator(rooms, st, hub, backend.GetLogger("coordinator"))
	relay := NewRelay(rooms, st, hub, backend.GetLogger("relay"))

	// A dead connection is an implicit leave.
	hub.OnIdle(func(user domain.Username) {
		coord.LeaveAll(context.Background(), user)
	})

	return &Server{
		cfg:     cfg,
		st:      st,
		hub:     hub,
		coord:   coord,
		relay:   relay,
		history: NewHistory(rooms, st),
	}
}

// Handler returns the relay's HTTP surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /directory/{user}", s.handleDirectory)
	mux.HandleFunc("GET /rooms", s.handleListRooms)
	mux.HandleFunc("POST /rooms/{room}/join", s.handleJoin)
	mux.HandleFunc("POST /rooms/{room}/leave", s.handleLeave)
	mux.HandleFunc("POST /rooms/{room}/messages", s.handleSubmit)
	mux.HandleFunc("GET /rooms/{room}/history", s.handleHistory)
	mux.HandleFunc("GET /events/{user}", s.handleEvents)
	mux.HandleFunc("POST /events/{user}/ack", s.handleAckEvents)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// ListenAndServe runs the relay until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type registerRequest struct {
	User      domain.Username     `json:"user"`
	PublicKey domain.X25519Public `json:"public_key"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.User == "" {
		httpError(w, http.StatusBadRequest, errors.New("user required"))
		return
	}
	if err := s.st.Register(req.User, req.PublicKey); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(r.PathValue("user"))
	pub, found, err := s.st.PublicKey(user)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		httpError(w, http.StatusNotFound, errors.New("unknown user"))
		return
	}
	writeJSON(w, registerRequest{User: user, PublicKey: pub})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.coord.rooms.List())
}

type joinRequest struct {
	User domain.Username `json:"user"`
	Name string          `json:"name,omitempty"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	ack, err := s.coord.Join(r.Context(), domain.RoomID(r.PathValue("room")), req.Name, req.User)
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	writeJSON(w, ack)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.coord.Leave(r.Context(), domain.RoomID(r.PathValue("room")), req.User); err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var m domain.Message
	if !decode(w, r, &m) {
		return
	}
	m.Room = domain.RoomID(r.PathValue("room"))
	stamped, err := s.relay.Submit(r.Context(), m)
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	writeJSON(w, stamped)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(r.URL.Query().Get("user"))
	since, _ := strconv.ParseUint(r.URL.Query().Get("since_epoch"), 10, 64)
	msgs, err := s.history.Replay(r.Context(), domain.RoomID(r.PathValue("room")), user, domain.Epoch(since))
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, msgs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	evs := s.hub.PendingEvents(domain.Username(r.PathValue("user")))
	if evs == nil {
		evs = []domain.KeyDistributionEvent{}
	}
	writeJSON(w, evs)
}

type ackRequest struct {
	Count int `json:"count"`
}

func (s *Server) handleAckEvents(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if !decode(w, r, &req) {
		return
	}
	s.hub.AckEvents(domain.Username(r.PathValue("user")), req.Count)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user := domain.Username(r.URL.Query().Get("user"))
	if user == "" {
		httpError(w, http.StatusBadRequest, errors.New("user required"))
		return
	}
	s.hub.ServeWS(w, r, user)
}

// statusFor maps the domain error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEpochMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotAMember):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
