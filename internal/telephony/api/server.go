package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	types "github.com/sebas/ringbridge/api/types/v1"
	"github.com/sebas/ringbridge/internal/telephony/call"
	"github.com/sebas/ringbridge/internal/telephony/conference"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
	"github.com/sebas/ringbridge/internal/telephony/registry"
)

// DefaultTimeout bounds how long an operation waits for the modem.
const DefaultTimeout = 30 * time.Second

// Executor runs functions on the dispatch loop.
// Implemented by loop.Loop.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// Channels provides the channel operations for the API. Every method is
// called on the dispatch loop.
// Implemented by registry.Registry.
type Channels interface {
	Online() bool
	Snapshot() []registry.Summary
	Stats() registry.Stats
	Lookup(id string) (*call.Session, bool)
	LookupConference(id string) (*conference.Session, bool)
	RequestCall(req registry.CallRequest, done protocol.Completion) (*call.Session, bool, error)
	CreateConference(initial []string, done protocol.Completion) (*conference.Session, error)
	Merge(confID, id string, done protocol.Completion) error
}

// errNotFound is returned for unknown channel ids.
var errNotFound = errors.New("not found")

// Server provides the HTTP API of the bridge (headless, API only)
type Server struct {
	addr       string
	httpServer *http.Server
	exec       Executor
	channels   Channels
	timeout    time.Duration
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(addr string, exec Executor, channels Channels) *Server {
	s := &Server{
		addr:      addr,
		exec:      exec,
		channels:  channels,
		timeout:   DefaultTimeout,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()

	// Health and stats
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Channels
	mux.HandleFunc("/api/v1/channels", s.handleChannels)
	mux.HandleFunc("/api/v1/channels/", s.handleChannelByID)
	mux.HandleFunc("/api/v1/conferences", s.handleConferences)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SetTimeout changes how long operations wait for the modem.
func (s *Server) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	slog.Info("[API] Starting HTTP API server", "addr", l.Addr())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// onLoop runs fn on the dispatch loop.
func (s *Server) onLoop(ctx context.Context, fn func()) error {
	return s.exec.Do(ctx, fn)
}

// execute issues an operation on the loop and waits for its completion.
// A synchronous error is returned as is.
func (s *Server) execute(ctx context.Context, op func(done protocol.Completion) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := make(chan error, 1)
	reply := func(err error) {
		select {
		case result <- err:
		default:
		}
	}
	if err := s.onLoop(ctx, func() {
		if err := op(reply); err != nil {
			reply(err)
		}
	}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Health & Stats ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var online bool
	if err := s.onLoop(r.Context(), func() { online = s.channels.Online() }); err != nil {
		s.writeError(w, err)
		return
	}

	status := "ok"
	if !online {
		status = "degraded"
	}
	s.writeJSON(w, types.HealthResponse{
		Status: status,
		Uptime: int64(time.Since(s.startTime).Seconds()),
		Online: online,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var st registry.Stats
	if err := s.onLoop(r.Context(), func() { st = s.channels.Stats() }); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, types.StatsResponse{
		Online:            st.Online,
		Calls:             st.Calls,
		ActiveCalls:       st.Active,
		HeldCalls:         st.Held,
		RingingCalls:      st.Ringing,
		Conferences:       st.Conferences,
		ConferenceMembers: st.Members,
	})
}

// --- Channels ---

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listChannels(w, r)
	case http.MethodPost:
		s.dial(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	var snapshot []registry.Summary
	if err := s.onLoop(r.Context(), func() { snapshot = s.channels.Snapshot() }); err != nil {
		s.writeError(w, err)
		return
	}

	response := make([]types.Channel, 0, len(snapshot))
	for _, sum := range snapshot {
		response = append(response, toChannel(sum))
	}
	s.writeJSON(w, response)
}

func (s *Server) dial(w http.ResponseWriter, r *http.Request) {
	var req types.DialRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	clir, err := parseCLIR(req.CLIR)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var resp types.DialResponse
	err = s.execute(r.Context(), func(done protocol.Completion) error {
		sess, existing, err := s.channels.RequestCall(registry.CallRequest{
			Target: req.Target,
			Ensure: req.Ensure,
			Video:  req.Video,
			CLIR:   clir,
		}, done)
		if err != nil {
			return err
		}
		resp = types.DialResponse{Channel: sess.ID(), Existing: existing}
		return nil
	})
	if err != nil {
		slog.Info("[API] Dial failed", "target", req.Target, "error", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, resp)
}

// handleChannelByID serves /api/v1/channels/{id} and
// /api/v1/channels/{id}/{operation}.
func (s *Server) handleChannelByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/channels/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" || len(parts) > 2 {
		http.Error(w, "Invalid path. Expected /api/v1/channels/{id}[/{operation}]", http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.getChannel(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	op, ok := s.operation(w, r, parts[1])
	if !ok {
		return
	}
	if err := s.execute(r.Context(), func(done protocol.Completion) error {
		return op(id, done)
	}); err != nil {
		slog.Info("[API] Operation failed", "channel", id, "operation", parts[1], "error", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, types.OperationResponse{Channel: id, Status: "ok"})
}

func (s *Server) getChannel(w http.ResponseWriter, r *http.Request, id string) {
	var (
		found bool
		sum   registry.Summary
	)
	if err := s.onLoop(r.Context(), func() {
		for _, c := range s.channels.Snapshot() {
			if c.ID == id {
				sum, found = c, true
				return
			}
		}
	}); err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, errNotFound)
		return
	}
	s.writeJSON(w, toChannel(sum))
}

func (s *Server) handleConferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req types.ConferenceRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	var id string
	err := s.execute(r.Context(), func(done protocol.Completion) error {
		c, err := s.channels.CreateConference(req.Channels, done)
		if err != nil {
			return err
		}
		id = c.ID()
		return nil
	})
	if err != nil {
		slog.Info("[API] Conference failed", "channels", req.Channels, "error", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, types.OperationResponse{Channel: id, Status: "ok"})
}

// --- Helpers ---

// readJSON decodes the request body into v. An empty body leaves v alone.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, protocol.Errorf(protocol.ErrInvalidArgument, "Invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("[API] Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("[API] Failed to encode error", "error", err)
	}
}

func toChannel(sum registry.Summary) types.Channel {
	return types.Channel{
		ID:              sum.ID,
		Kind:            sum.Kind,
		Peer:            sum.Peer,
		Direction:       sum.Direction,
		State:           sum.State,
		Hold:            sum.Hold,
		Conference:      sum.Conference,
		Members:         sum.Members,
		Emergency:       sum.Emergency,
		PendingRequests: sum.Pending,
		Stream:          sum.Stream,
		Media:           sum.Media,
		CallFlags:       uint32(sum.Flags),
		GroupFlags:      uint32(sum.Group),
	}
}
