package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Peer is the reply path to the client a message came from.
type Peer interface {
	ID() string
	Send(msg any) error
}

// Handler processes client traffic. Calls for one client are sequential and
// in receipt order; calls for different clients run concurrently.
type Handler interface {
	// Welcome sends the initial state to a newly admitted client.
	Welcome(p Peer)
	Handle(p Peer, msg ClientMessage)
	// Reject answers a message that could not be decoded.
	Reject(p Peer, err error)
}

// SessionDetail is one row of GET /api/sessions.
type SessionDetail struct {
	Name       string  `json:"name"`
	Active     bool    `json:"active"`
	PanePID    int     `json:"panePid,omitempty"`
	Command    string  `json:"command,omitempty"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
}

// SessionReporter backs GET /api/sessions.
type SessionReporter interface {
	SessionDetails() ([]SessionDetail, error)
}

type Server struct {
	hub      *Hub
	handler  Handler
	reporter SessionReporter
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, handler Handler) *Server {
	return &Server{
		hub:     hub,
		handler: handler,
		upgrader: websocket.Upgrader{
			// Reachability is controlled by the network overlay; every
			// peer that can connect is admitted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetSessionReporter enables GET /api/sessions. Must be called before
// SetupRoutes.
func (s *Server) SetSessionReporter(r SessionReporter) {
	s.reporter = r
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.reporter != nil {
		mux.HandleFunc("/api/sessions", s.handleSessions)
	}
	mux.HandleFunc("/", s.handleRoot)
}

// handleRoot accepts WebSocket upgrades on the bare address so clients can
// dial ws://host:port without a path.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && websocket.IsWebSocketUpgrade(r) {
		s.handleWS(w, r)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c := s.hub.Add(conn, func(c *Client) { s.handler.Welcome(c) })
	log.Printf("WebSocket client connected: %s (%s)", r.RemoteAddr, c.ID())

	go func() {
		defer func() {
			s.hub.Remove(c)
			log.Printf("WebSocket client disconnected: %s (%s)", r.RemoteAddr, c.ID())
		}()
		s.readLoop(c)
	}()
}

func (s *Server) readLoop(c *Client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := DecodeClientMessage(data)
		if err != nil {
			s.handler.Reject(c, err)
			continue
		}

		if isPing(msg) {
			c.Send(NewPong())
			continue
		}
		s.handler.Handle(c, msg)
	}
}

func isPing(msg ClientMessage) bool {
	return msg.Type == MsgPing || (msg.Type == MsgCommand && msg.Action == ActionPing)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	details, err := s.reporter.SessionDetails()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe binds addr and serves until ctx is cancelled. A bind
// failure is returned immediately.
func ListenAndServe(ctx context.Context, addr string, mux *http.ServeMux) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("Relay listening on ws://%s", ln.Addr())
	return Serve(ctx, ln, mux)
}

// Serve serves on an already bound listener until ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, mux *http.ServeMux) error {
	srv := &http.Server{Handler: securityHeaders(mux)}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
