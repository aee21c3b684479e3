package websocket

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/0reilly/modern-note-app/auth"
	"github.com/0reilly/modern-note-app/gateway"
)

// ServerConfig holds the upgrade settings and the per-connection options.
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int

	// AllowedOrigins lists the Origin headers accepted on upgrade. Empty or
	// containing "*" accepts any origin.
	AllowedOrigins []string
	Conn           Options
}

// Server authenticates and upgrades /ws requests and starts a connection
// for each one.
type Server struct {
	gateway  *gateway.Gateway
	upgrader websocket.Upgrader
	opts     Options
}

func NewServer(gw *gateway.Gateway, cfg ServerConfig) *Server {
	return &Server{
		gateway: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
		opts: cfg.Conn,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.gateway.Authenticate(r.Context(), auth.Credential(r))
	if err != nil {
		if auth.IsAuthError(err) {
			slog.Warn("socket authentication failed", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "authentication error", http.StatusUnauthorized)
			return
		}
		slog.Error("credential verification error", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade error", "error", err)
		return
	}

	conn := NewConn(uuid.New().String(), ws, s.opts)
	session, err := s.gateway.Attach(conn, userID)
	if err != nil {
		slog.Error("register error", "clientId", conn.ID(), "userId", userID, "error", err)
		conn.Close()
		return
	}
	conn.Start(session)
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
