// Package gateway binds transport connections to the room state: it
// authenticates a connection before anything is registered, feeds its
// frames to the protocol handler and cleans up exactly once when the
// transport goes away.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/0reilly/modern-note-app/domain"
)

// ErrSessionClosed is returned by Dispatch once the session has been
// closed, including when the client asked for it with a disconnect frame.
var ErrSessionClosed = errors.New("session closed")

type Gateway struct {
	verifier domain.Verifier
	rooms    domain.Membership
	handler  domain.MessageHandler
}

func New(verifier domain.Verifier, rooms domain.Membership, handler domain.MessageHandler) *Gateway {
	return &Gateway{verifier: verifier, rooms: rooms, handler: handler}
}

// Authenticate resolves credential to a user id. It blocks only the
// calling connection's setup.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("%w: no token provided", domain.ErrAuth)
	}
	userID, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Attach registers an authenticated connection and returns its session.
func (g *Gateway) Attach(conn domain.Connection, userID string) (*Session, error) {
	if err := g.rooms.Register(conn, userID); err != nil {
		return nil, err
	}
	return &Session{gateway: g, conn: conn, userID: userID}, nil
}

// Session is the gateway's handle on one registered connection. Dispatch
// must be called from a single goroutine; Close may be called from any.
type Session struct {
	gateway *Gateway
	conn    domain.Connection
	userID  string

	closeOnce sync.Once
	closed    atomic.Bool
}

func (s *Session) UserID() string { return s.userID }

// Dispatch handles one raw inbound frame. Malformed frames and rejected
// events are logged and dropped. A non-nil error means the transport
// should stop reading and close the connection.
func (s *Session) Dispatch(data []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	msg, err := domain.DecodeInbound(data)
	if err != nil {
		slog.Warn("invalid message", "clientId", s.conn.ID(), "error", err)
		return nil
	}

	if msg.Type == domain.KindDisconnect {
		s.Close()
		return ErrSessionClosed
	}

	if err := s.gateway.handler.Handle(s.conn, msg); err != nil {
		slog.Error("registry inconsistency, dropping connection",
			"clientId", s.conn.ID(), "userId", s.userID, "error", err)
		s.Close()
		return err
	}
	return nil
}

// Close removes the connection from the room state. Only the first call
// has any effect, however many close notifications the transport raises.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.gateway.rooms.Disconnect(s.conn.ID())
	})
}
