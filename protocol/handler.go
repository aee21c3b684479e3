package protocol

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/0reilly/modern-note-app/domain"
)

type handlerFunc func(conn domain.Connection, msg domain.Inbound) error

// Handler dispatches inbound frames by event kind. Rejected events are
// logged and dropped; only errors that mean the connection's registry
// state is broken are returned.
type Handler struct {
	router   *Router
	handlers map[domain.EventKind]handlerFunc
}

func NewHandler(router *Router) *Handler {
	h := &Handler{router: router}
	h.handlers = map[domain.EventKind]handlerFunc{
		domain.KindJoin:   h.join,
		domain.KindLeave:  h.leave,
		domain.KindEdit:   h.edit,
		domain.KindCursor: h.cursor,
		domain.KindPing:   h.ping,
	}
	return h
}

func (h *Handler) Handle(conn domain.Connection, msg domain.Inbound) error {
	fn, ok := h.handlers[msg.Type]
	if !ok {
		slog.Debug("ignoring unknown event", "clientId", conn.ID(), "type", msg.Type)
		return nil
	}

	err := fn(conn, msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotAMember), errors.Is(err, domain.ErrInvalidPayload):
		slog.Warn("event rejected", "clientId", conn.ID(), "type", msg.Type, "room", msg.RoomID, "error", err)
		return nil
	default:
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
}

func (h *Handler) join(conn domain.Connection, msg domain.Inbound) error {
	return h.router.RouteJoin(conn.ID(), msg.RoomID)
}

func (h *Handler) leave(conn domain.Connection, msg domain.Inbound) error {
	return h.router.RouteLeave(conn.ID(), msg.RoomID)
}

func (h *Handler) edit(conn domain.Connection, msg domain.Inbound) error {
	if msg.Content == nil {
		return fmt.Errorf("%w: edit without content", domain.ErrInvalidPayload)
	}
	n, err := h.router.RouteEdit(conn.ID(), msg.RoomID, *msg.Content)
	if err != nil {
		return err
	}
	slog.Debug("edit broadcast", "clientId", conn.ID(), "room", msg.RoomID, "recipients", n)
	return nil
}

func (h *Handler) cursor(conn domain.Connection, msg domain.Inbound) error {
	if msg.Position == nil {
		return fmt.Errorf("%w: cursor without position", domain.ErrInvalidPayload)
	}
	_, err := h.router.RouteCursor(conn.ID(), msg.RoomID, *msg.Position)
	return err
}

// ping answers the sender directly; it touches no room state.
func (h *Handler) ping(conn domain.Connection, msg domain.Inbound) error {
	pong := domain.Outbound{Type: domain.KindPong, Timestamp: domain.Stamp(h.router.now())}
	resp, err := pong.Encode()
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return nil
	}
	if err := conn.Send(resp); err != nil {
		slog.Debug("pong dropped", "clientId", conn.ID(), "error", err)
	}
	return nil
}
