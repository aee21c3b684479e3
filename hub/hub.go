package hub

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/0reilly/modern-note-app/domain"
)

var _ domain.Membership = (*Hub)(nil)

// Hub owns the connection registry and the room index. A single mutex
// covers both, so membership changes and the fan-out they cause are
// observed as one step by every other connection.
type Hub struct {
	registry *Registry
	rooms    map[string]map[string]struct{}
	now      func() time.Time
	mu       sync.Mutex
}

func New() *Hub {
	return &Hub{
		registry: NewRegistry(),
		rooms:    make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

func (h *Hub) Register(conn domain.Connection, userID string) error {
	h.mu.Lock()
	err := h.registry.Register(conn, userID)
	count := h.registry.Len()
	h.mu.Unlock()

	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	slog.Info("client connected", "clientId", conn.ID(), "userId", userID, "clients", count)
	return nil
}

// Join moves the connection into roomID, leaving its previous room first.
// Joining the room the connection is already in does nothing.
func (h *Hub) Join(connID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, err := h.registry.Lookup(connID)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	if e.Room == roomID {
		return nil
	}
	if e.Room != "" {
		h.leaveLocked(connID, e)
	}

	members, exists := h.rooms[roomID]
	if !exists {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	if err := h.registry.SetRoom(connID, roomID); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	h.fanoutLocked(connID, roomID, domain.Presence(domain.KindUserJoined, e.UserID, roomID, h.now()))
	slog.Info("client joined room", "room", roomID, "clientId", connID, "userId", e.UserID, "members", len(members))
	return nil
}

// Leave removes the connection from roomID. It is a no-op when the
// connection is not in that room.
func (h *Hub) Leave(connID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, err := h.registry.Lookup(connID)
	if err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	if e.Room == "" || e.Room != roomID {
		return nil
	}
	h.leaveLocked(connID, e)
	return nil
}

// Disconnect leaves the connection's current room, if any, and drops it
// from the registry. Unknown ids are ignored so repeated calls are safe.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, err := h.registry.Lookup(connID)
	if err != nil {
		return
	}
	if e.Room != "" {
		h.leaveLocked(connID, e)
	}
	h.registry.Remove(connID)

	slog.Info("client disconnected", "clientId", connID, "userId", e.UserID, "clients", h.registry.Len())
}

// Broadcast delivers frame to every member of roomID except the sender,
// stamping it with the sender's user id. The sender must be in roomID.
func (h *Hub) Broadcast(connID, roomID string, frame domain.Outbound) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, err := h.registry.Lookup(connID)
	if err != nil {
		return 0, fmt.Errorf("broadcast: %w", err)
	}
	if e.Room != roomID {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotAMember, roomID)
	}

	frame.RoomID = roomID
	frame.UserID = e.UserID
	return h.fanoutLocked(connID, roomID, frame), nil
}

func (h *Hub) MembersOf(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) Stats() (rooms, clients int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms), h.registry.Len()
}

// leaveLocked removes connID from e.Room and notifies the members left behind.
func (h *Hub) leaveLocked(connID string, e Entry) {
	roomID := e.Room
	members := h.rooms[roomID]
	delete(members, connID)
	remaining := len(members)
	if remaining == 0 {
		delete(h.rooms, roomID)
		slog.Debug("room removed", "room", roomID)
	}
	// The entry was looked up under the same lock, so SetRoom cannot miss.
	_ = h.registry.SetRoom(connID, "")

	h.fanoutLocked(connID, roomID, domain.Presence(domain.KindUserLeft, e.UserID, roomID, h.now()))
	slog.Info("client left room", "room", roomID, "clientId", connID, "userId", e.UserID, "members", remaining)
}

// fanoutLocked sends frame to the current members of roomID other than
// senderID. Recipients whose send buffer is full miss the frame and are
// closed; their transport then reports the disconnect.
func (h *Hub) fanoutLocked(senderID, roomID string, frame domain.Outbound) int {
	members := h.rooms[roomID]
	if len(members) == 0 {
		return 0
	}

	data, err := frame.Encode()
	if err != nil {
		slog.Warn("marshal error", "room", roomID, "type", frame.Type, "error", err)
		return 0
	}

	delivered := 0
	for id := range members {
		if id == senderID {
			continue
		}
		e, ok := h.registry.entries[id]
		if !ok {
			continue
		}
		if err := e.Conn.Send(data); err != nil {
			slog.Warn("dropping slow client", "room", roomID, "clientId", id, "error", err)
			go func(c domain.Connection) {
				c.Close()
			}(e.Conn)
			continue
		}
		delivered++
	}
	return delivered
}
