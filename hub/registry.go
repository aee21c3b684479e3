package hub

import (
	"fmt"

	"github.com/0reilly/modern-note-app/domain"
)

// Entry is the registry's view of one live connection.
// Room is empty while the connection is not in any room.
type Entry struct {
	Conn   domain.Connection
	UserID string
	Room   string
}

// Registry maps connection ids to entries. It is not safe for concurrent
// use; Hub serializes access to it.
type Registry struct {
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

func (r *Registry) Register(conn domain.Connection, userID string) error {
	id := conn.ID()
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateConnection, id)
	}
	r.entries[id] = Entry{Conn: conn, UserID: userID}
	return nil
}

func (r *Registry) Lookup(connID string) (Entry, error) {
	e, ok := r.entries[connID]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connID)
	}
	return e, nil
}

// SetRoom updates the connection's current room. An empty roomID unsets it.
func (r *Registry) SetRoom(connID, roomID string) error {
	e, ok := r.entries[connID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connID)
	}
	e.Room = roomID
	r.entries[connID] = e
	return nil
}

// Remove deletes the entry and returns its last state. Removing an absent
// id reports false and does nothing else.
func (r *Registry) Remove(connID string) (Entry, bool) {
	e, ok := r.entries[connID]
	if ok {
		delete(r.entries, connID)
	}
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}
