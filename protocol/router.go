package protocol

import (
	"fmt"
	"time"
	"unicode"

	"github.com/0reilly/modern-note-app/domain"
)

// MaxRoomIDLength bounds room ids accepted from clients, in bytes.
const MaxRoomIDLength = 256

// Router validates client events and fans them out through the room state.
type Router struct {
	rooms domain.Membership
	now   func() time.Time
}

func NewRouter(rooms domain.Membership) *Router {
	return &Router{rooms: rooms, now: time.Now}
}

func (r *Router) RouteJoin(connID, roomID string) error {
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}
	return r.rooms.Join(connID, roomID)
}

func (r *Router) RouteLeave(connID, roomID string) error {
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}
	return r.rooms.Leave(connID, roomID)
}

// RouteEdit broadcasts content to the other members of roomID. Edits are
// not versioned; each receiver keeps whichever content arrived last.
func (r *Router) RouteEdit(connID, roomID, content string) (int, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return 0, err
	}
	return r.rooms.Broadcast(connID, roomID, domain.Outbound{
		Type:      domain.KindContentUpdated,
		Content:   &content,
		Timestamp: domain.Stamp(r.now()),
	})
}

func (r *Router) RouteCursor(connID, roomID string, position int64) (int, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return 0, err
	}
	if position < 0 {
		return 0, fmt.Errorf("%w: negative cursor position %d", domain.ErrInvalidPayload, position)
	}
	return r.rooms.Broadcast(connID, roomID, domain.Outbound{
		Type:      domain.KindCursorUpdated,
		Position:  &position,
		Timestamp: domain.Stamp(r.now()),
	})
}

func ValidateRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: empty room id", domain.ErrInvalidPayload)
	}
	if len(roomID) > MaxRoomIDLength {
		return fmt.Errorf("%w: room id longer than %d bytes", domain.ErrInvalidPayload, MaxRoomIDLength)
	}
	for _, c := range roomID {
		if unicode.IsControl(c) {
			return fmt.Errorf("%w: control character in room id", domain.ErrInvalidPayload)
		}
	}
	return nil
}
