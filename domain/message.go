package domain

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	KindJoin       EventKind = "join"
	KindLeave      EventKind = "leave"
	KindEdit       EventKind = "edit"
	KindCursor     EventKind = "cursor"
	KindDisconnect EventKind = "disconnect"
	KindPing       EventKind = "ping"

	KindUserJoined     EventKind = "user-joined"
	KindUserLeft       EventKind = "user-left"
	KindContentUpdated EventKind = "content-updated"
	KindCursorUpdated  EventKind = "cursor-updated"
	KindPong           EventKind = "pong"
)

// TimestampLayout is ISO-8601 with millisecond precision, always rendered in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Inbound is a frame received from a client.
type Inbound struct {
	Type      EventKind `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	Content   *string   `json:"content,omitempty"`
	Position  *int64    `json:"position,omitempty"`
	Timestamp int64     `json:"timestamp,omitempty"`
}

// Outbound is a frame delivered to clients.
type Outbound struct {
	Type      EventKind `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Content   *string   `json:"content,omitempty"`
	Position  *int64    `json:"position,omitempty"`
	Timestamp string    `json:"timestamp"`
}

func Stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func DecodeInbound(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, err
	}
	return msg, nil
}

func (o Outbound) Encode() ([]byte, error) {
	return json.Marshal(o)
}

func Presence(kind EventKind, userID, roomID string, at time.Time) Outbound {
	return Outbound{Type: kind, RoomID: roomID, UserID: userID, Timestamp: Stamp(at)}
}
