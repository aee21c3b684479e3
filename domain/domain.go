package domain

import (
	"context"
	"errors"
)

var (
	ErrAuth                = errors.New("authentication failed")
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrNotAMember          = errors.New("not a member of room")
	ErrInvalidPayload      = errors.New("invalid payload")
)

// Connection is one live duplex channel owned by the transport.
// Send must not block: it either enqueues the frame or fails.
type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Verifier resolves a client credential to a user id.
type Verifier interface {
	Verify(ctx context.Context, credential string) (userID string, err error)
}

// Membership is the room state the router and gateway operate on.
type Membership interface {
	Register(conn Connection, userID string) error
	Join(connID, roomID string) error
	Leave(connID, roomID string) error
	Disconnect(connID string)
	Broadcast(connID, roomID string, frame Outbound) (delivered int, err error)
}

// MessageHandler routes one decoded inbound frame for a connection.
type MessageHandler interface {
	Handle(conn Connection, msg Inbound) error
}
