package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0reilly/modern-note-app/gateway"
)

var errSendBufferFull = errors.New("send buffer full")

// Options tunes the per-connection pumps.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Session is what a connection feeds its frames into.
type Session interface {
	Dispatch(data []byte) error
	Close()
}

type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	opts Options

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewConn(id string, ws *websocket.Conn, opts Options) *Conn {
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, opts.SendBuffer),
		opts: opts,
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues data for the write pump without blocking.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close shuts the socket down. The read pump then observes the error and
// closes the session.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) Start(s Session) {
	go c.writePump()
	go c.readPump(s)
}

func (c *Conn) readPump(s Session) {
	defer func() {
		s.Close()
		c.Close()
	}()

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		if err := s.Dispatch(data); err != nil {
			if !errors.Is(err, gateway.ErrSessionClosed) {
				slog.Error("dispatch error", "clientId", c.id, "error", err)
			}
			c.writeClose()
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// writeClose tells the peer we are going away. WriteControl is safe to call
// concurrently with the write pump.
func (c *Conn) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
}
