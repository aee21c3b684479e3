package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadBufferSize  = 1024
	DefaultWriteBufferSize = 1024
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultMaxMessageSize  = 512 * 1024
	DefaultSendBuffer      = 256
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.WebSocket.ReadBufferSize == 0 {
		c.WebSocket.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WebSocket.WriteBufferSize == 0 {
		c.WebSocket.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.WebSocket.WriteWait == 0 {
		c.WebSocket.WriteWait = DefaultWriteWait
	}
	if c.WebSocket.PongWait == 0 {
		c.WebSocket.PongWait = DefaultPongWait
	}
	if c.WebSocket.MaxMessageSize == 0 {
		c.WebSocket.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.WebSocket.SendBuffer == 0 {
		c.WebSocket.SendBuffer = DefaultSendBuffer
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
