package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	if c.WebSocket.PongWait <= 0 {
		return errors.New("websocket.pong_wait must be > 0")
	}
	if c.WebSocket.WriteWait <= 0 {
		return errors.New("websocket.write_wait must be > 0")
	}
	if c.WebSocket.MaxMessageSize < 1 {
		return errors.New("websocket.max_message_size must be >= 1")
	}
	if c.WebSocket.SendBuffer < 1 {
		return errors.New("websocket.send_buffer must be >= 1")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", f)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
}
