// Package config loads the collaboration server's settings from an optional
// YAML file, environment overrides and built-in defaults.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebSocketConfig holds upgrade and per-connection pump settings.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	WriteWait       time.Duration `yaml:"write_wait"`
	PongWait        time.Duration `yaml:"pong_wait"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	SendBuffer      int           `yaml:"send_buffer"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"` // optional; empty accepts any issuer
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
