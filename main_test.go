package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0reilly/modern-note-app/config"
	"github.com/0reilly/modern-note-app/hub"
)

type nopConn struct{ id string }

func (c nopConn) ID() string        { return c.id }
func (c nopConn) Send([]byte) error { return nil }
func (c nopConn) Close() error      { return nil }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()

	healthHandler(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatsHandler(t *testing.T) {
	rooms := hub.New()
	require.NoError(t, rooms.Register(nopConn{id: "c1"}, "alice"))
	require.NoError(t, rooms.Register(nopConn{id: "c2"}, "bob"))
	require.NoError(t, rooms.Join("c1", "doc1"))
	rec := httptest.NewRecorder()

	statsHandler(rooms)(rec, httptest.NewRequest("GET", "/stats", nil))

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]int{"rooms": 1, "clients": 2}, body)
}

func TestSetupLogger(t *testing.T) {
	assert.NoError(t, setupLogger(config.LogConfig{Level: "debug", Format: "json"}))
	assert.NoError(t, setupLogger(config.LogConfig{Level: "info", Format: "text"}))
	assert.Error(t, setupLogger(config.LogConfig{Level: "loud"}))
}
