package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0reilly/modern-note-app/domain"
	"github.com/0reilly/modern-note-app/hub"
	"github.com/0reilly/modern-note-app/protocol"
)

type mockConn struct {
	id   string
	sent [][]byte
	mu   sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockConn) Close() error { return nil }

func (m *mockConn) kinds(t *testing.T) []domain.EventKind {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EventKind
	for _, data := range m.sent {
		var f domain.Outbound
		require.NoError(t, json.Unmarshal(data, &f))
		out = append(out, f.Type)
	}
	return out
}

type stubVerifier map[string]string

func (s stubVerifier) Verify(_ context.Context, credential string) (string, error) {
	userID, ok := s[credential]
	if !ok {
		return "", errors.Join(domain.ErrAuth, errors.New("unknown token"))
	}
	return userID, nil
}

// countingMembership wraps the hub to observe Register and Disconnect calls.
type countingMembership struct {
	*hub.Hub
	registers   int
	disconnects int
	mu          sync.Mutex
}

func (c *countingMembership) Register(conn domain.Connection, userID string) error {
	c.mu.Lock()
	c.registers++
	c.mu.Unlock()
	return c.Hub.Register(conn, userID)
}

func (c *countingMembership) Disconnect(connID string) {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
	c.Hub.Disconnect(connID)
}

func newTestGateway() (*Gateway, *countingMembership) {
	rooms := &countingMembership{Hub: hub.New()}
	handler := protocol.NewHandler(protocol.NewRouter(rooms))
	verifier := stubVerifier{"token-a": "alice", "token-b": "bob"}
	return New(verifier, rooms, handler), rooms
}

func attach(t *testing.T, g *Gateway, conn *mockConn, credential string) *Session {
	t.Helper()
	userID, err := g.Authenticate(context.Background(), credential)
	require.NoError(t, err)
	s, err := g.Attach(conn, userID)
	require.NoError(t, err)
	return s
}

func TestGateway_AuthenticateRejectsBeforeRegistering(t *testing.T) {
	tests := []struct {
		name       string
		credential string
	}{
		{name: "missing", credential: ""},
		{name: "unknown", credential: "forged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rooms := newTestGateway()

			userID, err := g.Authenticate(context.Background(), tt.credential)

			assert.ErrorIs(t, err, domain.ErrAuth)
			assert.Empty(t, userID)
			assert.Zero(t, rooms.registers)
			_, clients := rooms.Stats()
			assert.Zero(t, clients)
		})
	}
}

func TestGateway_AttachDuplicate(t *testing.T) {
	g, _ := newTestGateway()
	attach(t, g, &mockConn{id: "c1"}, "token-a")

	_, err := g.Attach(&mockConn{id: "c1"}, "bob")

	assert.ErrorIs(t, err, domain.ErrDuplicateConnection)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	g, rooms := newTestGateway()
	a := &mockConn{id: "A"}
	b := &mockConn{id: "B"}
	sa := attach(t, g, a, "token-a")
	sb := attach(t, g, b, "token-b")
	require.NoError(t, sa.Dispatch([]byte(`{"type":"join","roomId":"doc1"}`)))
	require.NoError(t, sb.Dispatch([]byte(`{"type":"join","roomId":"doc1"}`)))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sa.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rooms.disconnects)
	assert.Equal(t, []domain.EventKind{domain.KindUserLeft}, b.kinds(t))
	assert.ErrorIs(t, sa.Dispatch([]byte(`{"type":"edit","roomId":"doc1","content":"late"}`)), ErrSessionClosed)
	assert.Equal(t, []string{"B"}, rooms.MembersOf("doc1"))
}

func TestSession_DisconnectFrame(t *testing.T) {
	g, rooms := newTestGateway()
	a := &mockConn{id: "A"}
	b := &mockConn{id: "B"}
	sa := attach(t, g, a, "token-a")
	sb := attach(t, g, b, "token-b")
	require.NoError(t, sa.Dispatch([]byte(`{"type":"join","roomId":"doc1"}`)))
	require.NoError(t, sb.Dispatch([]byte(`{"type":"join","roomId":"doc1"}`)))

	err := sb.Dispatch([]byte(`{"type":"disconnect"}`))
	assert.ErrorIs(t, err, ErrSessionClosed)

	// The transport notices the close afterwards and reports it again.
	sb.Close()

	assert.Equal(t, 1, rooms.disconnects)
	assert.Equal(t, []domain.EventKind{domain.KindUserJoined, domain.KindUserLeft}, a.kinds(t))
}

func TestSession_DispatchKeepsConnectionOnBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "not json"},
		{name: "not a member", raw: `{"type":"edit","roomId":"elsewhere","content":"x"}`},
		{name: "unknown kind", raw: `{"type":"typing","roomId":"doc1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rooms := newTestGateway()
			s := attach(t, g, &mockConn{id: "A"}, "token-a")

			assert.NoError(t, s.Dispatch([]byte(tt.raw)))
			assert.Zero(t, rooms.disconnects)
			_, clients := rooms.Stats()
			assert.Equal(t, 1, clients)
		})
	}
}

func TestSession_RegistryErrorTearsDown(t *testing.T) {
	g, rooms := newTestGateway()
	a := &mockConn{id: "A"}
	s := attach(t, g, a, "token-a")

	// Simulate the registry losing the connection behind the session's back.
	rooms.Hub.Disconnect("A")

	err := s.Dispatch([]byte(`{"type":"join","roomId":"doc1"}`))

	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
	assert.ErrorIs(t, s.Dispatch([]byte(`{"type":"ping"}`)), ErrSessionClosed)
	assert.Equal(t, 1, rooms.disconnects)
}

func TestSession_UserID(t *testing.T) {
	g, _ := newTestGateway()

	s := attach(t, g, &mockConn{id: "A"}, "token-b")

	assert.Equal(t, "bob", s.UserID())
}
