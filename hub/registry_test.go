package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0reilly/modern-note-app/domain"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	conn := &mockConn{id: "c1"}

	require.NoError(t, r.Register(conn, "alice"))
	assert.ErrorIs(t, r.Register(conn, "alice"), domain.ErrDuplicateConnection)

	e, err := r.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", e.UserID)
	assert.Empty(t, e.Room)

	require.NoError(t, r.SetRoom("c1", "doc1"))
	e, err = r.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", e.Room)

	last, ok := r.Remove("c1")
	assert.True(t, ok)
	assert.Equal(t, "doc1", last.Room)
	assert.Same(t, conn, last.Conn.(*mockConn))

	_, ok = r.Remove("c1")
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistry_UnknownConnection(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
	assert.ErrorIs(t, r.SetRoom("missing", "doc1"), domain.ErrUnknownConnection)
}
