package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry_RegisterAndLookup(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("task-1", "session-abc")
	sid, ok := r.SessionFor("task-1")
	assert.True(t, ok)
	assert.Equal(t, "session-abc", sid)
	assert.Equal(t, 1, r.Len())
}

func TestSessionRegistry_NotFound(t *testing.T) {
	r := NewSessionRegistry()

	_, ok := r.SessionFor("unknown")
	assert.False(t, ok)
}

func TestSessionRegistry_Forget(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("task-1", "session-abc")
	r.Register("task-2", "session-abc")
	r.Forget("task-1")

	_, ok := r.SessionFor("task-1")
	assert.False(t, ok)
	_, ok = r.SessionFor("task-2")
	assert.True(t, ok)
}

func TestSessionRegistry_Remove(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("task-1", "session-abc")
	r.Register("task-2", "session-abc")
	r.Register("task-3", "session-xyz")

	r.Remove("session-abc")

	_, ok := r.SessionFor("task-1")
	assert.False(t, ok, "task-1 should be removed")

	_, ok = r.SessionFor("task-2")
	assert.False(t, ok, "task-2 should be removed")

	sid, ok := r.SessionFor("task-3")
	assert.True(t, ok, "task-3 should still exist")
	assert.Equal(t, "session-xyz", sid)
}

func TestMCPNotifier_UnknownTaskIsNoop(t *testing.T) {
	s := NewServer(ServerDeps{Logger: quietLogger()})
	defer s.Close()

	n := NewMCPNotifier(s.MCPServer(), s.sessions)
	assert.NoError(t, n.Notify(context.Background(), "task-missing", map[string]any{"level": "info"}))
}

func TestMCPNotifier_ExpiredSessionIsDropped(t *testing.T) {
	s := NewServer(ServerDeps{Logger: quietLogger()})
	defer s.Close()

	s.sessions.Register("task-1", "session-gone")
	s.sessions.Register("task-2", "session-gone")

	n := NewMCPNotifier(s.MCPServer(), s.sessions)
	assert.NoError(t, n.Notify(context.Background(), "task-1", map[string]any{"level": "info"}))
	assert.Equal(t, 0, s.sessions.Len())
}
