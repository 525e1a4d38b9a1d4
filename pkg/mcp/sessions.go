package mcp

import "sync"

// SessionRegistry maps asynchronous task IDs to the MCP session that
// submitted them.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // taskID → sessionID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates a task ID with a session ID.
func (r *SessionRegistry) Register(taskID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[taskID] = sessionID
}

// SessionFor returns the session ID that submitted the task, if any.
func (r *SessionRegistry) SessionFor(taskID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[taskID]
	return sid, ok
}

// Forget drops a single task mapping once its notification went out.
func (r *SessionRegistry) Forget(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, taskID)
}

// Remove deletes all task mappings for the given session ID.
// Called when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tid, sid := range r.sessions {
		if sid == sessionID {
			delete(r.sessions, tid)
		}
	}
}

// Len returns the number of tracked tasks.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
