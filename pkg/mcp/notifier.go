package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// TaskNotifier pushes task completion notices to MCP clients.
type TaskNotifier interface {
	Notify(ctx context.Context, taskID string, payload map[string]any) error
}

// MCPNotifier implements TaskNotifier by sending a notifications/message to
// the session that submitted the task.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier bound to mcpServer's sessions.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends payload to the task's session and forgets the mapping.
// Best-effort: returns nil if no session is known or it has gone away.
func (n *MCPNotifier) Notify(_ context.Context, taskID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(taskID)
	if !ok {
		return nil
	}
	n.sessions.Forget(taskID)

	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session closed while the task ran.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
