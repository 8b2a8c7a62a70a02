package gmail_tools

import (
	"context"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/draftbox/internal/callback"
)

// NotificationAuthComplete is sent to every connected client once the
// callback listener has stored a token.
const NotificationAuthComplete = "notifications/gmail/auth_complete"

// MCPNotifier forwards auth completion events as MCP notifications.
type MCPNotifier struct {
	server *mcpserver.MCPServer
}

// NewMCPNotifier returns a notifier that broadcasts on s.
func NewMCPNotifier(s *mcpserver.MCPServer) *MCPNotifier {
	return &MCPNotifier{server: s}
}

// NotifyAuthComplete implements callback.Notifier.
func (n *MCPNotifier) NotifyAuthComplete(_ context.Context, event callback.AuthCompleteEvent) {
	n.server.SendNotificationToAllClients(NotificationAuthComplete, map[string]any{
		"expires_at":        event.ExpiresAt.UTC().Format(time.RFC3339),
		"has_refresh_token": event.HasRefreshToken,
	})
}
