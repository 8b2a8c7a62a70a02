package gmail_tools

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/draftbox/internal/google"
	"github.com/teemow/draftbox/internal/server"
	"github.com/teemow/draftbox/internal/tools/common"
)

// Tool names.
const (
	ToolGetAuthURL         = "gmail_get_auth_url"
	ToolStartOAuthListener = "gmail_start_oauth_listener"
	ToolExchangeCode       = "gmail_exchange_code"
	ToolCreateDraft        = "gmail_create_draft"
	ToolIsAuthenticated    = "gmail_is_authenticated"
	ToolCheckAuthStatus    = "gmail_check_auth_status"
	ToolLogout             = "gmail_logout"
)

// RegisterGmailTools registers all Gmail-related tools with the MCP server
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterAuthTools(s, sc); err != nil {
		return fmt.Errorf("failed to register auth tools: %w", err)
	}

	if err := RegisterDraftTools(s, sc); err != nil {
		return fmt.Errorf("failed to register draft tools: %w", err)
	}

	return nil
}

// credentialOptions are the optional client credential arguments shared by
// the auth tools. Empty values fall back to GOOGLE_CLIENT_ID and
// GOOGLE_CLIENT_SECRET.
func credentialOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("client_id",
			mcp.Description("OAuth client ID (default: GOOGLE_CLIENT_ID)"),
		),
		mcp.WithString("client_secret",
			mcp.Description("OAuth client secret (default: GOOGLE_CLIENT_SECRET)"),
		),
	}
}

func credentialsFromArgs(request mcp.CallToolRequest) (clientID, clientSecret string) {
	return request.GetString("client_id", ""), request.GetString("client_secret", "")
}

func addTool(s *mcpserver.MCPServer, sc *server.ServerContext, tool mcp.Tool, handler common.ToolHandler) {
	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(tool.Name, sc, handler)))
}

// errorResult turns an error into a user-facing tool error.
func errorResult(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, google.ErrNotAuthenticated):
		return mcp.NewToolResultError("Not authenticated with Gmail. Call " + ToolStartOAuthListener + " and complete the sign-in in the browser first.")
	case errors.Is(err, google.ErrAuthExpired):
		return mcp.NewToolResultError("The Gmail session has expired and cannot be renewed. Sign in again with " + ToolStartOAuthListener + ".")
	case errors.Is(err, google.ErrConfig):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v. Pass client_id and client_secret or set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET.", action, err))
	case errors.Is(err, google.ErrBind):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v. Is another sign-in already waiting?", action, err))
	case errors.Is(err, server.ErrShutdown):
		return mcp.NewToolResultError(fmt.Sprintf("%s: the server is shutting down", action))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
	}
}
