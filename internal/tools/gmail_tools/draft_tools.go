package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/draftbox/internal/server"
)

// RegisterDraftTools registers the draft creation tool.
func RegisterDraftTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createDraftTool := mcp.NewTool(ToolCreateDraft,
		mcp.WithDescription("Create a Gmail draft with the given subject and body. The recipient is left empty."),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Draft subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Plain text draft body"),
		),
		mcp.WithDestructiveHintAnnotation(false),
	)

	addTool(s, sc, createDraftTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreateDraft(ctx, request, sc)
	})

	return nil
}

func handleCreateDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	subject, err := request.RequireString("subject")
	if err != nil {
		return mcp.NewToolResultError("subject is required"), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError("body is required"), nil
	}

	draft, err := sc.CreateDraft(ctx, subject, body)
	if err != nil {
		return errorResult("Failed to create draft", err), nil
	}

	return mcp.NewToolResultJSON(draft)
}
