package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/draftbox/internal/server"
)

type authURLResult struct {
	URL      string `json:"url"`
	Verifier string `json:"verifier"`
}

type listenerResult struct {
	URL string `json:"url"`
}

type authenticatedResult struct {
	Authenticated bool `json:"authenticated"`
}

// RegisterAuthTools registers the OAuth sign-in and status tools.
func RegisterAuthTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	getAuthURLTool := mcp.NewTool(ToolGetAuthURL, append([]mcp.ToolOption{
		mcp.WithDescription("Build a Google consent URL for Gmail access. Returns the URL and the PKCE verifier that must be passed to " + ToolExchangeCode + "."),
		mcp.WithReadOnlyHintAnnotation(true),
	}, credentialOptions()...)...)

	addTool(s, sc, getAuthURLTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetAuthURL(ctx, request, sc)
	})

	startListenerTool := mcp.NewTool(ToolStartOAuthListener, append([]mcp.ToolOption{
		mcp.WithDescription("Start the local OAuth callback listener and return the consent URL to open in a browser. " +
			"The sign-in completes in the background; a " + NotificationAuthComplete + " notification is sent when the token is stored."),
		mcp.WithDestructiveHintAnnotation(false),
	}, credentialOptions()...)...)

	addTool(s, sc, startListenerTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleStartOAuthListener(ctx, request, sc)
	})

	exchangeCodeTool := mcp.NewTool(ToolExchangeCode, append([]mcp.ToolOption{
		mcp.WithDescription("Exchange an authorization code obtained from the consent URL of " + ToolGetAuthURL + " for a token"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Authorization code from the redirect"),
		),
		mcp.WithString("verifier",
			mcp.Required(),
			mcp.Description("PKCE verifier returned by "+ToolGetAuthURL),
		),
		mcp.WithDestructiveHintAnnotation(false),
	}, credentialOptions()...)...)

	addTool(s, sc, exchangeCodeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExchangeCode(ctx, request, sc)
	})

	isAuthenticatedTool := mcp.NewTool(ToolIsAuthenticated,
		mcp.WithDescription("Report whether a Gmail token is stored. The token may be expired."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	addTool(s, sc, isAuthenticatedTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultJSON(authenticatedResult{Authenticated: sc.IsAuthenticated()})
	})

	checkAuthStatusTool := mcp.NewTool(ToolCheckAuthStatus,
		mcp.WithDescription("Show whether a token and client credentials are stored and when the token expires"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	addTool(s, sc, checkAuthStatusTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultJSON(sc.CheckAuthStatus())
	})

	logoutTool := mcp.NewTool(ToolLogout,
		mcp.WithDescription("Forget the stored Gmail token and client credentials"),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	addTool(s, sc, logoutTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sc.Logout()
		return mcp.NewToolResultText("Signed out of Gmail."), nil
	})

	return nil
}

func handleGetAuthURL(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	clientID, clientSecret := credentialsFromArgs(request)

	req, err := sc.GetAuthURL(clientID, clientSecret)
	if err != nil {
		return errorResult("Failed to build consent URL", err), nil
	}

	return mcp.NewToolResultJSON(authURLResult{URL: req.URL, Verifier: req.Verifier})
}

func handleStartOAuthListener(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	clientID, clientSecret := credentialsFromArgs(request)

	authURL, err := sc.StartOAuthListener(ctx, clientID, clientSecret)
	if err != nil {
		return errorResult("Failed to start OAuth listener", err), nil
	}

	return mcp.NewToolResultJSON(listenerResult{URL: authURL})
}

func handleExchangeCode(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil || code == "" {
		return mcp.NewToolResultError("code is required"), nil
	}
	verifier, err := request.RequireString("verifier")
	if err != nil || verifier == "" {
		return mcp.NewToolResultError("verifier is required"), nil
	}
	clientID, clientSecret := credentialsFromArgs(request)

	if err := sc.ExchangeCode(ctx, code, verifier, clientID, clientSecret); err != nil {
		return errorResult("Failed to exchange authorization code", err), nil
	}

	return mcp.NewToolResultText("Authenticated with Gmail."), nil
}
