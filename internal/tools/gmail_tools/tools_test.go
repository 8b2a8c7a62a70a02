package gmail_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/draftbox/internal/callback"
	"github.com/teemow/draftbox/internal/gmail"
	"github.com/teemow/draftbox/internal/google"
	"github.com/teemow/draftbox/internal/server"
)

// newGoogleServer fakes the token and drafts endpoints.
func newGoogleServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") == "bad-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"access","refresh_token":"refresh","expires_in":3600,"token_type":"Bearer"}`)
	})
	mux.HandleFunc("/gmail/v1/users/me/drafts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"r-42","message":{"id":"m-42","threadId":"t-42"}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newToolServer(t *testing.T, srv *httptest.Server, creds google.Credentials) (*mcpserver.MCPServer, *server.ServerContext) {
	t.Helper()

	sc := server.NewServerContext(context.Background(),
		server.WithDefaultCredentials(creds),
		server.WithCallbackAddr("127.0.0.1:0"),
		server.WithOAuthOptions(googleOAuthOptions(srv)...),
		server.WithComposerOptions(
			gmail.WithEndpoint(srv.URL+"/"),
			gmail.WithHTTPClient(srv.Client()),
		),
	)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("draftbox-test", "test", mcpserver.WithToolCapabilities(false))
	require.NoError(t, RegisterGmailTools(s, sc))
	sc.SetNotifier(NewMCPNotifier(s))
	return s, sc
}

func googleOAuthOptions(srv *httptest.Server) []google.Option {
	return []google.Option{
		google.WithEndpoint(oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		google.WithHTTPClient(srv.Client()),
	}
}

var envCreds = google.Credentials{ClientID: "env-id", ClientSecret: "env-secret"}

func callTool(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s not registered", name)

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "tool handlers report failures as results")
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", result.Content[0])
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), v))
}

type fakeSession struct {
	id            string
	notifications chan mcp.JSONRPCNotification
}

func (f *fakeSession) Initialize()       {}
func (f *fakeSession) Initialized() bool { return true }
func (f *fakeSession) SessionID() string { return f.id }
func (f *fakeSession) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return f.notifications
}

func TestRegisterGmailTools(t *testing.T) {
	s, _ := newToolServer(t, newGoogleServer(t), envCreds)

	tools := s.ListTools()
	for _, name := range []string{
		ToolGetAuthURL,
		ToolStartOAuthListener,
		ToolExchangeCode,
		ToolCreateDraft,
		ToolIsAuthenticated,
		ToolCheckAuthStatus,
		ToolLogout,
	} {
		assert.Contains(t, tools, name)
	}
	assert.Len(t, tools, 7)
}

func TestGetAuthURLAndExchangeCode(t *testing.T) {
	srv := newGoogleServer(t)
	s, sc := newToolServer(t, srv, envCreds)

	var authURL authURLResult
	decodeResult(t, callTool(t, s, ToolGetAuthURL, nil), &authURL)
	assert.True(t, strings.HasPrefix(authURL.URL, srv.URL+"/auth?"))
	assert.Contains(t, authURL.URL, "client_id=env-id")
	assert.GreaterOrEqual(t, len(authURL.Verifier), 43)

	result := callTool(t, s, ToolExchangeCode, map[string]any{
		"code":     "abc",
		"verifier": authURL.Verifier,
	})
	assert.False(t, result.IsError)
	assert.True(t, sc.IsAuthenticated())

	var authenticated authenticatedResult
	decodeResult(t, callTool(t, s, ToolIsAuthenticated, nil), &authenticated)
	assert.True(t, authenticated.Authenticated)
}

func TestGetAuthURL_ExplicitCredentials(t *testing.T) {
	s, _ := newToolServer(t, newGoogleServer(t), google.Credentials{})

	result := callTool(t, s, ToolGetAuthURL, nil)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "GOOGLE_CLIENT_ID")

	var authURL authURLResult
	decodeResult(t, callTool(t, s, ToolGetAuthURL, map[string]any{"client_id": "arg-id"}), &authURL)
	assert.Contains(t, authURL.URL, "client_id=arg-id")
}

func TestExchangeCode_Validation(t *testing.T) {
	s, sc := newToolServer(t, newGoogleServer(t), envCreds)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing code", map[string]any{"verifier": "v"}, "code is required"},
		{"empty code", map[string]any{"code": "", "verifier": "v"}, "code is required"},
		{"missing verifier", map[string]any{"code": "c"}, "verifier is required"},
		{"rejected code", map[string]any{"code": "bad-code", "verifier": "v"}, "Failed to exchange authorization code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, ToolExchangeCode, tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
	assert.False(t, sc.IsAuthenticated())
}

func TestCreateDraft(t *testing.T) {
	s, sc := newToolServer(t, newGoogleServer(t), envCreds)
	sc.Store().Set(envCreds, &google.TokenRecord{AccessToken: "access", ExpiresAt: time.Now().Add(time.Hour)})

	var draft gmail.Draft
	decodeResult(t, callTool(t, s, ToolCreateDraft, map[string]any{"subject": "Hi", "body": "There"}), &draft)
	assert.Equal(t, gmail.Draft{ID: "r-42", Message: gmail.DraftMessage{ID: "m-42", ThreadID: "t-42"}}, draft)

	result := callTool(t, s, ToolCreateDraft, map[string]any{"subject": "Hi", "body": "There"})
	assert.JSONEq(t, `{"id":"r-42","message":{"id":"m-42","threadId":"t-42"}}`, resultText(t, result))
}

func TestCreateDraft_Errors(t *testing.T) {
	s, sc := newToolServer(t, newGoogleServer(t), envCreds)

	result := callTool(t, s, ToolCreateDraft, map[string]any{"subject": "Hi"})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "body is required")

	result = callTool(t, s, ToolCreateDraft, map[string]any{"subject": "Hi", "body": "There"})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Not authenticated")

	sc.Store().Set(envCreds, &google.TokenRecord{AccessToken: "access", ExpiresAt: time.Now().Add(-time.Minute)})
	result = callTool(t, s, ToolCreateDraft, map[string]any{"subject": "Hi", "body": "There"})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "expired")
}

func TestCheckAuthStatusAndLogout(t *testing.T) {
	s, sc := newToolServer(t, newGoogleServer(t), envCreds)
	sc.Store().Set(envCreds, &google.TokenRecord{
		AccessToken: "access",
		ExpiresAt:   time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC),
	})

	var status google.AuthStatus
	decodeResult(t, callTool(t, s, ToolCheckAuthStatus, nil), &status)
	assert.True(t, status.HasToken)
	assert.True(t, status.HasClientID)
	assert.True(t, status.HasClientSecret)
	require.NotNil(t, status.TokenExpiresAt)
	assert.Equal(t, "2026-10-19T13:00:00Z", *status.TokenExpiresAt)

	result := callTool(t, s, ToolLogout, nil)
	assert.False(t, result.IsError)

	var authenticated authenticatedResult
	decodeResult(t, callTool(t, s, ToolIsAuthenticated, nil), &authenticated)
	assert.False(t, authenticated.Authenticated)
}

func TestStartOAuthListener_NotifiesClients(t *testing.T) {
	srv := newGoogleServer(t)
	s, sc := newToolServer(t, srv, envCreds)

	session := &fakeSession{id: "session-1", notifications: make(chan mcp.JSONRPCNotification, 1)}
	require.NoError(t, s.RegisterSession(context.Background(), session))

	var started listenerResult
	decodeResult(t, callTool(t, s, ToolStartOAuthListener, nil), &started)
	assert.True(t, strings.HasPrefix(started.URL, srv.URL+"/auth?"))

	// A second listener cannot start while the first one waits.
	result := callTool(t, s, ToolStartOAuthListener, nil)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already")

	addr, ok := sc.ListenerAddr()
	require.True(t, ok)

	client := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(fmt.Sprintf("http://%s%s?code=xyz", addr, callback.Path))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case n := <-session.notifications:
		assert.Equal(t, NotificationAuthComplete, n.Method)
		assert.Equal(t, true, n.Params.AdditionalFields["has_refresh_token"])
		expiresAt, err := time.Parse(time.RFC3339, n.Params.AdditionalFields["expires_at"].(string))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("no auth complete notification")
	}

	assert.True(t, sc.IsAuthenticated())
}
