// Package gmail_tools exposes Gmail sign-in and draft creation as MCP tools.
//
// Sign-in:
//   - gmail_start_oauth_listener: Start the local callback listener and return the consent URL
//   - gmail_get_auth_url: Return a consent URL and PKCE verifier for a manual exchange
//   - gmail_exchange_code: Exchange a code from gmail_get_auth_url for a token
//   - gmail_is_authenticated: Report whether a token is stored
//   - gmail_check_auth_status: Report token and credential state
//   - gmail_logout: Forget the stored token
//
// Drafts:
//   - gmail_create_draft: Create a draft with a subject and a plain text body
//
// When the listener stores a token, a notifications/gmail/auth_complete
// notification carrying expires_at and has_refresh_token is sent to every
// connected client.
//
// Failures are returned as tool error results with a message meant for the
// user, never as protocol errors.
package gmail_tools
