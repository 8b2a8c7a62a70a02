// Package google implements the OAuth2 side of the Gmail integration.
//
// It builds the authorization URL (PKCE S256 plus a CSRF state), exchanges
// authorization codes and refresh tokens at Google's token endpoint, and keeps
// the single in-memory token record the rest of the application draws on.
//
// Tokens are never written to disk. A Store is created once by the caller and
// passed to whichever component needs a valid access token.
package google
