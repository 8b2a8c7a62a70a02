package google

import (
	"time"

	"golang.org/x/oauth2"
)

// Credentials identify the OAuth client and where Google redirects after consent.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// TokenRecord is the token state kept for the authenticated user.
// ExpiresAt is absolute, computed when the token was issued or refreshed.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ValidAt reports whether the access token is still usable at now.
// A token is valid up to and including its expiry instant.
func (t *TokenRecord) ValidAt(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}

// HasRefreshToken reports whether the record can be refreshed.
func (t *TokenRecord) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// OAuth2Token converts the record into a bearer token for HTTP clients.
func (t *TokenRecord) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

func (t *TokenRecord) clone() *TokenRecord {
	cp := *t
	return &cp
}

// AuthStatus is an advisory snapshot of the store, used for status reporting.
type AuthStatus struct {
	HasToken        bool    `json:"has_token"`
	HasClientID     bool    `json:"has_client_id"`
	HasClientSecret bool    `json:"has_client_secret"`
	TokenExpiresAt  *string `json:"token_expires_at"`
	CurrentTime     string  `json:"current_time"`
}
