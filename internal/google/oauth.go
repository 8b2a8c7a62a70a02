package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/teemow/draftbox/internal/instrumentation"
)

const (
	// DefaultRedirectURI is the address of the local callback listener.
	DefaultRedirectURI = "http://localhost:3001/auth/callback"

	// DefaultExpiresIn is assumed when the token endpoint omits expires_in.
	DefaultExpiresIn = 3600 * time.Second

	authURLV2 = "https://accounts.google.com/o/oauth2/v2/auth"
)

// DefaultEndpoint returns Google's v2 authorization endpoint and token endpoint.
// Client credentials are sent in the form body, as Google expects.
func DefaultEndpoint() oauth2.Endpoint {
	ep := googleoauth.Endpoint
	ep.AuthURL = authURLV2
	ep.AuthStyle = oauth2.AuthStyleInParams
	return ep
}

// AuthRequest is the result of building an authorization URL.
// Verifier must be kept by the caller and passed to Exchange.
type AuthRequest struct {
	URL      string
	Verifier string
	State    string
}

// OAuthClient builds authorization URLs and talks to the token endpoint for
// a single set of credentials.
type OAuthClient struct {
	creds      Credentials
	endpoint   oauth2.Endpoint
	config     *oauth2.Config
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// Option configures an OAuthClient.
type Option func(*OAuthClient)

// WithEndpoint overrides the provider endpoints.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(c *OAuthClient) {
		c.endpoint = ep
	}
}

// WithHTTPClient sets the HTTP client used for token endpoint requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OAuthClient) {
		c.httpClient = hc
	}
}

// WithMetrics records code exchange results on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *OAuthClient) {
		c.metrics = m
	}
}

// WithClock overrides time.Now when computing expiry instants.
func WithClock(now func() time.Time) Option {
	return func(c *OAuthClient) {
		c.now = now
	}
}

// NewOAuthClient validates creds and returns a client bound to them.
// An empty RedirectURI defaults to DefaultRedirectURI.
func NewOAuthClient(creds Credentials, opts ...Option) (*OAuthClient, error) {
	if creds.RedirectURI == "" {
		creds.RedirectURI = DefaultRedirectURI
	}

	c := &OAuthClient{
		creds:    creds,
		endpoint: DefaultEndpoint(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: client ID is required", ErrConfig)
	}
	for name, raw := range map[string]string{
		"redirect URI": creds.RedirectURI,
		"auth URL":     c.endpoint.AuthURL,
		"token URL":    c.endpoint.TokenURL,
	} {
		if err := validateAbsoluteURL(name, raw); err != nil {
			return nil, err
		}
	}

	c.config = &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     c.endpoint,
		RedirectURL:  creds.RedirectURI,
		Scopes:       GmailScopes,
	}
	return c, nil
}

// Credentials returns the credentials the client was built with.
func (c *OAuthClient) Credentials() Credentials {
	return c.creds
}

// AuthURL generates a fresh PKCE verifier and CSRF state and returns the
// consent URL that carries the matching S256 challenge.
func (c *OAuthClient) AuthURL() (*AuthRequest, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, err
	}

	authURL := c.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	return &AuthRequest{
		URL:      authURL,
		Verifier: verifier,
		State:    state,
	}, nil
}

// Exchange trades an authorization code and its PKCE verifier for a token record.
func (c *OAuthClient) Exchange(ctx context.Context, code, verifier string) (*TokenRecord, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is empty", ErrAuth)
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationExchange)
	defer span.End()

	tok, err := c.config.Exchange(c.withHTTPClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("%w: failed to exchange authorization code: %w", ErrAuth, err)
	}

	instrumentation.SetSpanSuccess(span)
	c.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	return c.recordFromToken(tok, ""), nil
}

// Refresh obtains a new access token. The given refresh token is kept in the
// result when the provider does not rotate it.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token available", ErrAuth)
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationRefresh)
	defer span.End()

	// An empty access token forces the token source to hit the endpoint.
	src := c.config.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("%w: failed to refresh token: %w", ErrAuth, err)
	}
	instrumentation.SetSpanSuccess(span)

	return c.recordFromToken(tok, refreshToken), nil
}

func (c *OAuthClient) withHTTPClient(ctx context.Context) context.Context {
	if c.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	return ctx
}

func (c *OAuthClient) recordFromToken(tok *oauth2.Token, fallbackRefresh string) *TokenRecord {
	now := c.now()

	var expiresAt time.Time
	switch {
	case tok.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		expiresAt = tok.Expiry
	default:
		expiresAt = now.Add(DefaultExpiresIn)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}

	return &TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}
}

func validateAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %w", ErrConfig, name, raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %s %q is not an absolute URL", ErrConfig, name, raw)
	}
	return nil
}

// generateState returns a random CSRF state value.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
