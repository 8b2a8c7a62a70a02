package google

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teemow/draftbox/internal/instrumentation"
	"github.com/teemow/draftbox/internal/logging"
)

// Refresher exchanges a refresh token for a new token record.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error)
}

// RefresherFactory builds a Refresher for the credentials stored alongside a token.
type RefresherFactory func(creds Credentials) (Refresher, error)

// DefaultRefresherFactory refreshes against Google's token endpoint.
func DefaultRefresherFactory(creds Credentials) (Refresher, error) {
	return NewOAuthClient(creds)
}

// Store holds at most one token record and the credentials that obtained it.
// All access goes through one mutex. Concurrent refreshes of the same
// refresh token are collapsed into a single request.
type Store struct {
	mu      sync.Mutex
	creds   *Credentials
	token   *TokenRecord
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	newRefresher RefresherFactory
	refreshGroup singleflight.Group
	now          func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock overrides time.Now for expiry checks.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithStoreLogger sets the logger used by the store.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithStoreMetrics records refresh results on m.
func WithStoreMetrics(m *instrumentation.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates an empty store. A nil factory uses DefaultRefresherFactory.
func NewStore(factory RefresherFactory, opts ...StoreOption) *Store {
	if factory == nil {
		factory = DefaultRefresherFactory
	}
	s := &Store{
		newRefresher: factory,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set replaces the stored credentials and token unconditionally.
func (s *Store) Set(creds Credentials, token *TokenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = &creds
	s.token = token.clone()
	s.logger.Debug("Stored Google token",
		"expires_at", token.ExpiresAt,
		"has_refresh_token", token.HasRefreshToken())
}

// Clear drops the stored token and credentials.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = nil
	s.token = nil
	s.logger.Info("Cleared Google token")
}

// IsAuthenticated reports whether a token is stored. Expiry is not checked.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// Credentials returns the stored credentials, if any.
func (s *Store) Credentials() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return Credentials{}, false
	}
	return *s.creds, true
}

// Status returns an advisory snapshot for status reporting.
func (s *Store) Status() AuthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := AuthStatus{
		HasToken:    s.token != nil,
		CurrentTime: s.now().UTC().Format(time.RFC3339),
	}
	if s.creds != nil {
		status.HasClientID = s.creds.ClientID != ""
		status.HasClientSecret = s.creds.ClientSecret != ""
	}
	if s.token != nil {
		expiresAt := s.token.ExpiresAt.UTC().Format(time.RFC3339)
		status.TokenExpiresAt = &expiresAt
	}
	return status
}

// GetValidToken returns the stored token if it has not expired. An expired
// token is refreshed when a refresh token is available and the new record
// replaces the old one; otherwise ErrAuthExpired is returned without any
// network call.
func (s *Store) GetValidToken(ctx context.Context) (*TokenRecord, error) {
	s.mu.Lock()
	token, creds := s.token, s.creds
	now := s.now()
	s.mu.Unlock()

	if token == nil {
		return nil, ErrNotAuthenticated
	}
	if token.ValidAt(now) {
		return token.clone(), nil
	}
	if !token.HasRefreshToken() {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
		return nil, fmt.Errorf("%w: token expired at %s", ErrAuthExpired, token.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: no client credentials stored for refresh", ErrConfig)
	}

	v, err, shared := s.refreshGroup.Do(token.RefreshToken, func() (interface{}, error) {
		return s.refresh(ctx, *creds, token)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Joined in-flight token refresh")
	}
	return v.(*TokenRecord).clone(), nil
}

func (s *Store) refresh(ctx context.Context, creds Credentials, stale *TokenRecord) (*TokenRecord, error) {
	// Another caller may have replaced the stale record already.
	s.mu.Lock()
	if s.token != stale && s.token != nil && s.token.ValidAt(s.now()) {
		current := s.token.clone()
		s.mu.Unlock()
		return current, nil
	}
	s.mu.Unlock()

	refresher, err := s.newRefresher(creds)
	if err != nil {
		return nil, err
	}

	fresh, err := refresher.Refresh(ctx, stale.RefreshToken)
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		s.logger.Warn("Token refresh failed", logging.Err(err))
		return nil, err
	}
	s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = stale.RefreshToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A Set that landed while refreshing wins over the refreshed record.
	if s.token == stale {
		s.token = fresh.clone()
	}
	s.logger.Debug("Refreshed Google token", "expires_at", fresh.ExpiresAt)
	return fresh, nil
}
