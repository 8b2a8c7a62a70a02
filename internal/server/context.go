package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/draftbox/internal/callback"
	"github.com/teemow/draftbox/internal/gmail"
	"github.com/teemow/draftbox/internal/google"
	"github.com/teemow/draftbox/internal/instrumentation"
	"github.com/teemow/draftbox/internal/logging"
)

// ErrShutdown is returned by operations attempted after Shutdown.
var ErrShutdown = errors.New("server is shutting down")

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithDefaultCredentials sets the credentials used when a caller leaves the
// client ID or secret empty.
func WithDefaultCredentials(creds google.Credentials) Option {
	return func(sc *ServerContext) {
		sc.defaults = creds
	}
}

// WithCallbackAddr overrides the address the OAuth callback listener binds.
func WithCallbackAddr(addr string) Option {
	return func(sc *ServerContext) {
		sc.callbackAddr = addr
	}
}

// WithOAuthOptions passes opts to every OAuth client the server builds,
// including the ones used for token refresh.
func WithOAuthOptions(opts ...google.Option) Option {
	return func(sc *ServerContext) {
		sc.oauthOpts = append(sc.oauthOpts, opts...)
	}
}

// WithComposerOptions passes opts to the draft composer.
func WithComposerOptions(opts ...gmail.Option) Option {
	return func(sc *ServerContext) {
		sc.composerOpts = append(sc.composerOpts, opts...)
	}
}

// WithListenerOptions passes opts to every callback listener.
func WithListenerOptions(opts ...callback.Option) Option {
	return func(sc *ServerContext) {
		sc.listenerOpts = append(sc.listenerOpts, opts...)
	}
}

// WithNotifier sets the receiver of auth completion events.
func WithNotifier(n callback.Notifier) Option {
	return func(sc *ServerContext) {
		sc.notifier = n
	}
}

// WithMetrics records operations on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) {
		sc.metrics = m
	}
}

// WithLogger sets the logger for the server and the components it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) {
		sc.logger = logger
	}
}

// ServerContext owns the token store, the draft composer and the active
// OAuth callback listener, and implements the operations exposed to the UI.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	store    *google.Store
	composer *gmail.Composer

	defaults     google.Credentials
	callbackAddr string
	oauthOpts    []google.Option
	composerOpts []gmail.Option
	listenerOpts []callback.Option
	metrics      *instrumentation.Metrics
	logger       *slog.Logger

	mu           sync.RWMutex
	notifier     callback.Notifier
	listener     *callback.Listener
	listenerDone chan struct{}
	shutdown     bool
}

// NewServerContext creates a new server context. Listeners started through
// it stop when ctx is cancelled or Shutdown is called.
func NewServerContext(ctx context.Context, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		callbackAddr: callback.DefaultAddr,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.defaults.RedirectURI == "" {
		sc.defaults.RedirectURI = google.DefaultRedirectURI
	}

	sc.store = google.NewStore(sc.newRefresher,
		google.WithStoreLogger(logging.WithComponent(sc.logger, "token_store")),
		google.WithStoreMetrics(sc.metrics),
	)

	composerOpts := append([]gmail.Option{
		gmail.WithMetrics(sc.metrics),
		gmail.WithLogger(logging.WithComponent(sc.logger, "gmail")),
	}, sc.composerOpts...)
	sc.composer = gmail.NewComposer(sc.store, composerOpts...)

	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Store returns the token store shared by all operations.
func (sc *ServerContext) Store() *google.Store {
	return sc.store
}

// Metrics returns the metrics recorder. It may be nil; recording on a nil
// recorder is a no-op.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetNotifier replaces the receiver of auth completion events. Listeners
// already running pick up the new notifier.
func (sc *ServerContext) SetNotifier(n callback.Notifier) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.notifier = n
}

// GetAuthURL builds a consent URL. The returned verifier must be passed back
// to ExchangeCode.
func (sc *ServerContext) GetAuthURL(clientID, clientSecret string) (*google.AuthRequest, error) {
	client, err := sc.oauthClient(clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	return client.AuthURL()
}

// StartOAuthListener builds a consent URL and starts the callback listener
// that completes it in the background. Only one listener may run at a time.
func (sc *ServerContext) StartOAuthListener(ctx context.Context, clientID, clientSecret string) (string, error) {
	client, err := sc.oauthClient(clientID, clientSecret)
	if err != nil {
		return "", err
	}
	req, err := client.AuthURL()
	if err != nil {
		return "", err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return "", ErrShutdown
	}
	if sc.listener != nil {
		return "", fmt.Errorf("%w: a callback listener is already running on %s", google.ErrBind, sc.listener.Addr())
	}

	opts := append([]callback.Option{
		callback.WithLogger(logging.NewSlogAdapter(logging.WithComponent(sc.logger, "callback"))),
		callback.WithMetrics(sc.metrics),
	}, sc.listenerOpts...)

	l, err := callback.Listen(sc.callbackAddr, callback.Config{
		Exchanger: client,
		Verifier:  req.Verifier,
		Store:     sc.store,
		Notifier:  callback.NotifierFunc(sc.notifyAuthComplete),
	}, opts...)
	if err != nil {
		return "", err
	}

	done := make(chan struct{})
	sc.listener = l
	sc.listenerDone = done

	go sc.runListener(l, done)

	sc.logger.InfoContext(ctx, "Waiting for OAuth redirect", logging.Addr(l.Addr().String()))
	return req.URL, nil
}

func (sc *ServerContext) runListener(l *callback.Listener, done chan struct{}) {
	defer close(done)

	_, err := l.Run(sc.ctx)
	switch {
	case err == nil:
		sc.logger.Info("OAuth callback listener finished")
	case errors.Is(err, context.Canceled), errors.Is(err, callback.ErrClosed):
		sc.logger.Debug("OAuth callback listener stopped", logging.Err(err))
	default:
		sc.logger.Warn("OAuth callback listener failed", logging.Err(err))
	}

	sc.mu.Lock()
	if sc.listener == l {
		sc.listener = nil
		sc.listenerDone = nil
	}
	sc.mu.Unlock()
}

// ListenerActive reports whether a callback listener is waiting for a redirect.
func (sc *ServerContext) ListenerActive() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.listener != nil
}

// ListenerAddr returns the address of the active callback listener.
func (sc *ServerContext) ListenerAddr() (string, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.listener == nil {
		return "", false
	}
	return sc.listener.Addr().String(), true
}

// ExchangeCode trades a manually obtained authorization code for a token and
// stores it.
func (sc *ServerContext) ExchangeCode(ctx context.Context, code, verifier, clientID, clientSecret string) error {
	client, err := sc.oauthClient(clientID, clientSecret)
	if err != nil {
		return err
	}

	record, err := client.Exchange(ctx, code, verifier)
	if err != nil {
		return err
	}
	sc.store.Set(client.Credentials(), record)

	sc.logger.InfoContext(ctx, "Authorization code exchanged",
		"expires_at", record.ExpiresAt,
		"has_refresh_token", record.HasRefreshToken())
	return nil
}

// CreateDraft creates a Gmail draft with the stored token.
func (sc *ServerContext) CreateDraft(ctx context.Context, subject, body string) (*gmail.Draft, error) {
	return sc.composer.CreateDraft(ctx, subject, body)
}

// IsAuthenticated reports whether a token is stored, expired or not.
func (sc *ServerContext) IsAuthenticated() bool {
	return sc.store.IsAuthenticated()
}

// CheckAuthStatus returns a snapshot of the stored authentication state.
func (sc *ServerContext) CheckAuthStatus() google.AuthStatus {
	return sc.store.Status()
}

// Logout drops the stored token and credentials.
func (sc *ServerContext) Logout() {
	sc.store.Clear()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the active listener and waits for it to exit.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	l, done := sc.listener, sc.listenerDone
	sc.mu.Unlock()

	sc.cancel()

	var err error
	if l != nil {
		err = l.Close()
		<-done
	}
	return err
}

func (sc *ServerContext) notifyAuthComplete(ctx context.Context, event callback.AuthCompleteEvent) {
	sc.mu.RLock()
	n := sc.notifier
	sc.mu.RUnlock()

	if n != nil {
		n.NotifyAuthComplete(ctx, event)
	}
}

// oauthClient resolves credentials against the defaults and builds a client.
func (sc *ServerContext) oauthClient(clientID, clientSecret string) (*google.OAuthClient, error) {
	return google.NewOAuthClient(sc.credentials(clientID, clientSecret), sc.oauthClientOptions()...)
}

func (sc *ServerContext) credentials(clientID, clientSecret string) google.Credentials {
	creds := sc.defaults
	if clientID != "" {
		creds.ClientID = clientID
	}
	if clientSecret != "" {
		creds.ClientSecret = clientSecret
	}
	return creds
}

func (sc *ServerContext) oauthClientOptions() []google.Option {
	return append([]google.Option{google.WithMetrics(sc.metrics)}, sc.oauthOpts...)
}

func (sc *ServerContext) newRefresher(creds google.Credentials) (google.Refresher, error) {
	return google.NewOAuthClient(creds, sc.oauthClientOptions()...)
}
