package callback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/draftbox/internal/google"
	"github.com/teemow/draftbox/internal/instrumentation"
	"github.com/teemow/draftbox/internal/logging"
)

const (
	// DefaultAddr matches the host and port of google.DefaultRedirectURI.
	DefaultAddr = "127.0.0.1:3001"

	// Path is the only request path the listener reacts to.
	Path = "/auth/callback"

	// DefaultReadTimeout bounds how long a connection may take to send its
	// request line.
	DefaultReadTimeout = 10 * time.Second

	writeTimeout = 5 * time.Second
)

// ErrClosed is returned by Run when the listener was closed before a
// redirect completed.
var ErrClosed = errors.New("callback listener closed")

// Exchanger trades an authorization code for a token. *google.OAuthClient
// implements it.
type Exchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*google.TokenRecord, error)
	Credentials() google.Credentials
}

// TokenSink receives the token of a completed redirect. *google.Store
// implements it.
type TokenSink interface {
	Set(creds google.Credentials, token *google.TokenRecord)
}

// Config holds what a listener needs to complete one authorization.
type Config struct {
	Exchanger Exchanger

	// Verifier is the PKCE verifier returned alongside the consent URL.
	Verifier string

	Store    TokenSink
	Notifier Notifier
}

// Option configures a Listener.
type Option func(*Listener)

// WithStateValidation rejects redirects whose state parameter differs from
// state. Off by default.
func WithStateValidation(state string) Option {
	return func(l *Listener) {
		l.expectedState = state
		l.validateState = true
	}
}

// WithReadTimeout overrides DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Listener) {
		l.readTimeout = d
	}
}

// WithLogger sets the listener's logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithMetrics records handled connections on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// Listener waits for a single successful OAuth redirect on a loopback port.
type Listener struct {
	ln  net.Listener
	cfg Config

	expectedState string
	validateState bool
	readTimeout   time.Duration

	logger  logging.Logger
	metrics *instrumentation.Metrics

	closeOnce sync.Once
	closeErr  error
}

// Listen binds addr. A bind failure, typically because another listener
// already holds the port, wraps google.ErrBind.
func Listen(addr string, cfg Config, opts ...Option) (*Listener, error) {
	if cfg.Exchanger == nil || cfg.Store == nil {
		return nil, fmt.Errorf("%w: callback listener needs an exchanger and a token store", google.ErrConfig)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}

	l := &Listener{
		cfg:         cfg,
		readTimeout: DefaultReadTimeout,
		logger:      logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen on %s: %w", google.ErrBind, addr, err)
	}
	l.ln = ln

	l.logger.Info("OAuth callback listener started", "addr", ln.Addr().String())
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the listener. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}

// Run handles connections one at a time until a redirect has been exchanged
// and stored, then returns the stored token. It returns ctx.Err() when ctx is
// cancelled and ErrClosed when Close was called. The listener is closed on
// return.
func (l *Listener) Run(ctx context.Context) (*google.TokenRecord, error) {
	l.metrics.IncrementActiveListeners(ctx)
	defer l.metrics.DecrementActiveListeners(context.WithoutCancel(ctx))

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()
	defer func() { _ = l.Close() }()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, ErrClosed
			}
			l.logger.Warn("Failed to accept callback connection", "error", err)
			continue
		}

		if record := l.handle(ctx, conn); record != nil {
			return record, nil
		}
	}
}

// handle serves one connection and returns the stored token when the
// redirect completed the authorization.
func (l *Listener) handle(ctx context.Context, conn net.Conn) *google.TokenRecord {
	defer conn.Close()

	start := time.Now()
	ctx, span := instrumentation.StartSpan(ctx, "oauth.callback")
	defer span.End()

	outcome := instrumentation.CallbackOutcomeIgnored
	defer func() {
		span.SetAttributes(attribute.String(instrumentation.SpanAttrCallbackOutcome, outcome))
		l.metrics.RecordCallbackRequest(ctx, outcome, time.Since(start))
	}()

	if l.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		outcome = instrumentation.CallbackOutcomeUnreadable
		l.logger.Debug("Failed to read callback request line", "error", err)
		return nil
	}

	req, err := ParseRequestLine(line)
	if err != nil {
		outcome = instrumentation.CallbackOutcomeUnreadable
		l.logger.Debug("Ignoring malformed request line", "error", err)
		return nil
	}
	if req.Path != Path {
		l.logger.Debug("Ignoring request for unrelated path", "path", req.Path)
		return nil
	}

	outcome = instrumentation.CallbackOutcomeFailed

	if reason, denied := req.Param("error"); denied {
		l.logger.Warn("Authorization was not granted", "reason", reason)
		l.respond(conn, http.StatusInternalServerError, failurePage("Google reported: "+reason+"."))
		return nil
	}

	if l.validateState {
		if state, _ := req.Param("state"); state != l.expectedState {
			l.logger.Warn("Rejecting callback with unexpected state")
			l.respond(conn, http.StatusInternalServerError, failurePage("The sign-in response did not match this request."))
			return nil
		}
	}

	code, _ := req.Param("code")
	if code == "" {
		l.logger.Warn("Callback did not carry an authorization code")
		l.respond(conn, http.StatusInternalServerError, failurePage("No authorization code was received."))
		return nil
	}

	l.logger.Debug("Exchanging authorization code", "code", logging.SanitizeToken(code))
	record, err := l.cfg.Exchanger.Exchange(ctx, code, l.cfg.Verifier)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		l.logger.Error("Failed to exchange authorization code", "error", err)
		l.respond(conn, http.StatusInternalServerError, failurePage("The authorization code could not be exchanged for a token."))
		return nil
	}

	l.cfg.Store.Set(l.cfg.Exchanger.Credentials(), record)
	l.respond(conn, http.StatusOK, successPage())

	outcome = instrumentation.CallbackOutcomeCompleted
	instrumentation.SetSpanSuccess(span)
	l.logger.Info("OAuth callback completed",
		"expires_at", record.ExpiresAt,
		"has_refresh_token", record.HasRefreshToken())

	l.cfg.Notifier.NotifyAuthComplete(ctx, AuthCompleteEvent{
		ExpiresAt:       record.ExpiresAt,
		HasRefreshToken: record.HasRefreshToken(),
	})
	return record
}

func (l *Listener) respond(conn net.Conn, status int, body string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	_, err := fmt.Fprintf(conn,
		"HTTP/1.1 %d %s\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, http.StatusText(status), len(body), body)
	if err != nil {
		l.logger.Debug("Failed to write callback response", "error", err)
	}
}
