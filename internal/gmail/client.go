package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/draftbox/internal/google"
	"github.com/teemow/draftbox/internal/instrumentation"
	"github.com/teemow/draftbox/internal/logging"
)

// TokenSource hands out a valid access token. *google.Store implements it.
type TokenSource interface {
	GetValidToken(ctx context.Context) (*google.TokenRecord, error)
}

// Composer creates Gmail drafts on behalf of the authenticated user.
type Composer struct {
	tokens     TokenSource
	httpClient *http.Client
	endpoint   string
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithEndpoint overrides the Gmail API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Composer) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets the base HTTP client. The bearer token is added on top.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Composer) {
		c.httpClient = hc
	}
}

// WithMetrics records Gmail API calls on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Composer) {
		c.metrics = m
	}
}

// WithLogger sets the composer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		c.logger = logger
	}
}

// NewComposer returns a Composer drawing tokens from tokens.
func NewComposer(tokens TokenSource, opts ...Option) *Composer {
	c := &Composer{
		tokens:     tokens,
		httpClient: defaultHTTPClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComposeMessage builds the message text stored in a draft. The recipient
// header is left empty for the user to fill in.
func ComposeMessage(subject, body string) string {
	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(subject)
	b.WriteString("\r\n")
	b.WriteString("To: \r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// EncodeRaw encodes a message for the raw field of a draft, using the
// standard base64 alphabet.
func EncodeRaw(message string) string {
	return base64.StdEncoding.EncodeToString([]byte(message))
}

// CreateDraft creates a draft with the given subject and body. Token errors
// from the store are returned unchanged. API failures wrap google.ErrAPI and
// unparseable responses wrap google.ErrDecode.
func (c *Composer) CreateDraft(ctx context.Context, subject, body string) (*Draft, error) {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationCreateDraft)
	defer span.End()
	start := time.Now()

	draft := &gmail.Draft{
		Message: &gmail.Message{
			Raw: EncodeRaw(ComposeMessage(subject, body)),
		},
	}

	created, err := svc.Users.Drafts.Create("me", draft).Context(ctx).Do()
	if err == nil && created.Id == "" {
		err = fmt.Errorf("%w: draft response has no id", google.ErrDecode)
	}
	if err != nil {
		err = classifyError(err)
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationCreateDraft, instrumentation.StatusError, time.Since(start))
		c.logger.Error("Failed to create draft", logging.Operation(instrumentation.OperationCreateDraft), logging.Err(err))
		return nil, err
	}

	instrumentation.SetSpanSuccess(span)
	span.SetAttributes(attribute.String(instrumentation.SpanAttrDraftID, created.Id))
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationCreateDraft, instrumentation.StatusSuccess, time.Since(start))
	c.logger.Info("Created draft", logging.Operation(instrumentation.OperationCreateDraft), "draft_id", created.Id)

	result := &Draft{ID: created.Id}
	if created.Message != nil {
		result.Message = DraftMessage{
			ID:       created.Message.Id,
			ThreadID: created.Message.ThreadId,
		}
	}
	return result, nil
}

func (c *Composer) service(ctx context.Context, token *google.TokenRecord) (*gmail.Service, error) {
	baseCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(token.OAuth2Token()))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// classifyError maps client library errors onto the error taxonomy.
func classifyError(err error) error {
	if errors.Is(err, google.ErrDecode) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return &google.APIError{StatusCode: apiErr.Code, Body: body}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: failed to parse draft response: %w", google.ErrDecode, err)
	}

	return &google.APIError{Body: err.Error()}
}
