package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrOutcome   = "outcome"
)

var (
	callbackBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}
	requestBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// Metrics records draftbox metrics. The zero value and a nil *Metrics are
// valid recorders that drop everything.
type Metrics struct {
	enabled bool

	callbackRequests  metric.Int64Counter
	callbackDuration  metric.Float64Histogram
	callbackListeners metric.Int64UpDownCounter

	apiOperations metric.Int64Counter
	apiDuration   metric.Float64Histogram

	codeExchanges metric.Int64Counter
	refreshes     metric.Int64Counter

	toolInvocations metric.Int64Counter
	toolDuration    metric.Float64Histogram
}

// instrumentSet creates instruments on one meter and keeps the first error.
type instrumentSet struct {
	meter metric.Meter
	err   error
}

func (s *instrumentSet) keep(name string, err error) {
	if err != nil && s.err == nil {
		s.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
}

func (s *instrumentSet) counter(name, description, unit string) metric.Int64Counter {
	c, err := s.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	s.keep(name, err)
	return c
}

func (s *instrumentSet) gauge(name, description, unit string) metric.Int64UpDownCounter {
	g, err := s.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	s.keep(name, err)
	return g
}

func (s *instrumentSet) seconds(name, description string, buckets []float64) metric.Float64Histogram {
	h, err := s.meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...))
	s.keep(name, err)
	return h
}

// NewMetrics creates every draftbox instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, errors.New("meter is required")
	}
	s := &instrumentSet{meter: meter}

	m := &Metrics{
		enabled: true,

		callbackRequests: s.counter("oauth_callback_requests_total",
			"Connections handled by the OAuth callback listener", "{request}"),
		callbackDuration: s.seconds("oauth_callback_request_duration_seconds",
			"OAuth callback handling time, including the code exchange", callbackBuckets),
		callbackListeners: s.gauge("oauth_callback_listeners_active",
			"OAuth callback listeners waiting for a redirect", "{listener}"),

		apiOperations: s.counter("google_api_operations_total",
			"Gmail API calls", "{operation}"),
		apiDuration: s.seconds("google_api_operation_duration_seconds",
			"Gmail API call duration", requestBuckets),

		codeExchanges: s.counter("oauth_auth_total",
			"Authorization code exchanges", "{attempt}"),
		refreshes: s.counter("oauth_token_refresh_total",
			"Access token refresh attempts", "{attempt}"),

		toolInvocations: s.counter("mcp_tool_invocations_total",
			"MCP tool invocations", "{invocation}"),
		toolDuration: s.seconds("mcp_tool_duration_seconds",
			"MCP tool execution time", requestBuckets),
	}
	if s.err != nil {
		return nil, s.err
	}
	return m, nil
}

func (m *Metrics) off() bool {
	return m == nil || !m.enabled
}

// RecordCallbackRequest records one connection handled by the callback
// listener. outcome is one of the CallbackOutcome* constants.
func (m *Metrics) RecordCallbackRequest(ctx context.Context, outcome string, duration time.Duration) {
	if m.off() {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrOutcome, outcome))
	m.callbackRequests.Add(ctx, 1, attrs)
	m.callbackDuration.Record(ctx, duration.Seconds(), attrs)
}

// IncrementActiveListeners counts a listener that started waiting.
func (m *Metrics) IncrementActiveListeners(ctx context.Context) {
	if m.off() {
		return
	}
	m.callbackListeners.Add(ctx, 1)
}

// DecrementActiveListeners counts a listener that stopped waiting.
func (m *Metrics) DecrementActiveListeners(ctx context.Context) {
	if m.off() {
		return
	}
	m.callbackListeners.Add(ctx, -1)
}

// RecordGoogleAPIOperation records one Gmail API call.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.off() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.apiOperations.Add(ctx, 1, attrs)
	m.apiDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records an authorization code exchange. result is
// OAuthResultSuccess or OAuthResultFailure.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.off() {
		return
	}
	m.codeExchanges.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a refresh attempt. result is one of the
// OAuthResult* constants.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.off() {
		return
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records one MCP tool call.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.off() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocations.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
