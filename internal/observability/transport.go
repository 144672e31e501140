// Package observability provides HTTP instrumentation and the metrics server.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"transcript-navigator/internal/observability/metrics"
)

type operationKey struct{}

// WithOperation tags ctx with the backend operation name used as metric label.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// Operation returns the operation name carried by ctx, or "unknown".
func Operation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// Transport is an http.RoundTripper that records latency and status of every
// transcript API call.
type Transport struct {
	next    http.RoundTripper
	metrics *metrics.Metrics
}

// NewTransport wraps next. A nil next uses http.DefaultTransport.
func NewTransport(next http.RoundTripper, m *metrics.Metrics) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Transport{next: next, metrics: m}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	op := Operation(req.Context())

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)
	code := "error"
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	t.metrics.RecordBackendRequest(op, code, duration.Seconds())

	log.Debug().
		Str("operation", op).
		Str("url", req.URL.Redacted()).
		Str("code", code).
		Dur("duration", duration).
		Msg("Transcript API call")

	return resp, err
}
