// Package sink delivers JSON payloads to the external collector.
//
// Delivery is best effort: a non-2xx answer or a transport error is returned
// to the caller, which logs and drops it. Nothing here retries.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"polmem/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrStatus is returned for any non-2xx collector response.
var ErrStatus = errors.New("collector returned non-2xx status")

// Sink posts one payload to a collector path.
type Sink interface {
	Post(ctx context.Context, path string, payload any) error
}

// HTTPSink posts JSON to baseURL+path.
type HTTPSink struct {
	baseURL    string
	authHeader string
	authValue  string
	timeout    time.Duration
	client     *http.Client
}

var _ Sink = (*HTTPSink)(nil)

type Option func(*HTTPSink)

// WithAuth adds header: value to every request.
func WithAuth(header, value string) Option {
	return func(s *HTTPSink) {
		s.authHeader = header
		s.authValue = value
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSink) {
		s.timeout = d
	}
}

func WithClient(c *http.Client) Option {
	return func(s *HTTPSink) {
		s.client = c
	}
}

func NewHTTPSink(baseURL string, options ...Option) *HTTPSink {
	s := &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 5 * time.Second,
		client:  http.DefaultClient,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *HTTPSink) Post(ctx context.Context, path string, payload any) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sink.post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("sink.path", path)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authHeader != "" {
		req.Header.Set(s.authHeader, s.authValue)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: %d: %w", path, resp.StatusCode, ErrStatus)
	}
	return nil
}
