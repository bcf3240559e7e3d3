// Package hs4 is the HTTP client for the hub's JSON API.
//
// Every call is a GET against {base}/JSON with a request parameter. Failures
// are classified into the gateway error taxonomy at this boundary so callers
// can match on codes instead of messages.
package hs4

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/platform/otel"
	"github.com/louisbranch/hs4gate/internal/platform/timeouts"
)

const maxResponseBytes = 8 << 20

// Config configures a Client.
type Config struct {
	BaseURL  string
	User     string
	Password string
	// Timeout bounds each call. Zero uses timeouts.HubRequest.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to one hub.
type Client struct {
	endpoint string
	user     string
	password string
	timeout  time.Duration
	http     *http.Client
	tracer   trace.Tracer
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("hub base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid hub base url %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.HubRequest
	}
	return &Client{
		endpoint: base + "/JSON",
		user:     cfg.User,
		password: cfg.Password,
		timeout:  timeout,
		http:     client,
		tracer:   otel.Tracer("hs4"),
	}, nil
}

// call issues one JSON API request and returns the raw body.
func (c *Client) call(ctx context.Context, request string, params url.Values) (_ []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "hs4."+request, trace.WithAttributes(attribute.String("hs4.request", request)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := url.Values{}
	for key, values := range params {
		query[key] = values
	}
	query.Set("request", request)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "build hub request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.CodeTimeout, fmt.Sprintf("hub %s timed out after %s", request, c.timeout), err)
		}
		return nil, apperrors.Wrap(apperrors.CodeNetwork, fmt.Sprintf("hub %s request failed", request), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.CodeTimeout, fmt.Sprintf("hub %s timed out reading response", request), err)
		}
		return nil, apperrors.Wrap(apperrors.CodeNetwork, fmt.Sprintf("read hub %s response", request), err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if err := classifyResponse(request, resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
