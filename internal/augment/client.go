// Package augment calls the remote prompt-augmentation service.
//
// The HTTP contract is a single endpoint:
//
//	POST {base_url}/api/v1/generate-prompt
//	X-API-KEY: <shared secret>
//	{"user_query": "..."}  ->  200 {"augmented_prompt": "..."}
//
// Failures are reported as *Error carrying a FailureKind. A call makes one
// attempt unless the caller passes a RetryPolicy allowing more.
package augment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds each HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// MaxQueryLen is the longest query the service accepts, in characters.
	MaxQueryLen = 1000

	// MaxResultLen is the longest result the service promises, in characters.
	MaxResultLen = 10000

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 1 << 20

	generatePath = "/api/v1/generate-prompt"
	healthPath   = "/health"
)

// RetryPolicy bounds how often a failed call is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts; values below 1 mean 1.
	MaxAttempts int

	// Delay is the pause between attempts.
	Delay time.Duration
}

// NoRetry makes exactly one attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient defaults to a client with pooled connections.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client is the augmentation service client. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client. A missing base URL or API key is a
// KindConfiguration error.
func New(cfg Config) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "augment")
	}
	if err := c.configured(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) configured() error {
	var missing []string
	if c.baseURL == "" {
		missing = append(missing, "base_url")
	}
	if c.apiKey == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return &Error{Kind: KindConfiguration, Reason: "missing " + strings.Join(missing, ", ")}
	}
	return nil
}

type generateRequest struct {
	UserQuery string `json:"user_query"`
}

type generateResponse struct {
	AugmentedPrompt string `json:"augmented_prompt"`
}

// errorResponse covers the {"detail": ...} body the service sends with
// error statuses.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Call sends query and returns the augmented prompt. Attempts follow policy;
// the last attempt's error is returned when all fail.
func (c *Client) Call(ctx context.Context, query string, policy RetryPolicy) (string, error) {
	if err := c.configured(); err != nil {
		return "", err
	}
	if query == "" {
		return "", &Error{Kind: KindUpstreamStatus, Status: http.StatusUnprocessableEntity, Reason: "empty query"}
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLen {
		return "", &Error{Kind: KindUpstreamStatus, Status: http.StatusUnprocessableEntity, Reason: "query too long"}
	}

	reqID := uuid.NewString()
	attempts := policy.attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && policy.Delay > 0 {
			select {
			case <-ctx.Done():
				return "", &Error{Kind: KindTransport, Err: ctx.Err()}
			case <-time.After(policy.Delay):
			}
		}

		start := time.Now()
		result, err := c.do(ctx, reqID, query)
		if err == nil {
			c.logger.Info("augmentation succeeded",
				"request_id", reqID,
				"attempt", attempt,
				"duration", time.Since(start),
				"result_len", utf8.RuneCountInString(result),
			)
			return result, nil
		}

		lastErr = err
		c.logger.Warn("augmentation attempt failed",
			"request_id", reqID,
			"attempt", attempt,
			"max_attempts", attempts,
			"kind", KindOf(err).String(),
			"error", err,
		)
		if !Retryable(err) {
			break
		}
	}
	return "", lastErr
}

func (c *Client) do(ctx context.Context, reqID, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{UserQuery: query})
	if err != nil {
		return "", fmt.Errorf("augment: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindConfiguration, Reason: "invalid base_url", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-Request-ID", reqID)

	c.logger.Debug("augmentation request", "request_id", reqID, "query", preview(query))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: transportCause(ctx, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: transportCause(ctx, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Kind: KindUpstreamStatus, Status: resp.StatusCode, Reason: parseDetail(data)}
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &Error{Kind: KindEmptyResult, Reason: "malformed response", Err: err}
	}
	if strings.TrimSpace(out.AugmentedPrompt) == "" {
		return "", &Error{Kind: KindEmptyResult}
	}
	if n := utf8.RuneCountInString(out.AugmentedPrompt); n > MaxResultLen {
		c.logger.Warn("augmented prompt longer than the service contract allows",
			"request_id", reqID, "result_len", n, "max", MaxResultLen)
	}
	return out.AugmentedPrompt, nil
}

// transportCause prefers the context error so deadline expiry is
// recognizable with errors.Is.
func transportCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// parseDetail extracts a reason from an error body. FastAPI-style services
// send {"detail": "..."} or {"detail": [{"msg": "..."}]}.
func parseDetail(data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err != nil || len(er.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(er.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(er.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}

// HealthStatus is the service's /health response.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Model   string `json:"model,omitempty"`
}

// Health queries GET {base_url}/health. It does not send the API key.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return HealthStatus{}, &Error{Kind: KindConfiguration, Reason: "invalid base_url", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{}, &Error{Kind: KindTransport, Err: transportCause(ctx, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return HealthStatus{}, &Error{Kind: KindTransport, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return HealthStatus{}, &Error{Kind: KindUpstreamStatus, Status: resp.StatusCode, Reason: parseDetail(data)}
	}

	var hs HealthStatus
	if err := json.Unmarshal(data, &hs); err != nil {
		return HealthStatus{}, &Error{Kind: KindEmptyResult, Reason: "malformed health response", Err: err}
	}
	return hs, nil
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// preview shortens user text for debug logs.
func preview(s string) string {
	const n = 24
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
