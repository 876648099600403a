// Package remote wraps single provider calls with timeout, retry and
// cold-start backoff.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
)

const (
	DefaultRetryDelay    = 2 * time.Second
	DefaultColdStartWait = 15 * time.Second
	DefaultTimeout       = 60 * time.Second

	// maxColdStartHint bounds the provider's estimated_time; larger hints are ignored.
	maxColdStartHint = 10 * time.Minute

	maxBodyBytes = 8 << 20
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client holds the transport and backoff policy shared by every call.
type Client struct {
	http          *http.Client
	sleep         SleepFunc
	retryDelay    time.Duration
	coldStartWait time.Duration
	log           *slog.Logger
}

type ClientOptions struct {
	HTTP          *http.Client
	Sleep         SleepFunc
	RetryDelay    time.Duration
	ColdStartWait time.Duration
	Logger        *slog.Logger
}

func NewClient(opts ClientOptions) *Client {
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.ColdStartWait <= 0 {
		opts.ColdStartWait = DefaultColdStartWait
	}
	return &Client{
		http:          opts.HTTP,
		sleep:         opts.Sleep,
		retryDelay:    opts.RetryDelay,
		coldStartWait: opts.ColdStartWait,
		log:           logger.OrDefault(opts.Logger),
	}
}

// Request is re-sent verbatim on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Options controls one call.
type Options[T any] struct {
	Provider   string
	Timeout    time.Duration
	MaxRetries int
	Parse      func(body []byte) (T, error)
}

// Do sends req until it succeeds or the attempts are used up.
// A 503 waits for the body's estimated_time hint, anything else non-2xx waits
// the fixed retry delay. A 2xx body that fails to parse is not retried.
func Do[T any](ctx context.Context, c *Client, req Request, opts Options[T]) (T, error) {
	var zero T
	if opts.Parse == nil {
		return zero, errors.New("remote: parse function is required")
	}
	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	log := c.log.With("provider", opts.Provider, "endpoint", redactURL(req.URL))
	var lastErr *domain.ProviderError

	for attempt := 1; attempt <= attempts; attempt++ {
		status, body, err := c.send(ctx, req, opts.Timeout)

		var wait time.Duration
		var outcome string
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Warn("provider call cancelled", "attempt", attempt, "error", ctxErr)
				return zero, &domain.ProviderError{Provider: opts.Provider, Kind: domain.ProviderErrTransport, Err: ctxErr}
			}
			outcome = "transport_error"
			wait = c.retryDelay
			lastErr = &domain.ProviderError{Provider: opts.Provider, Kind: domain.ProviderErrTransport, Err: err}
		case status >= 200 && status < 300:
			value, parseErr := opts.Parse(body)
			if parseErr != nil {
				log.Warn("provider attempt", "attempt", attempt, "outcome", "parse_error", "status", status, "error", parseErr)
				return zero, &domain.ProviderError{
					Provider: opts.Provider,
					Kind:     domain.ProviderErrParse,
					Status:   status,
					Body:     string(body),
					Err:      parseErr,
				}
			}
			log.Info("provider attempt", "attempt", attempt, "outcome", "ok", "status", status)
			return value, nil
		case status == http.StatusServiceUnavailable:
			outcome = "cold_start"
			wait = c.coldStartHint(body)
			lastErr = &domain.ProviderError{Provider: opts.Provider, Kind: domain.ProviderErrStatus, Status: status, Body: string(body)}
		default:
			outcome = "http_error"
			wait = c.retryDelay
			lastErr = &domain.ProviderError{Provider: opts.Provider, Kind: domain.ProviderErrStatus, Status: status, Body: string(body)}
		}

		if attempt == attempts {
			log.Warn("provider attempt", "attempt", attempt, "outcome", outcome, "status", status, "final", true, "error", err)
			break
		}
		log.Warn("provider attempt", "attempt", attempt, "outcome", outcome, "status", status, "wait", wait, "error", err)

		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return zero, &domain.ProviderError{Provider: opts.Provider, Kind: domain.ProviderErrTransport, Err: sleepErr}
		}
	}

	return zero, lastErr
}

func (c *Client) send(ctx context.Context, req Request, timeout time.Duration) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return 0, nil, err
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, payload, nil
}

func (c *Client) coldStartHint(body []byte) time.Duration {
	var payload struct {
		EstimatedTime json.RawMessage `json:"estimated_time"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.EstimatedTime) == 0 {
		return c.coldStartWait
	}

	raw := strings.Trim(strings.TrimSpace(string(payload.EstimatedTime)), `"`)
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 || math.IsNaN(seconds) || seconds > maxColdStartHint.Seconds() {
		return c.coldStartWait
	}
	return time.Duration(seconds * float64(time.Second))
}

// JSON decodes a response body into T.
func JSON[T any](body []byte) (T, error) {
	var out T
	err := json.Unmarshal(body, &out)
	return out, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// redactURL drops the query so API keys never reach the log.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	parsed.RawQuery = ""
	parsed.User = nil
	return parsed.String()
}
