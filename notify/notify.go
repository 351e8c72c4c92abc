// Package notify publishes completion events to an operator-facing
// webhook, so a spike of execution-timeouts or process-failures can page
// someone without polling /metrics.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dazedpro/claude-cli-proxy/iox"
	"github.com/dazedpro/claude-cli-proxy/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultBackoffStep is the per-attempt wait added between retries when
// Config.BackoffStep is unset.
const DefaultBackoffStep = 200 * time.Millisecond

// DefaultBackoffCeiling caps the wait between retries when
// Config.BackoffCeiling is unset.
const DefaultBackoffCeiling = 5 * time.Second

// Event is the payload published for a non-success outcome.
type Event struct {
	ReqID      string `json:"reqId"`
	Kind       string `json:"kind"`
	Model      string `json:"model,omitempty"`
	ElapsedMs  int64  `json:"elapsedMs"`
	Error      string `json:"error,omitempty"`
	OccurredAt string `json:"occurredAt"`
}

// Config configures the webhook adapter. Retries between attempts grow
// linearly (BackoffStep * attempt number) rather than doubling, and are
// capped at BackoffCeiling — both tunable so an operator with a flaky
// downstream collector can widen the window without a code change.
type Config struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Retries int

	BackoffStep    time.Duration
	BackoffCeiling time.Duration
}

// Adapter publishes completion events via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a webhook adapter. Returns an error if the URL is empty.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("notify adapter requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = DefaultBackoffStep
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = DefaultBackoffCeiling
	}
	return &Adapter{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Notify publishes event for any outcome other than success. Call sites
// should invoke this from the scheduler's CompletionHook, which already
// runs outside the scheduler mutex.
func (a *Adapter) Notify(ctx context.Context, reqID string, req types.Request, resp types.Response, elapsedMs int64) error {
	if resp.Kind == types.KindSuccess {
		return nil
	}
	event := &Event{
		ReqID:      reqID,
		Kind:       string(resp.Kind),
		Model:      req.Model,
		ElapsedMs:  elapsedMs,
		Error:      resp.Error,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	return a.deliver(ctx, event)
}

// StatusError is returned for non-2xx HTTP responses, distinguishing
// retriable (5xx) from non-retriable (4xx) failures.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// backoffFor returns the wait before the given retry attempt (1-indexed:
// attempt 1 is the first retry after the initial try). It grows linearly
// with the attempt number and saturates at BackoffCeiling rather than
// doubling without bound.
func (a *Adapter) backoffFor(attempt int) time.Duration {
	wait := a.config.BackoffStep * time.Duration(attempt)
	if wait > a.config.BackoffCeiling {
		return a.config.BackoffCeiling
	}
	return wait
}

// deliver POSTs event, retrying on transport errors and 5xx responses up
// to Config.Retries additional times. A 4xx response is treated as a
// permanent rejection and returned immediately without consuming a retry.
func (a *Adapter) deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	maxAttempts := a.config.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("notify: context canceled: %w", err)
		}

		lastErr = a.postEvent(ctx, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return fmt.Errorf("notify: non-retriable error: %w", lastErr)
		}

		if attempt == maxAttempts {
			break
		}

		wait := a.backoffFor(attempt)
		select {
		case <-ctx.Done():
			return fmt.Errorf("notify: context canceled during backoff: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("notify: failed after %d attempts: %w", maxAttempts, lastErr)
}

func (a *Adapter) postEvent(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
