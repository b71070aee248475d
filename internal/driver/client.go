// client.go -- Flow driver side of the coordinator handoff.
//
// A flow driver starts callbackd as a separate process, waits for its ping
// endpoint to answer, pushes the user token identifier, and only then sends
// the user to the authorization server with CallbackURL as the redirect.
// Nothing on the coordinator enforces that order; this client is where it lives.
package driver

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

	"github.com/MGallo-Code/callbackd/internal/callback"
	"github.com/MGallo-Code/callbackd/internal/identity"
	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultPort           = 9090
	DefaultReadyTimeout   = 30 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 2 * time.Second
	DefaultProgressEvery  = 10 * time.Second
)

// ErrNotReady is returned by WaitUntilReady when no ping succeeded before the deadline.
// The caller must not push an identifier or start the redirect.
var ErrNotReady = errors.New("oauth2 callback server not ready")

// BaseURL returns the coordinator's local base URL for port.
func BaseURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// CallbackURL returns the redirect URL to register with the authorization server.
func CallbackURL(port int) string {
	return BaseURL(port) + callback.PathOAuth2Callback
}

// Client talks to a running coordinator.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	pollInterval  time.Duration
	progressEvery time.Duration
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets the delay between readiness probes.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithRequestTimeout bounds each individual request (probe or push).
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithProgressEvery sets how often WaitUntilReady logs that it is still waiting.
func WithProgressEvery(d time.Duration) Option {
	return func(c *Client) { c.progressEvery = d }
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the coordinator at baseURL (e.g. BaseURL(9090)).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    &http.Client{Timeout: DefaultRequestTimeout},
		pollInterval:  DefaultPollInterval,
		progressEvery: DefaultProgressEvery,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping issues one readiness probe. Returns nil only on 200.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+callback.PathPing, nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// WaitUntilReady probes the coordinator every poll interval until a ping succeeds or
// timeout elapses. Connection failures mean "not ready yet" and are not reported
// individually; progress is logged every progressEvery. Returns ErrNotReady on timeout.
func (c *Client) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	c.logger.Info("waiting for oauth2 callback server to be ready", "url", c.baseURL, "timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	nextReport := c.progressEvery
	var lastErr error

	_, err := backoff.Retry(ctx,
		func() (struct{}, error) {
			lastErr = c.Ping(ctx)
			return struct{}{}, lastErr
		},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		// The context deadline is the real budget; keep the library's own cap out of its way.
		backoff.WithMaxElapsedTime(timeout+c.pollInterval),
		backoff.WithNotify(func(err error, _ time.Duration) {
			elapsed := time.Since(start)
			if c.progressEvery <= 0 || elapsed < nextReport {
				return
			}
			for elapsed >= nextReport {
				nextReport += c.progressEvery
			}
			c.logger.Info("still waiting for oauth2 callback server",
				"elapsed", elapsed.Round(time.Second), "timeout", timeout, "last_error", err)
		}),
	)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		c.logger.Error("timeout: oauth2 callback server not ready", "timeout", timeout, "error", lastErr)
		return fmt.Errorf("%w after %s: %w", ErrNotReady, timeout, lastErr)
	}

	c.logger.Info("oauth2 callback server is ready", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// PushIdentifier stores id on the coordinator. One attempt, bounded by the request timeout.
// Call only after WaitUntilReady has returned nil.
func (c *Client) PushIdentifier(ctx context.Context, id identity.UserTokenIdentifier) error {
	payload, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encoding identifier: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+callback.PathStoreToken, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store identifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&body)
		return fmt.Errorf("store identifier: status %d: %s", resp.StatusCode, body.Message)
	}
	return nil
}
