// client.go -- HTTP client for the identity service's CompleteResourceTokenAuth operation.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// completePath is appended to the configured endpoint.
const completePath = "/identities/CompleteResourceTokenAuth"

// maxErrorBody caps how much of a failed response we read into the error message.
const maxErrorBody = 4 << 10

var tracer = otel.Tracer("github.com/MGallo-Code/callbackd/internal/identity")

// ClientConfig configures NewClient.
type ClientConfig struct {
	// Endpoint is the identity service base URL, without trailing slash.
	Endpoint string

	// Optional client-credentials auth. Set TokenURL directly, or IssuerURL to discover it.
	IssuerURL    string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Timeout bounds each call, token fetch included.
	Timeout time.Duration
}

// Client implements Service over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a Client. When ClientID is set it resolves the token endpoint
// (OIDC discovery if IssuerURL is given) and attaches a client-credentials token source.
// Discovery makes an outbound request; returns an error if the issuer is unreachable.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("identity: endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		tokenURL := cfg.TokenURL
		if cfg.IssuerURL != "" {
			p, err := oidc.NewProvider(ctx, cfg.IssuerURL)
			if err != nil {
				return nil, fmt.Errorf("identity oidc discovery: %w", err)
			}
			tokenURL = p.Endpoint().TokenURL
		}
		if tokenURL == "" {
			return nil, fmt.Errorf("identity: no token endpoint for client credentials")
		}

		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       cfg.Scopes,
		}
		// Token fetches outlive ctx (startup); give them their own bounded client.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		httpClient.Transport = &oauth2.Transport{
			Source: cc.TokenSource(tokenCtx),
			Base:   http.DefaultTransport,
		}
	}

	return &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: httpClient,
	}, nil
}

// completeRequest is the wire body of CompleteResourceTokenAuth.
type completeRequest struct {
	SessionURI     string         `json:"sessionUri"`
	UserIdentifier userIdentifier `json:"userIdentifier"`
}

type userIdentifier struct {
	UserToken string `json:"userToken,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// CompleteResourceTokenAuth tells the identity service the user finished consenting for sessionURI.
// Failures are returned as *Error; the call is not retried.
func (c *Client) CompleteResourceTokenAuth(ctx context.Context, sessionURI string, id UserTokenIdentifier) (err error) {
	ctx, span := tracer.Start(ctx, "identity.CompleteResourceTokenAuth")
	span.SetAttributes(attribute.String("identity.identifier_kind", id.Kind()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	// Whitespace-only fields are absent; only the present one goes on the wire.
	id = id.Normalize()
	payload, err := json.Marshal(completeRequest{
		SessionURI: sessionURI,
		UserIdentifier: userIdentifier{
			UserToken: id.UserToken,
			UserID:    id.UserID,
		},
	})
	if err != nil {
		return &Error{Kind: KindBadResponse, Message: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+completePath, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: KindBadResponse, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if e := tokenError(err); e != nil {
			return e
		}
		return &Error{Kind: transportKind(ctx, err), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return &Error{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.Body),
	}
}

// tokenError classifies a failed client-credentials token fetch, which oauth2.Transport
// surfaces as *oauth2.RetrieveError inside the *url.Error. A 4xx from the token endpoint
// means the credentials were refused. Returns nil if err is not a token response.
func tokenError(err error) *Error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return nil
	}
	status := re.Response.StatusCode
	msg := "token endpoint request failed"
	if status >= 400 && status < 500 {
		msg = "token endpoint rejected client credentials"
	}
	if re.ErrorCode != "" {
		msg += ": " + re.ErrorCode
	}
	return &Error{Kind: kindForStatus(status), StatusCode: status, Message: msg, Err: err}
}

// transportKind separates deadline failures from unreachable-service failures.
func transportKind(ctx context.Context, err error) Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnavailable
}

// errorMessage pulls "message" (or "Message") from a JSON error body, else returns the raw text.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(raw))
}
