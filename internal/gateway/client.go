// Package gateway is the HTTP client for the story API. Every remote call
// goes through a single retry-wrapped request path: transport failures are
// retried with exponential backoff, HTTP error statuses are surfaced
// immediately as API errors and never retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/storyapp/storysync/internal/common"
	"github.com/storyapp/storysync/internal/logging"
)

const (
	DefaultBaseURL = "https://story-api.dicoding.dev/v1"
	DefaultTimeout = 30 * time.Second

	defaultRetryBaseDelay   = 500 * time.Millisecond
	defaultRetryMaxAttempts = 2
)

// Client talks to the story API. The zero value is not usable; construct with
// NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        logging.Logger

	retryBaseDelay   time.Duration
	retryMaxAttempts int
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithRetry tunes the transport retry policy: the first wait is baseDelay and
// doubles per attempt, up to maxAttempts retries after the initial try.
func WithRetry(baseDelay time.Duration, maxAttempts int) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxAttempts = maxAttempts
	}
}

func WithLogger(log logging.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a story API client. tokens supplies the bearer token for
// authenticated endpoints; pass a source that returns "" for anonymous use.
func NewClient(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:          DefaultBaseURL,
		httpClient:       &http.Client{Timeout: DefaultTimeout},
		tokens:           tokens,
		log:              logging.Nop(),
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxAttempts: defaultRetryMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiEnvelope is the common wrapper every endpoint responds with.
type apiEnvelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// doRequest executes one API call. The body is held as bytes so the request
// can be rebuilt on each retry attempt. Returns the raw response body for any
// 2xx status; other statuses become errors via statusError.
func (c *Client) doRequest(ctx context.Context, method, path string, contentType string, body []byte, query url.Values, authed bool) ([]byte, error) {
	return c.doRequestHeaders(ctx, method, path, contentType, body, query, authed, nil)
}

func (c *Client) doRequestHeaders(ctx context.Context, method, path string, contentType string, body []byte, query url.Values, authed bool, headers http.Header) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	// An absent token is not checked client-side: the request goes out
	// without an Authorization header and the server answers 401.
	var token string
	if authed {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	backoff := retry.WithMaxRetries(uint64(c.retryMaxAttempts), retry.NewExponential(c.retryBaseDelay))

	var respBody []byte
	var status int
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport-level failure: the only class of error worth
			// retrying. HTTP statuses, including 5xx, come back below
			// and are reported to the caller as-is.
			c.log.Warn(ctx, "request failed, will retry", "method", method, "url", u, "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %s %s: %v", common.ErrTransport, method, u, err))
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		respBody, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		return nil, statusError(status, respBody)
	}
	return respBody, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, authed bool, out any) error {
	data, err := c.doRequest(ctx, http.MethodGet, path, "", nil, query, authed)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, authed bool, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	data, err := c.doRequest(ctx, http.MethodPost, path, "application/json", body, nil, authed)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// statusError converts a non-2xx response into an error. The API's message
// field is preserved when present; 401 and 403 additionally match the
// common.ErrUnauthorized / common.ErrPermissionDenied sentinels.
func statusError(status int, body []byte) error {
	var env apiEnvelope
	_ = json.Unmarshal(body, &env)
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	apiErr := &common.APIError{StatusCode: status, Message: msg}
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", common.ErrUnauthorized, apiErr)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %w", common.ErrPermissionDenied, apiErr)
	default:
		return apiErr
	}
}
