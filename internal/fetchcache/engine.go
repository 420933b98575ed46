package fetchcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/storyapp/storysync/internal/logging"
)

// Response is what Fetch hands back regardless of which source answered.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	FromCache bool
}

// Engine routes fetches between the network and the response cache.
//
// Policy:
//   - non-GET requests always pass straight through and are never cached
//   - GETs against the API origin are network-first with a cached fallback
//   - every other GET is cache-first; the network is consulted only on a miss
//
// Only 2xx responses are ever written to the cache.
type Engine struct {
	cache      *Cache
	httpClient *http.Client
	apiHost    string
	shellBase  string
	appShell   []string
	log        logging.Logger
}

type EngineOption func(*Engine)

func WithHTTPClient(client *http.Client) EngineOption {
	return func(e *Engine) { e.httpClient = client }
}

// WithAppShell sets the URLs precached on Install. Relative paths resolve
// against the shell base URL.
func WithAppShell(urls []string) EngineOption {
	return func(e *Engine) { e.appShell = urls }
}

// WithShellBaseURL sets the origin that relative URLs resolve against. It
// defaults to the API origin.
func WithShellBaseURL(base string) EngineOption {
	return func(e *Engine) { e.shellBase = strings.TrimRight(base, "/") }
}

func WithEngineLogger(log logging.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine builds a fetch engine. apiBaseURL decides which requests count as
// API traffic: any URL with the same host gets the network-first treatment.
func NewEngine(cache *Cache, apiBaseURL string, opts ...EngineOption) (*Engine, error) {
	u, err := url.Parse(apiBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}

	e := &Engine{
		cache:      cache,
		httpClient: http.DefaultClient,
		apiHost:    u.Host,
		shellBase:  u.Scheme + "://" + u.Host,
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Install precaches the app shell. Any shell fetch failure fails the whole
// install, mirroring an all-or-nothing precache step.
func (e *Engine) Install(ctx context.Context) error {
	for _, u := range e.appShell {
		if err := e.fetchAndCache(ctx, u); err != nil {
			return fmt.Errorf("precache %s: %w", u, err)
		}
	}
	e.log.Info(ctx, "app shell precached", "urls", len(e.appShell), "namespace", e.cache.Namespace())
	return nil
}

// Activate drops every cached response written under a previous version.
func (e *Engine) Activate(ctx context.Context) error {
	n, err := e.cache.PurgeStale()
	if err != nil {
		return err
	}
	if n > 0 {
		e.log.Info(ctx, "purged stale cache entries", "count", n, "namespace", e.cache.Namespace())
	}
	return nil
}

// CacheURLs warms the cache with the given URLs. Individual failures are
// logged and skipped; the count of successfully cached URLs is returned.
func (e *Engine) CacheURLs(ctx context.Context, urls []string) int {
	cached := 0
	for _, u := range urls {
		if err := e.fetchAndCache(ctx, u); err != nil {
			e.log.Warn(ctx, "cache warm failed", "url", u, "error", err)
			continue
		}
		cached++
	}
	return cached
}

// Fetch answers one request according to the routing policy.
func (e *Engine) Fetch(ctx context.Context, method, rawURL string) (*Response, error) {
	rawURL = e.resolve(rawURL)
	if method != http.MethodGet {
		return e.fromNetwork(ctx, method, rawURL, false)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if u.Host == e.apiHost {
		return e.networkFirst(ctx, rawURL)
	}
	return e.cacheFirst(ctx, rawURL)
}

// networkFirst tries the origin and falls back to the cache only when the
// network itself fails. HTTP error statuses are live answers and are returned
// as-is rather than masked by stale cache.
func (e *Engine) networkFirst(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := e.fromNetwork(ctx, http.MethodGet, rawURL, true)
	if err == nil {
		return resp, nil
	}

	cached, ok, cacheErr := e.cache.Get(http.MethodGet, rawURL)
	if cacheErr != nil {
		return nil, cacheErr
	}
	if !ok {
		return nil, err
	}

	e.log.Info(ctx, "network unavailable, serving cached response", "url", rawURL)
	return respFromCache(cached), nil
}

// cacheFirst serves a hit without touching the network at all.
func (e *Engine) cacheFirst(ctx context.Context, rawURL string) (*Response, error) {
	cached, ok, err := e.cache.Get(http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	if ok {
		return respFromCache(cached), nil
	}
	return e.fromNetwork(ctx, http.MethodGet, rawURL, true)
}

// fromNetwork executes the request, caching the response when asked to and
// the status is 2xx.
func (e *Engine) fromNetwork(ctx context.Context, method, rawURL string, cacheable bool) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header.Clone(),
		Body:   body,
	}

	if cacheable && resp.Status >= 200 && resp.Status <= 299 {
		entry := &CachedResponse{Status: resp.Status, Header: resp.Header, Body: body}
		if err := e.cache.Put(method, rawURL, entry); err != nil {
			// A cache write failure must not fail a served response.
			e.log.Warn(ctx, "cache write failed", "url", rawURL, "error", err)
		}
	}
	return resp, nil
}

// resolve turns a relative path into an absolute URL against the shell base.
func (e *Engine) resolve(rawURL string) string {
	if strings.HasPrefix(rawURL, "/") {
		return e.shellBase + rawURL
	}
	return rawURL
}

func (e *Engine) fetchAndCache(ctx context.Context, rawURL string) error {
	resp, err := e.fromNetwork(ctx, http.MethodGet, e.resolve(rawURL), true)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return fmt.Errorf("unexpected status %d", resp.Status)
	}
	return nil
}

func respFromCache(c *CachedResponse) *Response {
	return &Response{
		Status:    c.Status,
		Header:    c.Header,
		Body:      c.Body,
		FromCache: true,
	}
}
