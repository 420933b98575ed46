package fetchcache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, namespace string) *Cache {
	t.Helper()
	c, err := OpenCache(t.TempDir(), namespace)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// countingServer serves static content and counts hits per path.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newEngine(t *testing.T, cache *Cache, apiBase string, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(cache, apiBase, opts...)
	require.NoError(t, err)
	return e
}

func TestFetch_CacheFirstSkipsNetworkOnHit(t *testing.T) {
	static, hits := countingServer(t, http.StatusOK, "shell content")
	cache := openTestCache(t, "v1")
	// API lives elsewhere, so the static server gets the cache-first path.
	e := newEngine(t, cache, "https://api.invalid")
	ctx := context.Background()

	first, err := e.Fetch(ctx, http.MethodGet, static.URL+"/index.html")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "shell content", string(first.Body))

	second, err := e.Fetch(ctx, http.MethodGet, static.URL+"/index.html")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "shell content", string(second.Body))

	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "a cache hit must not touch the network")
}

func TestFetch_NetworkFirstPrefersLiveResponse(t *testing.T) {
	api, hits := countingServer(t, http.StatusOK, `{"listStory":[]}`)
	cache := openTestCache(t, "v1")
	e := newEngine(t, cache, api.URL)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := e.Fetch(ctx, http.MethodGet, api.URL+"/v1/stories")
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "api requests go to the network every time it is up")
}

func TestFetch_NetworkFirstFallsBackToCacheWhenOffline(t *testing.T) {
	api, _ := countingServer(t, http.StatusOK, `{"listStory":[{"id":"s1"}]}`)
	cache := openTestCache(t, "v1")
	e := newEngine(t, cache, api.URL)
	ctx := context.Background()

	// Populate the cache while online.
	_, err := e.Fetch(ctx, http.MethodGet, api.URL+"/v1/stories")
	require.NoError(t, err)

	api.Close()

	resp, err := e.Fetch(ctx, http.MethodGet, api.URL+"/v1/stories")
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Contains(t, string(resp.Body), "s1")
}

func TestFetch_NetworkFirstWithEmptyCachePropagatesError(t *testing.T) {
	api, _ := countingServer(t, http.StatusOK, "")
	cache := openTestCache(t, "v1")
	e := newEngine(t, cache, api.URL)
	api.Close()

	_, err := e.Fetch(context.Background(), http.MethodGet, api.URL+"/v1/stories")
	require.Error(t, err)
}

func TestFetch_ErrorStatusesAreNotCached(t *testing.T) {
	static, _ := countingServer(t, http.StatusNotFound, "missing")
	cache := openTestCache(t, "v1")
	e := newEngine(t, cache, "https://api.invalid")

	resp, err := e.Fetch(context.Background(), http.MethodGet, static.URL+"/gone")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	_, ok, err := cache.Get(http.MethodGet, static.URL+"/gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetch_NonGETAlwaysPassesThrough(t *testing.T) {
	api, hits := countingServer(t, http.StatusCreated, `{"message":"created"}`)
	cache := openTestCache(t, "v1")
	e := newEngine(t, cache, api.URL)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := e.Fetch(ctx, http.MethodPost, api.URL+"/v1/stories")
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
		assert.Equal(t, http.StatusCreated, resp.Status)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	_, ok, err := cache.Get(http.MethodPost, api.URL+"/v1/stories")
	require.NoError(t, err)
	assert.False(t, ok, "non-GET responses must never be cached")
}

func TestInstall_PrecachesAppShell(t *testing.T) {
	static, hits := countingServer(t, http.StatusOK, "asset")
	cache := openTestCache(t, "v1")
	e := newEngine(t, cache, "https://api.invalid",
		WithShellBaseURL(static.URL),
		WithAppShell([]string{"/", "/index.html", "/manifest.json"}),
	)
	ctx := context.Background()

	require.NoError(t, e.Install(ctx))
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))

	// Shell assets now serve from cache without the network.
	static.Close()
	resp, err := e.Fetch(ctx, http.MethodGet, "/index.html")
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Equal(t, "asset", string(resp.Body))
}

func TestActivate_DropsOldNamespaceKeepsCurrent(t *testing.T) {
	dir := t.TempDir()

	old, err := OpenCache(dir, "story-app-v1")
	require.NoError(t, err)
	require.NoError(t, old.Put(http.MethodGet, "https://x/a", &CachedResponse{Status: 200, Body: []byte("old")}))
	require.NoError(t, old.Close())

	cur, err := OpenCache(dir, "story-app-v2")
	require.NoError(t, err)
	require.NoError(t, cur.Put(http.MethodGet, "https://x/a", &CachedResponse{Status: 200, Body: []byte("new")}))

	e := newEngine(t, cur, "https://api.invalid")
	require.NoError(t, e.Activate(context.Background()))

	got, ok, err := cur.Get(http.MethodGet, "https://x/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", string(got.Body))

	// The old namespace is gone: reopening under it finds nothing.
	require.NoError(t, cur.Close())
	reopened, err := OpenCache(dir, "story-app-v1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	_, ok, err = reopened.Get(http.MethodGet, "https://x/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheURLs_BestEffort(t *testing.T) {
	static, _ := countingServer(t, http.StatusOK, "page")
	cache := openTestCache(t, "v1")
	e := newEngine(t, cache, "https://api.invalid", WithShellBaseURL(static.URL))

	n := e.CacheURLs(context.Background(), []string{
		"/good",
		"http://127.0.0.1:1/unreachable",
	})
	assert.Equal(t, 1, n)

	_, ok, err := cache.Get(http.MethodGet, static.URL+"/good")
	require.NoError(t, err)
	assert.True(t, ok)
}
