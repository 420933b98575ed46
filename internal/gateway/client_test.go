package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyapp/storysync/internal/common"
)

// flakyTransport fails the first n round trips at the transport level, then
// delegates to the default transport.
type flakyTransport struct {
	failures int32
	attempts int32
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := atomic.AddInt32(&t.attempts, 1)
	if n <= atomic.LoadInt32(&t.failures) {
		return nil, fmt.Errorf("connection refused (attempt %d)", n)
	}
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{
		WithBaseURL(srv.URL),
		WithRetry(time.Millisecond, 2),
	}
	return NewClient(StaticTokenSource("test-token"), append(base, opts...)...), srv
}

func TestDoRequest_RetriesTransportFailures(t *testing.T) {
	var served int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&served, 1)
		fmt.Fprint(w, `{"error":false,"message":"ok","listStory":[]}`)
	})

	transport := &flakyTransport{failures: 2}
	c, _ := newTestClient(t, handler, WithHTTPClient(&http.Client{Transport: transport}))

	_, err := c.ListStories(context.Background(), ListStoriesOptions{})
	require.NoError(t, err)

	// Two transport failures, then the attempt that reached the server.
	assert.Equal(t, int32(3), atomic.LoadInt32(&transport.attempts))
	assert.Equal(t, int32(1), atomic.LoadInt32(&served))
}

func TestDoRequest_GivesUpAfterMaxRetries(t *testing.T) {
	transport := &flakyTransport{failures: 100}
	c, _ := newTestClient(t, http.NotFoundHandler(), WithHTTPClient(&http.Client{Transport: transport}))

	_, err := c.ListStories(context.Background(), ListStoriesOptions{})
	require.ErrorIs(t, err, common.ErrTransport)

	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&transport.attempts))
}

func TestDoRequest_HTTPErrorStatusIsNotRetried(t *testing.T) {
	var served int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&served, 1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":true,"message":"boom"}`)
	})
	c, _ := newTestClient(t, handler)

	_, err := c.ListStories(context.Background(), ListStoriesOptions{})
	require.Error(t, err)

	apiErr, ok := common.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&served))
}

func TestDoRequest_UnauthorizedMatchesSentinel(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":true,"message":"Missing authentication"}`)
	})
	c, _ := newTestClient(t, handler)

	_, err := c.ListStories(context.Background(), ListStoriesOptions{})
	require.ErrorIs(t, err, common.ErrUnauthorized)

	apiErr, ok := common.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestListStories_SendsAuthAndLocationFlag(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("location"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		fmt.Fprint(w, `{"error":false,"message":"ok","listStory":[
			{"id":"s1","name":"Ana","description":"d","photoUrl":"https://x/p.jpg","createdAt":"2025-01-01T00:00:00Z","lat":-6.2,"lon":106.8},
			{"id":"s2","name":"Ben","description":"d2","photoUrl":"https://x/q.jpg","createdAt":"2025-01-02T00:00:00Z"}
		]}`)
	})
	c, _ := newTestClient(t, handler)

	stories, err := c.ListStories(context.Background(), ListStoriesOptions{Page: 2, WithLocation: true})
	require.NoError(t, err)
	require.Len(t, stories, 2)
	require.NotNil(t, stories[0].Lat)
	assert.InDelta(t, -6.2, *stories[0].Lat, 1e-9)
	assert.Nil(t, stories[1].Lat)
}

func TestDoRequest_NoTokenSendsRequestWithoutAuthHeader(t *testing.T) {
	var served int32
	var sawAuthHeader bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&served, 1)
		sawAuthHeader = r.Header.Get("Authorization") != ""
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":true,"message":"Missing authentication"}`)
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	// Without a stored session the request still goes out, just bare; the
	// server's 401 is what the caller sees.
	c := NewClient(StaticTokenSource(""), WithBaseURL(srv.URL))
	_, err := c.ListStories(context.Background(), ListStoriesOptions{})
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, int32(1), atomic.LoadInt32(&served))
	assert.False(t, sawAuthHeader)
}

func TestDoRequest_BackoffDelaysBetweenRetries(t *testing.T) {
	const base = 40 * time.Millisecond
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":false,"message":"ok","listStory":[]}`)
	})

	transport := &flakyTransport{failures: 2}
	c, _ := newTestClient(t, handler,
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetry(base, 2),
	)

	start := time.Now()
	_, err := c.ListStories(context.Background(), ListStoriesOptions{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&transport.attempts))
	// Exponential backoff: base before the first retry, doubled before the
	// second.
	assert.GreaterOrEqual(t, elapsed, base+2*base)
}

func TestStatusError_FallsBackToStatusText(t *testing.T) {
	err := statusError(http.StatusBadGateway, []byte("not json"))
	apiErr, ok := common.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
	assert.False(t, errors.Is(err, common.ErrUnauthorized))
}
