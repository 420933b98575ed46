// Package fetchcache implements the offline response cache and the fetch
// policy that decides, per request, whether the network or the cache answers
// first. Cached responses live in a Pebble store under a versioned namespace;
// bumping the version and activating drops every response cached by previous
// versions in one sweep.
package fetchcache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/storyapp/storysync/internal/common"
)

// CachedResponse is the persisted form of an HTTP response.
type CachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// Cache stores responses keyed by request under a single active namespace.
// Entries written by other namespaces remain on disk until PurgeStale.
type Cache struct {
	db        *pebble.DB
	namespace string
}

// OpenCache opens (creating if necessary) the response cache at dir. The
// namespace tags every entry this Cache writes.
func OpenCache(dir, namespace string) (*Cache, error) {
	if namespace == "" || strings.Contains(namespace, "/") {
		return nil, fmt.Errorf("%w: invalid cache namespace %q", common.ErrValidation, namespace)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: open cache %s: %v", common.ErrStorage, dir, err)
	}
	return &Cache{db: db, namespace: namespace}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Namespace returns the active namespace tag.
func (c *Cache) Namespace() string {
	return c.namespace
}

func (c *Cache) key(method, url string) []byte {
	return []byte(c.namespace + "/" + method + " " + url)
}

// Put stores a response under the active namespace.
func (c *Cache) Put(method, url string, resp *CachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}
	if err := c.db.Set(c.key(method, url), data, pebble.Sync); err != nil {
		return fmt.Errorf("%w: cache put: %v", common.ErrStorage, err)
	}
	return nil
}

// Get looks up a response in the active namespace. The second return is false
// on a miss.
func (c *Cache) Get(method, url string) (*CachedResponse, bool, error) {
	data, closer, err := c.db.Get(c.key(method, url))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: cache get: %v", common.ErrStorage, err)
	}
	defer closer.Close()

	var resp CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, true, nil
}

// Delete removes a single entry from the active namespace.
func (c *Cache) Delete(method, url string) error {
	if err := c.db.Delete(c.key(method, url), pebble.Sync); err != nil {
		return fmt.Errorf("%w: cache delete: %v", common.ErrStorage, err)
	}
	return nil
}

// PurgeStale deletes every entry whose namespace differs from the active one.
// Returns the number of entries removed.
func (c *Cache) PurgeStale() (int, error) {
	iter, err := c.db.NewIter(nil)
	if err != nil {
		return 0, fmt.Errorf("%w: cache iter: %v", common.ErrStorage, err)
	}
	defer iter.Close()

	prefix := c.namespace + "/"
	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		if strings.HasPrefix(string(iter.Key()), prefix) {
			continue
		}
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		stale = append(stale, k)
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	batch := c.db.NewBatch()
	defer batch.Close()
	for _, k := range stale {
		if err := batch.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("%w: cache purge: %v", common.ErrStorage, err)
	}
	return len(stale), nil
}
