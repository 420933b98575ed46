// Package bus carries control messages between the application surface and
// the background worker, replacing direct coupling with a small typed
// publish/subscribe hub. It also tracks the online/offline state and notifies
// subscribers on transitions.
package bus

import (
	"context"
	"sync"
)

// Message kinds the worker understands.
const (
	EventSyncOfflineData = "sync.offline-data"
	EventSkipWaiting     = "worker.skip-waiting"
	EventCacheURLs       = "cache.urls"
	EventNetworkOnline   = "network.online"
	EventNetworkOffline  = "network.offline"
)

// Message is one control message. Payload shape depends on Event:
// EventCacheURLs carries URLs; the rest carry none.
type Message struct {
	Event string
	URLs  []string
}

// Handler receives published messages. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(ctx context.Context, msg Message)

// Bus is a typed in-process event hub.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Handler
	online    bool
}

func New() *Bus {
	return &Bus{
		listeners: make(map[string][]Handler),
		online:    true,
	}
}

// On registers a handler for one event kind.
func (b *Bus) On(event string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], h)
}

// Publish delivers msg to every handler registered for its event kind.
func (b *Bus) Publish(ctx context.Context, msg Message) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.listeners[msg.Event]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, msg)
	}
}

// Online reports the last known network state.
func (b *Bus) Online() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.online
}

// SetOnline records a network state change. Only actual transitions publish
// an event; repeated reports of the same state are silent.
func (b *Bus) SetOnline(ctx context.Context, online bool) {
	b.mu.Lock()
	if b.online == online {
		b.mu.Unlock()
		return
	}
	b.online = online
	b.mu.Unlock()

	event := EventNetworkOffline
	if online {
		event = EventNetworkOnline
	}
	b.Publish(ctx, Message{Event: event})
}

// RemoveAll drops every registered handler. Used on shutdown.
func (b *Bus) RemoveAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[string][]Handler)
}
