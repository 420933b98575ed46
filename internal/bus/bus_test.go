package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_DeliversToMatchingHandlersOnly(t *testing.T) {
	b := New()
	ctx := context.Background()

	var syncs, caches int
	b.On(EventSyncOfflineData, func(ctx context.Context, msg Message) { syncs++ })
	b.On(EventCacheURLs, func(ctx context.Context, msg Message) {
		caches++
		assert.Equal(t, []string{"/a", "/b"}, msg.URLs)
	})

	b.Publish(ctx, Message{Event: EventSyncOfflineData})
	b.Publish(ctx, Message{Event: EventCacheURLs, URLs: []string{"/a", "/b"}})
	b.Publish(ctx, Message{Event: EventSkipWaiting})

	assert.Equal(t, 1, syncs)
	assert.Equal(t, 1, caches)
}

func TestSetOnline_PublishesOnlyOnTransition(t *testing.T) {
	b := New()
	ctx := context.Background()

	var events []string
	record := func(ctx context.Context, msg Message) { events = append(events, msg.Event) }
	b.On(EventNetworkOnline, record)
	b.On(EventNetworkOffline, record)

	assert.True(t, b.Online())

	b.SetOnline(ctx, true) // no transition
	b.SetOnline(ctx, false)
	b.SetOnline(ctx, false) // no transition
	b.SetOnline(ctx, true)

	assert.Equal(t, []string{EventNetworkOffline, EventNetworkOnline}, events)
	assert.True(t, b.Online())
}

func TestRemoveAll(t *testing.T) {
	b := New()
	var n int
	b.On(EventSkipWaiting, func(ctx context.Context, msg Message) { n++ })
	b.RemoveAll()
	b.Publish(context.Background(), Message{Event: EventSkipWaiting})
	assert.Equal(t, 0, n)
}
