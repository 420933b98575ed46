// Package app wires the subsystems together: local store, API gateway,
// response cache, sync coordinator, push bridge, and the event bus that
// connects them. Commands construct one App and drive it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/storyapp/storysync/internal/bus"
	"github.com/storyapp/storysync/internal/config"
	"github.com/storyapp/storysync/internal/fetchcache"
	"github.com/storyapp/storysync/internal/gateway"
	"github.com/storyapp/storysync/internal/logging"
	"github.com/storyapp/storysync/internal/models"
	"github.com/storyapp/storysync/internal/push"
	"github.com/storyapp/storysync/internal/store"
	"github.com/storyapp/storysync/internal/syncer"
)

// Notifier surfaces notifications to whatever surface the process has.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

type App struct {
	Config  *config.Config
	Log     logging.Logger
	Store   *store.Store
	Gateway *gateway.Client
	Bus     *bus.Bus
	Syncer  *syncer.Syncer
	Push    *push.Bridge

	engine   *fetchcache.Engine
	cache    *fetchcache.Cache
	pushSvc  *push.WSService
	notifier Notifier
}

// New builds a fully wired App. The response cache and fetch engine open
// lazily via Engine, so read-only commands do not pay for them.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, notifier Notifier, prompter push.Prompter, router push.ClientRouter) (*App, error) {
	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	tokens := gateway.NewStoreTokenSource(st.Metadata, store.MetaToken)
	gw := gateway.NewClient(tokens,
		gateway.WithBaseURL(cfg.BaseURL),
		gateway.WithRetry(cfg.RetryBaseDelay, cfg.RetryMaxAttempts),
		gateway.WithLogger(log),
	)

	a := &App{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Gateway:  gw,
		Bus:      bus.New(),
		notifier: notifier,
	}

	a.Syncer = syncer.New(st.Outbox, gw,
		syncer.WithNotifier(notifier),
		syncer.WithLogger(log),
		syncer.WithSummaryWriter(st.Metadata, store.MetaLastSyncSummary),
	)

	a.pushSvc = push.NewWSService(cfg.PushGatewayURL, func(ctx context.Context, n models.Notification) {
		notifier.Notify(ctx, n)
	}, push.WithWSLogger(log))
	a.Push = push.NewBridge(prompter, a.pushSvc, gw, st.Metadata, router, log)

	a.registerBusHandlers()
	return a, nil
}

func (a *App) registerBusHandlers() {
	a.Bus.On(bus.EventSyncOfflineData, func(ctx context.Context, msg bus.Message) {
		if _, err := a.Syncer.Sync(ctx); err != nil {
			a.Log.Error(ctx, "sync run failed", "error", err)
		}
	})
	a.Bus.On(bus.EventNetworkOnline, func(ctx context.Context, msg bus.Message) {
		a.Log.Info(ctx, "back online, draining outbox")
		if _, err := a.Syncer.Sync(ctx); err != nil {
			a.Log.Error(ctx, "sync run failed", "error", err)
		}
	})
	a.Bus.On(bus.EventSkipWaiting, func(ctx context.Context, msg bus.Message) {
		engine, err := a.Engine()
		if err != nil {
			a.Log.Error(ctx, "cannot activate cache", "error", err)
			return
		}
		if err := engine.Activate(ctx); err != nil {
			a.Log.Error(ctx, "cache activation failed", "error", err)
		}
	})
	a.Bus.On(bus.EventCacheURLs, func(ctx context.Context, msg bus.Message) {
		engine, err := a.Engine()
		if err != nil {
			a.Log.Error(ctx, "cannot warm cache", "error", err)
			return
		}
		engine.CacheURLs(ctx, msg.URLs)
	})
}

// Engine lazily opens the response cache and fetch engine.
func (a *App) Engine() (*fetchcache.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}

	cache, err := fetchcache.OpenCache(a.Config.CacheDir, a.Config.CacheVersion)
	if err != nil {
		return nil, err
	}
	engine, err := fetchcache.NewEngine(cache, a.Config.BaseURL,
		fetchcache.WithAppShell(a.Config.AppShell),
		fetchcache.WithEngineLogger(a.Log),
	)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	a.cache = cache
	a.engine = engine
	return engine, nil
}

// PushService exposes the websocket push connection for the worker.
func (a *App) PushService() *push.WSService {
	return a.pushSvc
}

func (a *App) Notify(ctx context.Context, n models.Notification) {
	a.notifier.Notify(ctx, n)
}

func (a *App) Close() error {
	_ = a.pushSvc.Close()
	if a.cache != nil {
		_ = a.cache.Close()
	}
	return a.Store.Close()
}

// RefreshStories pulls the feed and replaces the local story cache. Offline,
// the cached copy is served instead; the bool reports whether the data came
// from the network.
func (a *App) RefreshStories(ctx context.Context) ([]models.Story, bool, error) {
	stories, err := a.Gateway.ListStories(ctx, gateway.ListStoriesOptions{WithLocation: true})
	if err == nil {
		if saveErr := a.Store.Stories.SaveAll(ctx, stories); saveErr != nil {
			a.Log.Warn(ctx, "failed to cache story feed", "error", saveErr)
		}
		return stories, true, nil
	}

	a.Log.Warn(ctx, "feed fetch failed, falling back to local cache", "error", err)
	cached, cacheErr := a.Store.Stories.GetAll(ctx)
	if cacheErr != nil {
		return nil, false, err
	}
	return cached, false, nil
}

// StartOnlineStatusWatcher probes the API origin every interval and reports
// transitions to the bus. Blocks until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			online := a.probe(probeCtx)
			cancel()
			a.Bus.SetOnline(ctx, online)
		case <-ctx.Done():
			return
		}
	}
}

// probe reports whether the API origin is reachable. Any HTTP answer counts
// as online; only a transport failure means offline.
func (a *App) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.Config.BaseURL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
