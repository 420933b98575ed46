// Package push manages the notification subscription lifecycle: obtaining
// permission, creating a subscription with the push service, registering it
// with the backend, and the degraded notification-only mode entered when the
// user blocks or abandons the permission prompt.
package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/storyapp/storysync/internal/common"
	"github.com/storyapp/storysync/internal/logging"
	"github.com/storyapp/storysync/internal/models"
)

// Permission is the user's answer to the notification permission prompt.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// Prompter asks the user for notification permission. Implementations return
// common.ErrAborted when the prompt was dismissed without an answer.
type Prompter interface {
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
}

// Service is the push service that mints and revokes subscriptions.
type Service interface {
	Subscribe(ctx context.Context) (*models.PushSubscription, error)
	Unsubscribe(ctx context.Context, endpoint string) error
}

// Backend registers subscriptions with the story API. *gateway.Client
// satisfies this.
type Backend interface {
	SubscribePush(ctx context.Context, sub models.PushSubscription) (string, error)
	UnsubscribePush(ctx context.Context, sub models.PushSubscription) error
}

// StateStore persists the subscription state across restarts.
// *store.MetadataRepository satisfies this.
type StateStore interface {
	PushState(ctx context.Context) (models.PushSubscriptionState, error)
	SetPushState(ctx context.Context, state models.PushSubscriptionState) error
}

// ClientRouter locates open client surfaces for notification click routing.
// Focus reports whether a client already showing the URL could be brought to
// the foreground; Open starts a new one.
type ClientRouter interface {
	Focus(ctx context.Context, url string) (bool, error)
	Open(ctx context.Context, url string) error
}

// Bridge drives the subscription state machine.
type Bridge struct {
	prompter Prompter
	service  Service
	backend  Backend
	state    StateStore
	router   ClientRouter
	log      logging.Logger
}

func NewBridge(prompter Prompter, service Service, backend Backend, state StateStore, router ClientRouter, log logging.Logger) *Bridge {
	if log == nil {
		log = logging.Nop()
	}
	return &Bridge{
		prompter: prompter,
		service:  service,
		backend:  backend,
		state:    state,
		router:   router,
		log:      log,
	}
}

// State returns the persisted subscription state.
func (b *Bridge) State(ctx context.Context) (models.PushSubscriptionState, error) {
	return b.state.PushState(ctx)
}

// Enable walks the full subscription flow:
//
//	permission -> service subscription -> backend registration -> persist
//
// A denied or abandoned permission prompt is not an error in the usual
// sense: the bridge drops into notification-only mode, persists that, and
// reports what happened via the returned sentinel. A push service that
// refuses to mint a subscription after permission was granted degrades the
// same way.
//
// A backend registration failure rolls the service subscription back so no
// orphaned subscription keeps receiving pushes nobody routes.
func (b *Bridge) Enable(ctx context.Context) (models.PushSubscriptionState, error) {
	state, err := b.state.PushState(ctx)
	if err != nil {
		return state, err
	}
	if state.Subscribed && state.Subscription != nil {
		return state, nil
	}

	perm, err := b.prompter.Permission(ctx)
	if err != nil {
		return state, err
	}
	if perm == PermissionPrompt {
		perm, err = b.prompter.RequestPermission(ctx)
		if errors.Is(err, common.ErrAborted) {
			return b.enterNotificationOnly(ctx, common.ErrAborted, "permission prompt dismissed")
		}
		if err != nil {
			return state, err
		}
	}
	if perm != PermissionGranted {
		return b.enterNotificationOnly(ctx, common.ErrPermissionDenied, "permission denied")
	}

	sub, err := b.service.Subscribe(ctx)
	if err != nil {
		// Permission was granted but the push service would not mint a
		// subscription. Local notifications still work, so degrade rather
		// than fail outright.
		return b.enterNotificationOnly(ctx, err, "push service subscribe failed")
	}

	backendID, err := b.backend.SubscribePush(ctx, *sub)
	if err != nil {
		// Roll back: the service-side subscription is useless without a
		// backend registration and must not linger.
		if rbErr := b.service.Unsubscribe(ctx, sub.Endpoint); rbErr != nil {
			b.log.Error(ctx, "rollback of push subscription failed", "endpoint", sub.Endpoint, "error", rbErr)
		}
		return state, fmt.Errorf("register subscription with backend: %w", err)
	}

	state = models.PushSubscriptionState{
		Subscribed:            true,
		Subscription:          sub,
		BackendSubscriptionID: backendID,
	}
	if err := b.state.SetPushState(ctx, state); err != nil {
		return state, err
	}
	b.log.Info(ctx, "push notifications enabled", "endpoint", sub.Endpoint)
	return state, nil
}

// Disable tears the subscription down. Backend deregistration is best
// effort: its failure is logged, and the local state is cleared regardless,
// so the user's choice to stop always wins.
func (b *Bridge) Disable(ctx context.Context) error {
	state, err := b.state.PushState(ctx)
	if err != nil {
		return err
	}

	if state.Subscription != nil {
		if err := b.backend.UnsubscribePush(ctx, *state.Subscription); err != nil {
			b.log.Warn(ctx, "backend unsubscribe failed, clearing local state anyway", "error", err)
		}
		if err := b.service.Unsubscribe(ctx, state.Subscription.Endpoint); err != nil {
			b.log.Warn(ctx, "push service unsubscribe failed, clearing local state anyway", "error", err)
		}
	}

	if err := b.state.SetPushState(ctx, models.PushSubscriptionState{}); err != nil {
		return err
	}
	b.log.Info(ctx, "push notifications disabled")
	return nil
}

// HandleClick routes a notification click: a client already showing the
// notification's target URL is focused when one exists, otherwise a new one
// opens. Notifications without a URL route to the root page.
func (b *Bridge) HandleClick(ctx context.Context, n models.Notification) error {
	target := n.URL
	if target == "" {
		target = "/"
	}

	focused, err := b.router.Focus(ctx, target)
	if err != nil {
		return err
	}
	if focused {
		b.log.Debug(ctx, "focused existing client", "url", target)
		return nil
	}
	return b.router.Open(ctx, target)
}

func (b *Bridge) enterNotificationOnly(ctx context.Context, sentinel error, reason string) (models.PushSubscriptionState, error) {
	state := models.PushSubscriptionState{NotificationOnlyMode: true}
	if err := b.state.SetPushState(ctx, state); err != nil {
		return state, err
	}
	b.log.Info(ctx, "entering notification-only mode", "reason", reason)
	return state, fmt.Errorf("%w: %s", sentinel, reason)
}
