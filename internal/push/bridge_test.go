package push

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyapp/storysync/internal/common"
	"github.com/storyapp/storysync/internal/models"
)

type fakePrompter struct {
	current    Permission
	onRequest  Permission
	requestErr error
	requests   int
}

func (p *fakePrompter) Permission(ctx context.Context) (Permission, error) {
	return p.current, nil
}

func (p *fakePrompter) RequestPermission(ctx context.Context) (Permission, error) {
	p.requests++
	return p.onRequest, p.requestErr
}

type fakeService struct {
	sub            *models.PushSubscription
	subscribeErr   error
	unsubscribed   []string
	unsubscribeErr error
}

func (s *fakeService) Subscribe(ctx context.Context) (*models.PushSubscription, error) {
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	return s.sub, nil
}

func (s *fakeService) Unsubscribe(ctx context.Context, endpoint string) error {
	s.unsubscribed = append(s.unsubscribed, endpoint)
	return s.unsubscribeErr
}

type fakeBackend struct {
	id             string
	subscribeErr   error
	unsubscribeErr error
	subscribes     int
	unsubscribes   int
}

func (b *fakeBackend) SubscribePush(ctx context.Context, sub models.PushSubscription) (string, error) {
	b.subscribes++
	return b.id, b.subscribeErr
}

func (b *fakeBackend) UnsubscribePush(ctx context.Context, sub models.PushSubscription) error {
	b.unsubscribes++
	return b.unsubscribeErr
}

type memState struct {
	state models.PushSubscriptionState
}

func (m *memState) PushState(ctx context.Context) (models.PushSubscriptionState, error) {
	return m.state, nil
}

func (m *memState) SetPushState(ctx context.Context, state models.PushSubscriptionState) error {
	m.state = state
	return nil
}

func testSubscription() *models.PushSubscription {
	return &models.PushSubscription{
		Endpoint: "https://push.example.com/ep-1",
		Keys:     models.SubscriptionKeys{P256dh: "pk", Auth: "ak"},
	}
}

func TestEnable_FullFlowPersistsSubscription(t *testing.T) {
	prompter := &fakePrompter{current: PermissionPrompt, onRequest: PermissionGranted}
	service := &fakeService{sub: testSubscription()}
	backend := &fakeBackend{id: "backend-1"}
	state := &memState{}

	b := NewBridge(prompter, service, backend, state, nil, nil)
	got, err := b.Enable(context.Background())
	require.NoError(t, err)

	assert.True(t, got.Subscribed)
	assert.Equal(t, "backend-1", got.BackendSubscriptionID)
	assert.False(t, got.NotificationOnlyMode)
	require.NotNil(t, state.state.Subscription)
	assert.Equal(t, "https://push.example.com/ep-1", state.state.Subscription.Endpoint)
}

func TestEnable_AbortedPromptEntersNotificationOnlyMode(t *testing.T) {
	prompter := &fakePrompter{
		current:    PermissionPrompt,
		requestErr: fmt.Errorf("%w: prompt dismissed", common.ErrAborted),
	}
	service := &fakeService{sub: testSubscription()}
	backend := &fakeBackend{}
	state := &memState{}

	b := NewBridge(prompter, service, backend, state, nil, nil)
	got, err := b.Enable(context.Background())
	require.ErrorIs(t, err, common.ErrAborted)

	assert.True(t, got.NotificationOnlyMode)
	assert.True(t, state.state.NotificationOnlyMode, "mode must be persisted")
	assert.False(t, state.state.Subscribed)
	assert.Equal(t, 0, backend.subscribes, "no backend call after an aborted prompt")
}

func TestEnable_DeniedPermissionEntersNotificationOnlyMode(t *testing.T) {
	prompter := &fakePrompter{current: PermissionDenied}
	state := &memState{}

	b := NewBridge(prompter, &fakeService{}, &fakeBackend{}, state, nil, nil)
	_, err := b.Enable(context.Background())
	require.ErrorIs(t, err, common.ErrPermissionDenied)

	assert.True(t, state.state.NotificationOnlyMode)
	assert.Equal(t, 0, prompter.requests, "an already-denied permission is not re-prompted")
}

func TestEnable_ServiceSubscribeFailureEntersNotificationOnlyMode(t *testing.T) {
	prompter := &fakePrompter{current: PermissionGranted}
	service := &fakeService{subscribeErr: fmt.Errorf("%w: registration abandoned", common.ErrAborted)}
	backend := &fakeBackend{}
	state := &memState{}

	b := NewBridge(prompter, service, backend, state, nil, nil)
	got, err := b.Enable(context.Background())
	require.ErrorIs(t, err, common.ErrAborted)

	assert.True(t, got.NotificationOnlyMode)
	assert.Nil(t, got.Subscription)
	assert.True(t, state.state.NotificationOnlyMode, "mode must be persisted")
	assert.Nil(t, state.state.Subscription)
	assert.False(t, state.state.Subscribed)
	assert.Equal(t, 0, backend.subscribes, "no backend call without a subscription")
}

func TestEnable_BackendFailureRollsBackServiceSubscription(t *testing.T) {
	prompter := &fakePrompter{current: PermissionGranted}
	service := &fakeService{sub: testSubscription()}
	backend := &fakeBackend{subscribeErr: fmt.Errorf("server said 500")}
	state := &memState{}

	b := NewBridge(prompter, service, backend, state, nil, nil)
	_, err := b.Enable(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"https://push.example.com/ep-1"}, service.unsubscribed)
	assert.False(t, state.state.Subscribed, "failed enable must not persist a subscribed state")
	assert.Nil(t, state.state.Subscription)
}

func TestEnable_AlreadySubscribedIsANoOp(t *testing.T) {
	prompter := &fakePrompter{current: PermissionGranted}
	backend := &fakeBackend{}
	state := &memState{state: models.PushSubscriptionState{
		Subscribed:   true,
		Subscription: testSubscription(),
	}}

	b := NewBridge(prompter, &fakeService{}, backend, state, nil, nil)
	got, err := b.Enable(context.Background())
	require.NoError(t, err)

	assert.True(t, got.Subscribed)
	assert.Equal(t, 0, backend.subscribes)
	assert.Equal(t, 0, prompter.requests)
}

func TestDisable_ClearsLocalStateEvenWhenBackendFails(t *testing.T) {
	service := &fakeService{}
	backend := &fakeBackend{unsubscribeErr: fmt.Errorf("network down")}
	state := &memState{state: models.PushSubscriptionState{
		Subscribed:            true,
		Subscription:          testSubscription(),
		BackendSubscriptionID: "backend-1",
	}}

	b := NewBridge(&fakePrompter{}, service, backend, state, nil, nil)
	require.NoError(t, b.Disable(context.Background()))

	assert.Equal(t, 1, backend.unsubscribes)
	assert.Equal(t, []string{"https://push.example.com/ep-1"}, service.unsubscribed)
	assert.Equal(t, models.PushSubscriptionState{}, state.state)
}

func TestDisable_WithoutSubscriptionJustClearsState(t *testing.T) {
	backend := &fakeBackend{}
	state := &memState{state: models.PushSubscriptionState{NotificationOnlyMode: true}}

	b := NewBridge(&fakePrompter{}, &fakeService{}, backend, state, nil, nil)
	require.NoError(t, b.Disable(context.Background()))

	assert.Equal(t, 0, backend.unsubscribes)
	assert.Equal(t, models.PushSubscriptionState{}, state.state)
}

type fakeRouter struct {
	openClients []string
	focused     []string
	opened      []string
}

func (r *fakeRouter) Focus(ctx context.Context, url string) (bool, error) {
	for _, c := range r.openClients {
		if c == url {
			r.focused = append(r.focused, url)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRouter) Open(ctx context.Context, url string) error {
	r.opened = append(r.opened, url)
	return nil
}

func TestHandleClick_FocusesMatchingClient(t *testing.T) {
	router := &fakeRouter{openClients: []string{"/stories/s-1"}}
	b := NewBridge(&fakePrompter{}, &fakeService{}, &fakeBackend{}, &memState{}, router, nil)

	err := b.HandleClick(context.Background(), models.Notification{URL: "/stories/s-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/stories/s-1"}, router.focused)
	assert.Empty(t, router.opened, "a focused client must not also be reopened")
}

func TestHandleClick_OpensNewClientWhenNoneMatches(t *testing.T) {
	router := &fakeRouter{openClients: []string{"/bookmarks"}}
	b := NewBridge(&fakePrompter{}, &fakeService{}, &fakeBackend{}, &memState{}, router, nil)

	err := b.HandleClick(context.Background(), models.Notification{URL: "/stories/s-2"})
	require.NoError(t, err)

	assert.Empty(t, router.focused)
	assert.Equal(t, []string{"/stories/s-2"}, router.opened)
}

func TestHandleClick_EmptyURLRoutesToRoot(t *testing.T) {
	router := &fakeRouter{}
	b := NewBridge(&fakePrompter{}, &fakeService{}, &fakeBackend{}, &memState{}, router, nil)

	require.NoError(t, b.HandleClick(context.Background(), models.Notification{}))
	assert.Equal(t, []string{"/"}, router.opened)
}
