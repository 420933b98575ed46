package models

import "encoding/json"

// PushSubscription is the key material issued by the push service, in the
// shape the backend expects on subscribe/unsubscribe.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscriptionState is the process-wide subscription state persisted in
// the metadata KV store.
//
// Invariant: NotificationOnlyMode and a non-nil Subscription are mutually
// exclusive.
type PushSubscriptionState struct {
	Subscribed            bool              `json:"subscribed"`
	Subscription          *PushSubscription `json:"subscription,omitempty"`
	BackendSubscriptionID string            `json:"backendSubscriptionId,omitempty"`
	NotificationOnlyMode  bool              `json:"notificationOnlyMode"`
}

// NotificationAction is a button rendered on a notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is the normalized descriptor rendered for an incoming push
// payload.
type Notification struct {
	Title              string
	Body               string
	Icon               string
	Badge              string
	Image              string
	URL                string
	StoryID            string
	Actions            []NotificationAction
	Vibrate            []int
	RequireInteraction bool
}

const (
	defaultNotificationTitle = "New notification"
	defaultNotificationBody  = "New content has been added."
	defaultNotificationIcon  = "/images/logo-192.png"
	defaultNotificationBadge = "/images/logo-72.png"
)

var defaultActions = []NotificationAction{
	{Action: "open", Title: "View story"},
	{Action: "close", Title: "Close"},
}

// pushEnvelope covers both payload generations: the current nested shape
// {title, options:{...}} and the legacy flat shape {title, body, url, storyId}.
type pushEnvelope struct {
	Title   string       `json:"title"`
	Body    string       `json:"body"`
	Icon    string       `json:"icon"`
	Image   string       `json:"image"`
	URL     string       `json:"url"`
	StoryID string       `json:"storyId"`
	Options *pushOptions `json:"options"`
}

type pushOptions struct {
	Body               string               `json:"body"`
	Icon               string               `json:"icon"`
	Badge              string               `json:"badge"`
	Image              string               `json:"image"`
	Data               *pushData            `json:"data"`
	Actions            []NotificationAction `json:"actions"`
	Vibrate            []int                `json:"vibrate"`
	RequireInteraction bool                 `json:"requireInteraction"`
}

type pushData struct {
	URL     string `json:"url"`
	StoryID string `json:"storyId"`
}

// DefaultNotification is what gets rendered when a push event carries no
// usable payload.
func DefaultNotification() Notification {
	return Notification{
		Title:   defaultNotificationTitle,
		Body:    defaultNotificationBody,
		Icon:    defaultNotificationIcon,
		Badge:   defaultNotificationBadge,
		URL:     "/",
		Actions: defaultActions,
		Vibrate: []int{200, 100, 200},
	}
}

// ParsePushPayload normalizes a raw push payload into a Notification.
// Nested options take precedence over legacy top-level fields; absent or
// malformed input falls back to the generic defaults rather than failing.
func ParsePushPayload(raw []byte) Notification {
	n := DefaultNotification()
	if len(raw) == 0 {
		return n
	}

	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return n
	}

	if env.Title != "" {
		n.Title = env.Title
	}

	opts := env.Options
	if opts == nil {
		opts = &pushOptions{}
	}

	n.Body = firstNonEmpty(opts.Body, env.Body, n.Body)
	n.Icon = firstNonEmpty(opts.Icon, env.Icon, n.Icon)
	n.Badge = firstNonEmpty(opts.Badge, n.Badge)
	n.Image = firstNonEmpty(opts.Image, env.Image)

	if opts.Data != nil {
		n.URL = firstNonEmpty(opts.Data.URL, env.URL, n.URL)
		n.StoryID = firstNonEmpty(opts.Data.StoryID, env.StoryID)
	} else {
		n.URL = firstNonEmpty(env.URL, n.URL)
		n.StoryID = env.StoryID
	}

	if len(opts.Actions) > 0 {
		n.Actions = opts.Actions
	}
	if len(opts.Vibrate) > 0 {
		n.Vibrate = opts.Vibrate
	}
	n.RequireInteraction = opts.RequireInteraction

	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
