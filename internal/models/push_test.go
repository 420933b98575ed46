package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePushPayload_EmptyFallsBackToDefaults(t *testing.T) {
	n := ParsePushPayload(nil)

	assert.Equal(t, defaultNotificationTitle, n.Title)
	assert.Equal(t, defaultNotificationBody, n.Body)
	assert.Equal(t, "/", n.URL)
	assert.Len(t, n.Actions, 2)
}

func TestParsePushPayload_MalformedFallsBackToDefaults(t *testing.T) {
	n := ParsePushPayload([]byte(`{not json`))

	assert.Equal(t, DefaultNotification(), n)
}

func TestParsePushPayload_NestedShape(t *testing.T) {
	raw := []byte(`{
		"title": "New story",
		"options": {
			"body": "Someone posted nearby",
			"icon": "/icons/story.png",
			"image": "/photos/42.jpg",
			"data": {"url": "/#/story/42", "storyId": "42"},
			"actions": [{"action": "open", "title": "Open"}],
			"vibrate": [100, 50, 100],
			"requireInteraction": true
		}
	}`)

	n := ParsePushPayload(raw)

	assert.Equal(t, "New story", n.Title)
	assert.Equal(t, "Someone posted nearby", n.Body)
	assert.Equal(t, "/icons/story.png", n.Icon)
	assert.Equal(t, "/photos/42.jpg", n.Image)
	assert.Equal(t, "/#/story/42", n.URL)
	assert.Equal(t, "42", n.StoryID)
	assert.Equal(t, []NotificationAction{{Action: "open", Title: "Open"}}, n.Actions)
	assert.Equal(t, []int{100, 50, 100}, n.Vibrate)
	assert.True(t, n.RequireInteraction)
}

func TestParsePushPayload_LegacyFlatShape(t *testing.T) {
	raw := []byte(`{"title": "Hello", "body": "flat body", "url": "/#/home", "storyId": "7"}`)

	n := ParsePushPayload(raw)

	assert.Equal(t, "Hello", n.Title)
	assert.Equal(t, "flat body", n.Body)
	assert.Equal(t, "/#/home", n.URL)
	assert.Equal(t, "7", n.StoryID)
	// untouched pieces keep their defaults
	assert.Equal(t, defaultNotificationIcon, n.Icon)
	assert.Len(t, n.Actions, 2)
}

func TestParsePushPayload_NestedWinsOverLegacy(t *testing.T) {
	raw := []byte(`{
		"title": "x",
		"body": "legacy",
		"url": "/legacy",
		"options": {"body": "nested", "data": {"url": "/nested"}}
	}`)

	n := ParsePushPayload(raw)

	assert.Equal(t, "nested", n.Body)
	assert.Equal(t, "/nested", n.URL)
}
