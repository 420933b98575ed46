package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/storyapp/storysync/internal/models"
)

type subscribeResponse struct {
	apiEnvelope
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

// SubscribePush registers a push subscription with the backend and returns
// the backend-assigned subscription id (empty if the backend did not assign
// one).
func (c *Client) SubscribePush(ctx context.Context, sub models.PushSubscription) (string, error) {
	var resp subscribeResponse
	if err := c.postJSON(ctx, "/notifications/subscribe", sub, true, &resp); err != nil {
		return "", err
	}
	if resp.Data != nil {
		return resp.Data.ID, nil
	}
	return "", nil
}

// UnsubscribePush removes a push subscription from the backend. The payload
// mirrors subscribe: the endpoint identifies the subscription.
func (c *Client) UnsubscribePush(ctx context.Context, sub models.PushSubscription) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	_, err = c.doRequest(ctx, http.MethodDelete, "/notifications/subscribe", "application/json", body, nil, true)
	return err
}
