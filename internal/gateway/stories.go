package gateway

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/storyapp/storysync/internal/common"
	"github.com/storyapp/storysync/internal/models"
)

type listStoriesResponse struct {
	apiEnvelope
	ListStory []models.Story `json:"listStory"`
}

type storyDetailResponse struct {
	apiEnvelope
	Story *models.Story `json:"story"`
}

// ListStoriesOptions narrows a story listing. Zero values mean "server
// default".
type ListStoriesOptions struct {
	Page         int
	Size         int
	WithLocation bool
}

// ListStories fetches the story feed.
func (c *Client) ListStories(ctx context.Context, opts ListStoriesOptions) ([]models.Story, error) {
	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Size > 0 {
		query.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.WithLocation {
		query.Set("location", "1")
	}

	var resp listStoriesResponse
	if err := c.getJSON(ctx, "/stories", query, true, &resp); err != nil {
		return nil, err
	}
	return resp.ListStory, nil
}

// GetStory fetches a single story by id.
func (c *Client) GetStory(ctx context.Context, id string) (*models.Story, error) {
	var resp storyDetailResponse
	if err := c.getJSON(ctx, "/stories/"+url.PathEscape(id), nil, true, &resp); err != nil {
		return nil, err
	}
	if resp.Story == nil {
		return nil, fmt.Errorf("%w: story %s", common.ErrNotFound, id)
	}
	return resp.Story, nil
}

// AddStoryInput is a new story submission. Lat and Lon are optional and are
// omitted from the form entirely when nil, never sent as empty strings.
type AddStoryInput struct {
	Description string
	Photo       []byte
	Lat         *float64
	Lon         *float64

	// IdempotencyKey lets retried submissions of the same queued entry be
	// deduplicated server-side. Empty means no key is sent.
	IdempotencyKey string
}

// AddStory uploads a story as a multipart form. The photo travels under the
// field name "photo" with filename "photo.jpg" regardless of origin.
func (c *Client) AddStory(ctx context.Context, in AddStoryInput) error {
	if in.Description == "" {
		return fmt.Errorf("%w: description is required", common.ErrValidation)
	}
	if len(in.Photo) == 0 {
		return fmt.Errorf("%w: photo is required", common.ErrValidation)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("description", in.Description); err != nil {
		return fmt.Errorf("build form: %w", err)
	}
	if in.Lat != nil {
		if err := w.WriteField("lat", strconv.FormatFloat(*in.Lat, 'f', -1, 64)); err != nil {
			return fmt.Errorf("build form: %w", err)
		}
	}
	if in.Lon != nil {
		if err := w.WriteField("lon", strconv.FormatFloat(*in.Lon, 'f', -1, 64)); err != nil {
			return fmt.Errorf("build form: %w", err)
		}
	}
	fw, err := w.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		return fmt.Errorf("build form: %w", err)
	}
	if _, err := fw.Write(in.Photo); err != nil {
		return fmt.Errorf("build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build form: %w", err)
	}

	headers := http.Header{}
	if in.IdempotencyKey != "" {
		headers.Set("X-Idempotency-Key", in.IdempotencyKey)
	}

	_, err = c.doRequestHeaders(ctx, http.MethodPost, "/stories", w.FormDataContentType(), buf.Bytes(), nil, true, headers)
	return err
}
