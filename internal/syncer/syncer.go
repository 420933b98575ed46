// Package syncer drains the offline outbox: queued story submissions are
// replayed against the API one at a time, in queue order, and the outcome is
// reported as a summary rather than a hard failure.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/storyapp/storysync/internal/gateway"
	"github.com/storyapp/storysync/internal/logging"
	"github.com/storyapp/storysync/internal/models"
)

// Outbox is the slice of the local store the syncer drains.
type Outbox interface {
	Unsynced(ctx context.Context) ([]models.OutboxEntry, error)
	MarkSynced(ctx context.Context, id int64) error
}

// Uploader submits one story to the backend.
type Uploader interface {
	AddStory(ctx context.Context, in gateway.AddStoryInput) error
}

// Notifier surfaces a user-visible notification. Implementations must not
// block.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// SummaryWriter persists the outcome of the latest sync run.
type SummaryWriter interface {
	Set(ctx context.Context, key string, value []byte) error
}

// Result summarizes one sync run. Failed entries stay queued for the next
// run; a run with failures is still a normal completion, not an error.
type Result struct {
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	FailedIDs []int64 `json:"failedIds,omitempty"`
}

// Syncer replays queued submissions. Runs are serialized: a Sync call made
// while another is in flight waits for it to finish, then drains whatever
// is still queued.
type Syncer struct {
	outbox   Outbox
	uploader Uploader
	notifier Notifier
	log      logging.Logger

	summary    SummaryWriter
	summaryKey string

	mu sync.Mutex
	// keys holds the idempotency key per queued entry so a retried upload
	// of the same entry is deduplicated server-side. At-least-once is
	// accepted: a crash between upload and MarkSynced replays the entry,
	// and the key is what keeps the replay harmless.
	keys map[int64]string
}

type Option func(*Syncer)

func WithNotifier(n Notifier) Option {
	return func(s *Syncer) { s.notifier = n }
}

func WithLogger(log logging.Logger) Option {
	return func(s *Syncer) { s.log = log }
}

// WithSummaryWriter persists each run's Result as JSON under key.
func WithSummaryWriter(w SummaryWriter, key string) Option {
	return func(s *Syncer) {
		s.summary = w
		s.summaryKey = key
	}
}

func New(outbox Outbox, uploader Uploader, opts ...Option) *Syncer {
	s := &Syncer{
		outbox:   outbox,
		uploader: uploader,
		log:      logging.Nop(),
		keys:     make(map[int64]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync drains the outbox sequentially in queue order. A failed entry is
// counted and skipped; it never aborts the run or blocks later entries.
// The error return covers only the inability to read the queue itself.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.outbox.Unsynced(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read outbox: %w", err)
	}

	var res Result
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.uploader.AddStory(ctx, gateway.AddStoryInput{
			Description:    e.Description,
			Photo:          e.PhotoBlob,
			Lat:            e.Lat,
			Lon:            e.Lon,
			IdempotencyKey: s.idempotencyKey(e.ID),
		}); err != nil {
			s.log.Warn(ctx, "outbox entry failed to sync", "id", e.ID, "error", err)
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, e.ID)
			continue
		}

		if err := s.outbox.MarkSynced(ctx, e.ID); err != nil {
			// Uploaded but not marked: the entry replays next run and
			// the idempotency key absorbs the duplicate.
			s.log.Error(ctx, "failed to mark entry synced", "id", e.ID, "error", err)
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, e.ID)
			continue
		}

		delete(s.keys, e.ID)
		res.Succeeded++
	}

	s.finish(ctx, res)
	return res, nil
}

// idempotencyKey returns a stable key for the entry, minting one on first
// use. The key survives across runs until the entry is marked synced.
func (s *Syncer) idempotencyKey(id int64) string {
	if k, ok := s.keys[id]; ok {
		return k
	}
	k := uuid.NewString()
	s.keys[id] = k
	return k
}

func (s *Syncer) finish(ctx context.Context, res Result) {
	s.log.Info(ctx, "sync run finished", "succeeded", res.Succeeded, "failed", res.Failed)

	if s.summary != nil {
		data, err := json.Marshal(res)
		if err == nil {
			if err := s.summary.Set(ctx, s.summaryKey, data); err != nil {
				s.log.Warn(ctx, "failed to persist sync summary", "error", err)
			}
		}
	}

	if s.notifier != nil && res.Succeeded > 0 {
		n := models.DefaultNotification()
		n.Title = "Stories synced"
		n.Body = fmt.Sprintf("%d offline stories have been uploaded.", res.Succeeded)
		s.notifier.Notify(ctx, n)
	}
}
