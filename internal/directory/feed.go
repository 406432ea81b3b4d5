package directory

import (
	"context"
	"encoding/json"

	"leadrouter_backend/internal/agents/transport"
	"leadrouter_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Change-feed event types delivered by the directory.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
)

// ChangeEvent is one message on the directory change feed. Events carry the
// full current record, so applying the latest event is always sufficient.
type ChangeEvent struct {
	Type       string                    `json:"type"`
	ExternalID string                    `json:"externalId"`
	Record     transport.DirectoryRecord `json:"record"`
}

// Syncer applies a single directory record to the store.
// Satisfied by agents/service.Syncer.
type Syncer interface {
	SyncAgent(ctx context.Context, externalID string, rec transport.DirectoryRecord) (transport.SyncResult, error)
}

// RetryStore records sync failures for later retry by the worker.
// Satisfied by agents/repository.Repository.
type RetryStore interface {
	UpsertSyncRetry(ctx context.Context, externalID string, errMsg string) error
}

// FeedConsumer subscribes to the directory change feed over Redis pub/sub
// and applies every added/modified event to the store. Failures land in the
// pending-retry set; the feed itself is best-effort and eventually
// consistent, a periodic full sync backstops missed messages.
type FeedConsumer struct {
	rdb     *redis.Client
	channel string
	syncer  Syncer
	retries RetryStore
	log     *logger.Logger
}

// NewFeedConsumer creates a change-feed consumer.
func NewFeedConsumer(rdb *redis.Client, channel string, syncer Syncer, retries RetryStore, log *logger.Logger) *FeedConsumer {
	return &FeedConsumer{
		rdb:     rdb,
		channel: channel,
		syncer:  syncer,
		retries: retries,
		log:     log,
	}
}

// Run consumes the feed until the context is cancelled.
func (f *FeedConsumer) Run(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	defer sub.Close()

	// Force the subscription before consuming so startup failures surface.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	f.log.Info("directory feed consumer started", "channel", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.handleMessage(ctx, msg.Payload)
		}
	}
}

func (f *FeedConsumer) handleMessage(ctx context.Context, payload string) {
	var event ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		f.log.Error("directory feed: malformed message", "error", err)
		return
	}

	if event.Type != ChangeAdded && event.Type != ChangeModified {
		f.log.Debug("directory feed: ignoring event", "type", event.Type)
		return
	}
	if event.ExternalID == "" {
		f.log.Error("directory feed: event missing externalId", "type", event.Type)
		return
	}

	if _, err := f.syncer.SyncAgent(ctx, event.ExternalID, event.Record); err != nil {
		f.log.Error("directory feed: sync failed, queuing retry",
			"externalId", event.ExternalID,
			"error", err,
		)
		if retryErr := f.retries.UpsertSyncRetry(ctx, event.ExternalID, err.Error()); retryErr != nil {
			f.log.Error("directory feed: failed to record retry",
				"externalId", event.ExternalID,
				"error", retryErr,
			)
		}
	}
}
