package datasync

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Broadcaster republishes the full collection of every changed topic. It is
// called after a registration commits.
type Broadcaster struct {
	fetcher Fetcher
	feed    Feed
	logger  *slog.Logger
}

func NewBroadcaster(fetcher Fetcher, feed Feed, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{fetcher: fetcher, feed: feed, logger: logger}
}

// Changed refetches and publishes each topic. Failures are logged: live
// subscribers catch up on the next change or their next fetch.
func (b *Broadcaster) Changed(ctx context.Context, topics ...Topic) {
	var g errgroup.Group
	for _, topic := range topics {
		g.Go(func() error {
			c, err := b.fetcher.Fetch(ctx, topic)
			if err != nil {
				b.logger.WarnContext(ctx, "live refresh fetch failed", "topic", string(topic), "error", err)
				return nil
			}
			if err := b.feed.Publish(ctx, c); err != nil {
				b.logger.WarnContext(ctx, "live publish failed", "topic", string(topic), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
