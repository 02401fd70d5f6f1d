package datasync

import (
	"context"
	"encoding/json"
	"time"
)

// Collection is the full current contents of a topic. Items is a JSON array so
// collections cross process boundaries unchanged.
type Collection struct {
	Topic Topic           `json:"topic"`
	Items json.RawMessage `json:"items"`
	At    time.Time       `json:"at"`
}

// Source records how a cached collection was obtained.
type Source string

const (
	SourceSnapshot Source = "snapshot"
	SourceLazy     Source = "lazy"
	SourceLive     Source = "live"
)

// Fetcher loads the full current collection for a topic.
type Fetcher interface {
	Fetch(ctx context.Context, topic Topic) (Collection, error)
}

// Subscription delivers every published collection for one topic until closed.
type Subscription interface {
	C() <-chan Collection
	Close() error
}

// Feed is the live transport between publishers and subscribers.
type Feed interface {
	Subscribe(ctx context.Context, topic Topic) (Subscription, error)
	Publish(ctx context.Context, c Collection) error
}
