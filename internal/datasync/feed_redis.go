package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "campusreg:live:"

// RedisFeed carries live pushes over redis pub/sub so every API instance sees
// changes committed by any other.
type RedisFeed struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisFeed(client redis.UniversalClient, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func channelFor(topic Topic) string {
	return redisChannelPrefix + string(topic)
}

func (f *RedisFeed) Publish(ctx context.Context, c Collection) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	if err := f.client.Publish(ctx, channelFor(c.Topic), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", c.Topic, err)
	}
	return nil
}

// Subscribe returns once redis has confirmed the subscription, so a publish
// issued after Subscribe returns is delivered.
func (f *RedisFeed) Subscribe(ctx context.Context, topic Topic) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelFor(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Collection, subscriberBuffer),
		done:   make(chan struct{}),
	}
	go sub.run(pubsub.Channel(), f.logger)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Collection
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) C() <-chan Collection { return s.ch }

func (s *redisSubscription) run(msgs <-chan *redis.Message, logger *slog.Logger) {
	defer close(s.ch)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var c Collection
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				logger.Warn("dropping undecodable live push", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case s.ch <- c:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
