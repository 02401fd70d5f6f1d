package datasync

import (
	"context"
	"sync"
)

// subscriberBuffer holds pending pushes per subscriber. Every push is a full
// collection, so when a slow subscriber falls behind the oldest push is
// dropped.
const subscriberBuffer = 8

// MemoryFeed fans collections out to subscribers in the same process.
type MemoryFeed struct {
	mu   sync.RWMutex
	subs map[Topic]map[*memorySubscription]struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[Topic]map[*memorySubscription]struct{})}
}

func (f *MemoryFeed) Subscribe(_ context.Context, topic Topic) (Subscription, error) {
	sub := &memorySubscription{
		feed:  f,
		topic: topic,
		ch:    make(chan Collection, subscriberBuffer),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[topic] == nil {
		f.subs[topic] = make(map[*memorySubscription]struct{})
	}
	f.subs[topic][sub] = struct{}{}
	return sub, nil
}

func (f *MemoryFeed) Publish(_ context.Context, c Collection) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs[c.Topic] {
		sub.push(c)
	}
	return nil
}

func (f *MemoryFeed) remove(sub *memorySubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[sub.topic], sub)
	if len(f.subs[sub.topic]) == 0 {
		delete(f.subs, sub.topic)
	}
}

type memorySubscription struct {
	feed   *MemoryFeed
	topic  Topic
	mu     sync.Mutex
	ch     chan Collection
	closed bool
}

func (s *memorySubscription) C() <-chan Collection { return s.ch }

func (s *memorySubscription) push(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- c:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func (s *memorySubscription) Close() error {
	s.feed.remove(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}
