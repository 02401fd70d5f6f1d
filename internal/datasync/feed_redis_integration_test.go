//go:build integration

package datasync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"campusreg/pkg/testutil/containers"
)

type RedisFeedSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	feed  *RedisFeed
}

func TestRedisFeedSuite(t *testing.T) {
	suite.Run(t, new(RedisFeedSuite))
}

func (s *RedisFeedSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.feed = NewRedisFeed(s.redis.Client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *RedisFeedSuite) TestPublishReachesSubscribers() {
	ctx := context.Background()
	a, err := s.feed.Subscribe(ctx, TopicEvents)
	s.Require().NoError(err)
	defer a.Close()
	b, err := s.feed.Subscribe(ctx, TopicEvents)
	s.Require().NoError(err)
	defer b.Close()

	s.Require().NoError(s.feed.Publish(ctx, collection(TopicEvents, `["x"]`)))

	for _, sub := range []Subscription{a, b} {
		select {
		case c := <-sub.C():
			s.Equal(TopicEvents, c.Topic)
			s.JSONEq(`["x"]`, string(c.Items))
		case <-time.After(5 * time.Second):
			s.FailNow("push not delivered")
		}
	}
}

func (s *RedisFeedSuite) TestTopicsAreIsolated() {
	ctx := context.Background()
	sub, err := s.feed.Subscribe(ctx, UserEventsTopic(testUser))
	s.Require().NoError(err)
	defer sub.Close()

	s.Require().NoError(s.feed.Publish(ctx, collection(TopicEvents, `[]`)))
	select {
	case c := <-sub.C():
		s.Failf("unexpected push", "got %s", c.Topic)
	case <-time.After(200 * time.Millisecond):
	}
}

func (s *RedisFeedSuite) TestCloseEndsChannel() {
	ctx := context.Background()
	sub, err := s.feed.Subscribe(ctx, TopicEvents)
	s.Require().NoError(err)
	s.Require().NoError(sub.Close())
	s.Require().NoError(sub.Close())

	select {
	case _, open := <-sub.C():
		s.False(open)
	case <-time.After(5 * time.Second):
		s.FailNow("channel not closed")
	}
}

func (s *RedisFeedSuite) TestViewOverRedis() {
	m := NewManager(NewCache(), &countingFetcher{}, s.feed, slog.New(slog.NewTextHandler(io.Discard, nil)))
	v, err := m.Session("redis").NewView()
	s.Require().NoError(err)
	defer v.Close()

	pushed := make(chan Collection, 1)
	s.Require().NoError(v.Subscribe(TopicEvents, func(c Collection) { pushed <- c }))
	s.Require().NoError(s.feed.Publish(context.Background(), collection(TopicEvents, `["live"]`)))

	select {
	case c := <-pushed:
		s.JSONEq(`["live"]`, string(c.Items))
	case <-time.After(5 * time.Second):
		s.FailNow("push not delivered")
	}
	got, err := v.Snapshot(context.Background(), TopicEvents)
	s.Require().NoError(err)
	s.JSONEq(`["live"]`, string(got.Items))
}
