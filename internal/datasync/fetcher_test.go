package datasync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusreg/internal/catalog"
	"campusreg/internal/membership"
	id "campusreg/pkg/domain"
)

type failingLister struct{}

func (failingLister) ListEvents(context.Context) ([]*catalog.Event, error) {
	return nil, errors.New("catalog offline")
}

func TestRegistryFetcher(t *testing.T) {
	ctx := context.Background()
	index := membership.NewInMemory()
	eventID := id.EventID(uuid.New())
	userID := id.UserID(uuid.New())
	require.NoError(t, index.AddMembership(ctx, userID, eventID))

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewRegistryFetcher(index, catalog.NewInMemory())
	f.now = func() time.Time { return fixed }

	t.Run("event members", func(t *testing.T) {
		c, err := f.Fetch(ctx, EventMembersTopic(eventID))
		require.NoError(t, err)
		assert.Equal(t, EventMembersTopic(eventID), c.Topic)
		assert.JSONEq(t, `["`+userID.String()+`"]`, string(c.Items))
		assert.Equal(t, fixed, c.At)
	})

	t.Run("user events", func(t *testing.T) {
		c, err := f.Fetch(ctx, UserEventsTopic(userID))
		require.NoError(t, err)
		assert.JSONEq(t, `["`+eventID.String()+`"]`, string(c.Items))
	})

	t.Run("empty collections encode as an empty array", func(t *testing.T) {
		c, err := f.Fetch(ctx, UserEventsTopic(id.UserID(uuid.New())))
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(c.Items))

		c, err = f.Fetch(ctx, TopicEvents)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(c.Items))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := f.Fetch(ctx, Topic("bogus"))
		require.Error(t, err)

		_, err = NewRegistryFetcher(index, failingLister{}).Fetch(ctx, TopicEvents)
		require.ErrorContains(t, err, "catalog offline")
	})
}
