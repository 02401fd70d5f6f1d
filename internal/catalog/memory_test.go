package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	later := &Event{ID: id.EventID(uuid.New()), Title: "Hackathon", StartsAt: now.Add(48 * time.Hour)}
	sooner := &Event{ID: id.EventID(uuid.New()), Title: "Career Fair", StartsAt: now.Add(time.Hour),
		Fee: &Money{AmountCents: 500, Currency: "usd"}}
	c := NewInMemory(later, sooner)

	t.Run("find returns a copy", func(t *testing.T) {
		e, err := c.FindEvent(ctx, sooner.ID)
		require.NoError(t, err)
		e.Title = "mutated"
		again, _ := c.FindEvent(ctx, sooner.ID)
		assert.Equal(t, "Career Fair", again.Title)
	})

	t.Run("unknown event is not found", func(t *testing.T) {
		_, err := c.FindEvent(ctx, id.EventID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("list is ordered by start time", func(t *testing.T) {
		events, err := c.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, sooner.ID, events[0].ID)
	})
}

func TestMoney(t *testing.T) {
	var none *Money
	assert.True(t, none.IsZero())
	assert.True(t, (&Money{}).IsZero())

	fee := Money{AmountCents: 1000, Currency: "usd"}
	assert.True(t, Money{AmountCents: 1000, Currency: "usd"}.Covers(fee))
	assert.False(t, Money{AmountCents: 999, Currency: "usd"}.Covers(fee))
	assert.False(t, Money{AmountCents: 5000, Currency: "eur"}.Covers(fee))
}

func TestLoadSeed(t *testing.T) {
	t.Run("defaults the registration mode", func(t *testing.T) {
		events, err := LoadSeed(strings.NewReader(`[
			{"id":"6f1c8d8e-4a61-4f0a-9d53-5b1de0c2a7f4","title":"Hack Night"},
			{"id":"0b3a4f3e-2d0c-4f5e-9a7e-1c2b3d4e5f60","title":"Robotics","registration_mode":"team","max_team_size":4,
			 "fee":{"amount_cents":1000,"currency":"usd"}}
		]`))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, ModeIndividual, events[0].RegistrationMode)
		assert.True(t, events[1].IsTeamEvent())
		assert.True(t, events[1].HasFee())
	})

	t.Run("rejects entries without an id", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader(`[{"title":"nameless"}]`))
		require.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader(`{`))
		require.Error(t, err)
	})
}
