package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campusreg/internal/catalog"
	id "campusreg/pkg/domain"
)

type MembershipReader interface {
	MembersOf(ctx context.Context, eventID id.EventID) ([]id.UserID, error)
	EventsOf(ctx context.Context, userID id.UserID) ([]id.EventID, error)
}

type EventLister interface {
	ListEvents(ctx context.Context) ([]*catalog.Event, error)
}

// RegistryFetcher serves topics from the membership index and the catalog.
type RegistryFetcher struct {
	memberships MembershipReader
	events      EventLister
	now         func() time.Time
}

func NewRegistryFetcher(memberships MembershipReader, events EventLister) *RegistryFetcher {
	return &RegistryFetcher{memberships: memberships, events: events, now: time.Now}
}

func (f *RegistryFetcher) Fetch(ctx context.Context, topic Topic) (Collection, error) {
	p, err := parse(topic)
	if err != nil {
		return Collection{}, err
	}
	// Stamped before the read: a slow read must not outrank a later one.
	at := f.now()

	var items any
	switch p.kind {
	case kindEvents:
		items, err = f.events.ListEvents(ctx)
	case kindEventMembers:
		items, err = f.memberships.MembersOf(ctx, p.eventID)
	case kindUserEvents:
		items, err = f.memberships.EventsOf(ctx, p.userID)
	}
	if err != nil {
		return Collection{}, fmt.Errorf("fetch %s: %w", topic, err)
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return Collection{}, fmt.Errorf("encode %s: %w", topic, err)
	}
	if string(raw) == "null" {
		raw = json.RawMessage("[]")
	}
	return Collection{Topic: topic, Items: raw, At: at}, nil
}
