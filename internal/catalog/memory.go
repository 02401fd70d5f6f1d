package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

// InMemory is a seeded catalog for tests and local runs.
type InMemory struct {
	mu     sync.RWMutex
	events map[id.EventID]*Event
}

func NewInMemory(events ...*Event) *InMemory {
	c := &InMemory{events: make(map[id.EventID]*Event)}
	for _, e := range events {
		c.Put(e)
	}
	return c
}

// Put adds or replaces an event.
func (c *InMemory) Put(e *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *e
	c.events[e.ID] = &cp
}

func (c *InMemory) FindEvent(_ context.Context, eventID id.EventID) (*Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (c *InMemory) ListEvents(_ context.Context) ([]*Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Event, 0, len(c.events))
	for _, e := range c.events {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

// LoadSeed decodes a JSON array of events, as used to seed the in-memory
// catalog for local runs.
func LoadSeed(r io.Reader) ([]*Event, error) {
	var events []*Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode catalog seed: %w", err)
	}
	for i, e := range events {
		if e == nil || e.ID.IsNil() {
			return nil, fmt.Errorf("catalog seed entry %d has no id", i)
		}
		if e.RegistrationMode == "" {
			e.RegistrationMode = ModeIndividual
		}
	}
	return events, nil
}
