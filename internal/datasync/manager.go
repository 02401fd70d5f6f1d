package datasync

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by operations on a closed View or Session.
var ErrClosed = errors.New("datasync: closed")

// Manager owns the shared cache and the sessions reading through it.
type Manager struct {
	cache   *Cache
	fetcher Fetcher
	feed    Feed
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cache *Cache, fetcher Fetcher, feed Feed, logger *slog.Logger) *Manager {
	return &Manager{
		cache:    cache,
		fetcher:  fetcher,
		feed:     feed,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Cache() *Cache { return m.cache }

// Session returns the session for an auth session id, creating it on first use.
func (m *Manager) Session(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &Session{id: sessionID, manager: m, views: make(map[*View]struct{})}
		m.sessions[sessionID] = s
	}
	return s
}

// EndSession closes every view of the session, as on logout. It returns once
// no subscription callback of the session can fire.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll ends every session, as on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// Sessions returns the number of open sessions.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
}

// Session groups the views opened under one authenticated session.
type Session struct {
	id      string
	manager *Manager

	mu     sync.Mutex
	views  map[*View]struct{}
	closed bool
}

// NewView starts a consumer lifetime, such as one page view.
func (s *Session) NewView() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		session: s,
		ctx:     ctx,
		cancel:  cancel,
		loaded:  make(map[Topic]bool),
	}
	s.views[v] = struct{}{}
	return v, nil
}

// Close closes all views. Views opened afterwards fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	views := make([]*View, 0, len(s.views))
	for v := range s.views {
		views = append(views, v)
	}
	s.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	s.manager.forget(s)
}

func (s *Session) detach(v *View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, v)
}

// View is one consumer lifetime. Lazy fetches fire at most once per topic per
// view; subscriptions end when the view closes.
type View struct {
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
	group   singleflight.Group
	wg      sync.WaitGroup

	mu     sync.Mutex
	loaded map[Topic]bool
	subs   []Subscription
	closed bool
}

func (v *View) manager() *Manager { return v.session.manager }

// Snapshot always fetches and returns the authoritative collection, which is
// the live value when a subscription for topic is open.
func (v *View) Snapshot(ctx context.Context, topic Topic) (Collection, error) {
	if v.isClosed() {
		return Collection{}, ErrClosed
	}
	return v.fetchAndApply(ctx, topic, SourceSnapshot)
}

// Lazy fetches topic the first time it is requested in this view and serves
// the cache afterwards. Concurrent first requests share one fetch. A failed
// fetch leaves the topic unloaded.
func (v *View) Lazy(ctx context.Context, topic Topic) (Collection, error) {
	if v.isClosed() {
		return Collection{}, ErrClosed
	}
	v.mu.Lock()
	loaded := v.loaded[topic]
	v.mu.Unlock()
	if loaded {
		if c, _, ok := v.manager().cache.Get(topic); ok {
			return c, nil
		}
	}

	res, err, _ := v.group.Do(string(topic), func() (any, error) {
		v.mu.Lock()
		already := v.loaded[topic]
		v.mu.Unlock()
		if already {
			if c, _, ok := v.manager().cache.Get(topic); ok {
				return c, nil
			}
		}
		c, err := v.fetchAndApply(ctx, topic, SourceLazy)
		if err != nil {
			return Collection{}, err
		}
		v.mu.Lock()
		v.loaded[topic] = true
		v.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return Collection{}, err
	}
	return res.(Collection), nil
}

// Loaded reports whether a lazy fetch for topic has completed in this view.
func (v *View) Loaded(topic Topic) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded[topic]
}

func (v *View) fetchAndApply(ctx context.Context, topic Topic, source Source) (Collection, error) {
	m := v.manager()
	c, err := m.fetcher.Fetch(ctx, topic)
	if err != nil {
		return Collection{}, err
	}
	if !m.cache.Apply(c, source) {
		if current, _, ok := m.cache.Get(topic); ok {
			return current, nil
		}
	}
	return c, nil
}

// Subscribe opens a live subscription and calls fn with every pushed
// collection, in order, from a single goroutine. fn must not call Close on the
// view it was registered with.
func (v *View) Subscribe(topic Topic, fn func(Collection)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	m := v.manager()
	sub, err := m.feed.Subscribe(v.ctx, topic)
	if err != nil {
		return err
	}
	m.cache.acquireLive(topic)
	v.subs = append(v.subs, sub)

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer m.cache.releaseLive(topic)
		for c := range sub.C() {
			if v.ctx.Err() != nil {
				return
			}
			if !m.cache.Apply(c, SourceLive) {
				// Older than what the cache holds.
				continue
			}
			fn(c)
		}
	}()
	return nil
}

// Close cancels the view's subscriptions and waits for their delivery
// goroutines, so no callback runs after Close returns. It is idempotent.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.cancel()
	subs := v.subs
	v.subs = nil
	v.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			v.manager().logger.Warn("closing live subscription", "error", err)
		}
	}
	v.wg.Wait()
	v.session.detach(v)
}

// Done is closed when the view closes.
func (v *View) Done() <-chan struct{} { return v.ctx.Done() }

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
