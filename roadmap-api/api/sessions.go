package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"roadmap-planner/board"
)

// sessionRegistry keeps one board session per roadmap so concurrent
// requests against the same board are applied in order. A session older
// than ttl is reloaded from the store before use.
type sessionRegistry struct {
	store  Store
	logger *log.Logger
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	session  *board.Session
	loadedAt time.Time
}

func newSessionRegistry(store Store, ttl time.Duration, logger *log.Logger) *sessionRegistry {
	return &sessionRegistry{
		store:   store,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]*sessionEntry{},
	}
}

func (r *sessionRegistry) acquire(ctx context.Context, roadmapID string) (*board.Session, error) {
	now := r.now()
	r.mu.Lock()
	e, ok := r.entries[roadmapID]
	if ok && now.Sub(e.loadedAt) < r.ttl {
		r.mu.Unlock()
		return e.session, nil
	}
	r.mu.Unlock()

	if ok {
		err := e.session.Reload(ctx, func(ctx context.Context) (board.Board, error) {
			return r.store.LoadBoard(ctx, roadmapID)
		})
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		e.loadedAt = now
		r.mu.Unlock()
		return e.session, nil
	}

	b, err := r.store.LoadBoard(ctx, roadmapID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[roadmapID]; ok {
		return e.session, nil
	}
	r.sweep(now)
	s := board.NewSession(roadmapID, b, r.store, r.logger)
	r.entries[roadmapID] = &sessionEntry{session: s, loadedAt: now}
	return s, nil
}

// sweep drops expired sessions. Callers hold r.mu.
func (r *sessionRegistry) sweep(now time.Time) {
	for id, e := range r.entries {
		if now.Sub(e.loadedAt) >= r.ttl {
			delete(r.entries, id)
		}
	}
}

func (r *sessionRegistry) drop(roadmapID string) {
	r.mu.Lock()
	delete(r.entries, roadmapID)
	r.mu.Unlock()
}
