package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"roadmap-planner/board"
	"roadmap-planner/domain"
	"roadmap-planner/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	roadmaps   map[string]domain.Roadmap
	boards     map[string]board.Board
	persistErr error
	persisted  []board.Mutation
	loads      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{roadmaps: map[string]domain.Roadmap{}, boards: map[string]board.Board{}}
}

func (f *fakeStore) put(rm domain.Roadmap, b board.Board) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roadmaps[rm.ID] = rm
	f.boards[rm.ID] = b
}

func (f *fakeStore) CreateRoadmap(_ context.Context, rm domain.Roadmap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roadmaps[rm.ID]; ok {
		return storage.ErrConflict
	}
	f.roadmaps[rm.ID] = rm
	f.boards[rm.ID] = board.Empty()
	return nil
}

func (f *fakeStore) GetRoadmap(_ context.Context, id string) (domain.Roadmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.roadmaps[id]
	if !ok {
		return domain.Roadmap{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return rm, nil
}

func (f *fakeStore) FindRoadmapBySlug(_ context.Context, slug string) (domain.Roadmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rm := range f.roadmaps {
		if rm.Slug == slug {
			return rm, nil
		}
	}
	return domain.Roadmap{}, storage.ErrNotFound
}

func (f *fakeStore) ListRoadmaps(_ context.Context, ownerID string) ([]domain.Roadmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Roadmap{}
	for _, rm := range f.roadmaps {
		if rm.OwnerID == ownerID {
			out = append(out, rm)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveRoadmap(_ context.Context, rm domain.Roadmap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roadmaps[rm.ID]; !ok {
		return storage.ErrNotFound
	}
	f.roadmaps[rm.ID] = rm
	return nil
}

func (f *fakeStore) DeleteRoadmap(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roadmaps, id)
	delete(f.boards, id)
	return nil
}

func (f *fakeStore) LoadBoard(_ context.Context, roadmapID string) (board.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	b, ok := f.boards[roadmapID]
	if !ok {
		return board.Board{}, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) Persist(_ context.Context, roadmapID string, m board.Mutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.boards[roadmapID] = m.After
	f.persisted = append(f.persisted, m)
	return nil
}

func (f *fakeStore) board(roadmapID string) board.Board {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boards[roadmapID]
}

// fakeAuth accepts "Bearer <user>" or "Bearer <user>|<email>".
type fakeAuth struct{}

func (fakeAuth) IdentityFromAuthHeader(h string) (domain.Identity, error) {
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return domain.Identity{}, errors.New("bad auth header")
	}
	user, email, _ := strings.Cut(token, "|")
	return domain.Identity{UserID: user, Email: email}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.BoardEvent
}

func (r *recordingSink) Publish(ev domain.BoardEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type memDeduper struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memDeduper) Claim(_ context.Context, scope, key, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	k := scope + ":" + key
	if v, ok := m.keys[k]; ok {
		return v, false, nil
	}
	m.keys[k] = value
	return value, true, nil
}

func (m *memDeduper) Remove(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scope+":"+key)
	return nil
}
