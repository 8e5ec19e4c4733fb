package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"roadmap-planner/domain"
)

// ErrPersist wraps store failures after the optimistic state was rolled back.
// Callers may retry.
var ErrPersist = errors.New("persist board change")

// Persister writes a mutation to durable storage.
type Persister interface {
	Persist(ctx context.Context, roadmapID string, m Mutation) error
}

// Session owns the live board of one roadmap. Mutations are applied
// optimistically and rolled back when the store rejects them. One mutation
// at a time is in flight, so the state before a failed mutation is always
// the state the store holds.
type Session struct {
	roadmapID string
	store     Persister
	logger    *log.Logger
	writer    chan struct{}

	mu      sync.Mutex
	current Board
}

// NewSession starts a session from a known good snapshot.
func NewSession(roadmapID string, snapshot Board, store Persister, logger *log.Logger) *Session {
	if logger == nil {
		panic("board.NewSession: logger is nil")
	}
	return &Session{
		roadmapID: roadmapID,
		store:     store,
		logger:    logger,
		writer:    make(chan struct{}, 1),
		current:   snapshot,
	}
}

// Snapshot returns the current board, including a mutation still being
// persisted.
func (s *Session) Snapshot() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) lock(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) unlock() { <-s.writer }

// Reset installs a freshly loaded snapshot once no mutation is in flight.
func (s *Session) Reset(b Board) {
	s.writer <- struct{}{}
	defer s.unlock()
	s.mu.Lock()
	s.current = b
	s.mu.Unlock()
}

// Reload replaces the board with the result of load. The load runs while no
// mutation is in flight so it cannot miss a write that is still settling.
func (s *Session) Reload(ctx context.Context, load func(context.Context) (Board, error)) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	b, err := load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = b
	s.mu.Unlock()
	return nil
}

func (s *Session) apply(ctx context.Context, fn func(Board) (Board, Mutation, error)) (Mutation, error) {
	if err := s.lock(ctx); err != nil {
		return Mutation{}, err
	}
	defer s.unlock()

	s.mu.Lock()
	before := s.current
	next, m, err := fn(before)
	if err != nil || m.IsZero() {
		s.mu.Unlock()
		return m, err
	}
	s.current = next
	s.mu.Unlock()

	start := time.Now()
	if perr := s.store.Persist(ctx, s.roadmapID, m); perr != nil {
		s.mu.Lock()
		s.current = before
		s.mu.Unlock()
		s.logger.WithError(perr).WithFields(log.Fields{"roadmap": s.roadmapID, "op": m.Op, "task": m.TaskID}).Error("board change rolled back")
		return Mutation{}, fmt.Errorf("%w: %w", ErrPersist, perr)
	}
	s.logger.WithFields(log.Fields{
		"roadmap":    s.roadmapID,
		"op":         m.Op,
		"task":       m.TaskID,
		"persist_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("board change persisted")
	return m, nil
}

// MoveTask applies a drag and drop move.
func (s *Session) MoveTask(ctx context.Context, req MoveRequest) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.MoveTask(req) })
}

// AddTask appends a new todo task.
func (s *Session) AddTask(ctx context.Context, t domain.Task) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.AddTask(t) })
}

// UpdateTask merges a patch into a task.
func (s *Session) UpdateTask(ctx context.Context, id string, patch TaskPatch) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.UpdateTask(id, patch) })
}

// AddComment appends a comment to a task.
func (s *Session) AddComment(ctx context.Context, taskID string, c domain.Comment) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.AddComment(taskID, c) })
}

// DeleteTask removes a task.
func (s *Session) DeleteTask(ctx context.Context, id string) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.DeleteTask(id) })
}

// Redistribute rebuilds the columns from task statuses.
func (s *Session) Redistribute(ctx context.Context) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) {
		next, m := b.Redistribute()
		return next, m, nil
	})
}

// ApplyBulkUpdate installs a column layout.
func (s *Session) ApplyBulkUpdate(ctx context.Context, u BulkUpdate) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.ApplyBulkUpdate(u) })
}

// AddPreset stores a task template.
func (s *Session) AddPreset(ctx context.Context, id string, p domain.Preset) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.AddPreset(id, p) })
}

// RemovePreset deletes a task template.
func (s *Session) RemovePreset(ctx context.Context, id string) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.RemovePreset(id) })
}

// ApplyPreset creates a task from a template.
func (s *Session) ApplyPreset(ctx context.Context, presetID, taskID string, now time.Time) (Mutation, error) {
	return s.apply(ctx, func(b Board) (Board, Mutation, error) { return b.ApplyPreset(presetID, taskID, now) })
}
