package api

import (
	"context"

	"roadmap-planner/board"
	"roadmap-planner/domain"
)

// Store abstracts roadmap and board persistence for handlers.
type Store interface {
	CreateRoadmap(ctx context.Context, rm domain.Roadmap) error
	GetRoadmap(ctx context.Context, id string) (domain.Roadmap, error)
	FindRoadmapBySlug(ctx context.Context, slug string) (domain.Roadmap, error)
	ListRoadmaps(ctx context.Context, ownerID string) ([]domain.Roadmap, error)
	SaveRoadmap(ctx context.Context, rm domain.Roadmap) error
	DeleteRoadmap(ctx context.Context, id string) error
	LoadBoard(ctx context.Context, roadmapID string) (board.Board, error)
	board.Persister
}

// Authenticator is implemented by types able to resolve the caller from
// an Authorization header.
type Authenticator interface {
	IdentityFromAuthHeader(string) (domain.Identity, error)
}

// Deduper prevents processing of duplicate creates.
type Deduper interface {
	// Claim records value under the idempotency key. When the key is already
	// taken it returns the stored value and false.
	Claim(ctx context.Context, scope, key, value string) (string, bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, scope, key string) error
}

// Publisher delivers board events to downstream services.
type Publisher interface {
	PublishEvent(ctx context.Context, ev domain.BoardEvent) error
}

// EventSink accepts events after a change is stored. Implementations must
// not block the request for long.
type EventSink interface {
	Publish(ev domain.BoardEvent)
}
