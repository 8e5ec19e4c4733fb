package main

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/board"
	"roadmap-planner/domain"
	"roadmap-planner/storage"
)

type eventQueue interface {
	Dequeue(ctx context.Context, visibility time.Duration) (*azqueue.DequeuedMessage, error)
	Delete(ctx context.Context, id, receipt string) error
}

type boardRefresher interface {
	RefreshBoard(ctx context.Context, roadmapID string) (board.Board, error)
	Evict(ctx context.Context, roadmapID string)
}

type processor struct {
	queue      eventQueue
	cache      boardRefresher
	redis      *redis.Client
	channel    string
	visibility time.Duration
	maxDequeue int64
	idle       time.Duration
	logger     *log.Logger
}

// run polls the queue until ctx is cancelled.
func (p *processor) run(ctx context.Context) {
	for ctx.Err() == nil {
		handled, err := p.poll(ctx)
		if err != nil {
			p.logger.WithError(err).Error("receive board event failed")
		}
		if handled && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(p.idle):
		}
	}
}

// poll handles at most one message. It reports whether a message was found.
// Messages that fail to process are left on the queue and become visible
// again after the visibility timeout.
func (p *processor) poll(ctx context.Context) (bool, error) {
	msg, err := p.queue.Dequeue(ctx, p.visibility)
	if err != nil {
		return false, err
	}
	if msg == nil || msg.MessageID == nil || msg.PopReceipt == nil {
		return false, nil
	}
	fields := log.Fields{"message": *msg.MessageID}
	if msg.DequeueCount != nil {
		fields["dequeue_count"] = *msg.DequeueCount
	}

	var text string
	if msg.MessageText != nil {
		text = *msg.MessageText
	}
	var ev domain.BoardEvent
	switch {
	case sonic.UnmarshalString(text, &ev) != nil || ev.RoadmapID == "":
		p.logger.WithFields(fields).Error("dropping malformed board event")
	case p.maxDequeue > 0 && msg.DequeueCount != nil && *msg.DequeueCount > p.maxDequeue:
		p.logger.WithFields(fields).WithField("roadmap", ev.RoadmapID).Error("dropping poison board event")
	default:
		if err := processEvent(ctx, p.logger, p.cache, p.redis, p.channel, ev, text); err != nil {
			p.logger.WithError(err).WithFields(fields).WithFields(log.Fields{
				"roadmap": ev.RoadmapID,
				"type":    ev.Type,
			}).Warn("board event processing failed; will retry")
			return true, nil
		}
	}
	if err := p.queue.Delete(ctx, *msg.MessageID, *msg.PopReceipt); err != nil {
		return true, err
	}
	return true, nil
}

// processEvent brings the cached board of the roadmap up to date and
// notifies stream subscribers on channel. A failed publish is logged to
// logger and does not fail the event.
func processEvent(ctx context.Context, logger *log.Logger, cache boardRefresher, rc *redis.Client, channel string, ev domain.BoardEvent, payload string) error {
	if cache != nil {
		if ev.Type == domain.EventRoadmapDeleted {
			cache.Evict(ctx, ev.RoadmapID)
		} else if _, err := cache.RefreshBoard(ctx, ev.RoadmapID); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			cache.Evict(ctx, ev.RoadmapID)
		}
	}
	if err := rc.Publish(ctx, channel, payload).Err(); err != nil {
		logger.WithError(err).WithField("channel", channel).Errorf("Unable to publish update for roadmap %s", ev.RoadmapID)
	}
	return nil
}
