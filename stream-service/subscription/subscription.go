// Package subscription fans board update notifications out to the stream
// handlers watching each roadmap.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"roadmap-planner/domain"
)

// Broker tracks subscribers per roadmap. Notifications coalesce: a
// subscriber that has not consumed the previous signal gets no second one.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan struct{}]struct{}{}}
}

// Subscribe registers interest in roadmapID. The returned func removes the
// subscription.
func (b *Broker) Subscribe(roadmapID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[roadmapID] == nil {
		b.subs[roadmapID] = map[chan struct{}]struct{}{}
	}
	b.subs[roadmapID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[roadmapID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, roadmapID)
				}
			}
		})
	}
}

// Notify wakes every subscriber of roadmapID without blocking.
func (b *Broker) Notify(roadmapID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[roadmapID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of subscribers of roadmapID.
func (b *Broker) Subscribers(roadmapID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[roadmapID])
}

// SubscribeUpdates listens on the board updates channel and notifies the
// broker for every event. It resubscribes when the channel closes and
// returns when ctx is cancelled.
func SubscribeUpdates(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, broker *Broker, retry time.Duration) {
	if retry <= 0 {
		retry = time.Second
	}
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var ev domain.BoardEvent
				if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil || ev.RoadmapID == "" {
					logger.WithField("channel", channel).Warn("ignoring malformed board update")
					continue
				}
				logger.WithFields(log.Fields{"roadmap": ev.RoadmapID, "type": ev.Type}).Debug("board update received")
				broker.Notify(ev.RoadmapID)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.WithField("channel", channel).Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
