package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"roadmap-planner/domain"
)

// PublisherConfig sizes the event publisher pool.
type PublisherConfig struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

// PublisherConfigFromEnv reads PUBLISH_WORKERS, PUBLISH_BUFFER,
// PUBLISH_TIMEOUT and PUBLISH_HANDOFF_TIMEOUT.
func PublisherConfigFromEnv() PublisherConfig {
	return PublisherConfig{
		Workers:        envInt("PUBLISH_WORKERS", 8),
		Buffer:         envInt("PUBLISH_BUFFER", 1024),
		Timeout:        envDur("PUBLISH_TIMEOUT", 30*time.Second),
		HandoffTimeout: envDur("PUBLISH_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
}

// EventPublisher hands board events to a pool of workers that enqueue them.
// When the buffer stays full past the handoff timeout the event is
// published inline on the caller goroutine.
type EventPublisher struct {
	queue  Publisher
	logger *log.Logger
	cfg    PublisherConfig

	mu     sync.RWMutex
	jobs   chan domain.BoardEvent
	closed bool
	wg     sync.WaitGroup
}

// NewEventPublisher starts the worker pool.
func NewEventPublisher(queue Publisher, cfg PublisherConfig, logger *log.Logger) *EventPublisher {
	if logger == nil {
		panic("api.NewEventPublisher: logger is nil")
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	p := &EventPublisher{
		queue:  queue,
		logger: logger,
		cfg:    cfg,
		jobs:   make(chan domain.BoardEvent, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Infof("event publisher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.HandoffTimeout)
	return p
}

func (p *EventPublisher) worker(id int) {
	defer p.wg.Done()
	for ev := range p.jobs {
		p.publish(ev, id)
	}
}

func (p *EventPublisher) publish(ev domain.BoardEvent, worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	if err := p.queue.PublishEvent(ctx, ev); err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"event":   ev.ID,
			"type":    ev.Type,
			"roadmap": ev.RoadmapID,
			"worker":  worker,
		}).Error("publish board event failed")
	}
}

// Publish queues ev for delivery.
func (p *EventPublisher) Publish(ev domain.BoardEvent) {
	if p.tryHandoff(ev) {
		return
	}
	p.logger.WithField("roadmap", ev.RoadmapID).Warn("event buffer saturated; publishing inline")
	p.publish(ev, -1)
}

func (p *EventPublisher) tryHandoff(ev domain.BoardEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.cfg.Workers == 0 {
		return false
	}
	if trySendNonBlocking(p.jobs, ev) {
		return true
	}
	if p.cfg.HandoffTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(p.cfg.HandoffTimeout)
	defer timer.Stop()
	return sendWithTimer(p.jobs, ev, timer.C)
}

// Close stops accepting events and waits for queued ones to be published.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func trySendNonBlocking(ch chan<- domain.BoardEvent, ev domain.BoardEvent) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

func sendWithTimer(ch chan<- domain.BoardEvent, ev domain.BoardEvent, timer <-chan time.Time) bool {
	select {
	case ch <- ev:
		return true
	case <-timer:
		return false
	}
}
