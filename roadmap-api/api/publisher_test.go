package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"roadmap-planner/domain"
)

type recordingQueue struct {
	mu     sync.Mutex
	events []domain.BoardEvent
	block  chan struct{}
	err    error
}

func (q *recordingQueue) PublishEvent(_ context.Context, ev domain.BoardEvent) error {
	if q.block != nil {
		<-q.block
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
	return q.err
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func TestEventPublisherDeliversThroughWorkers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	queue := &recordingQueue{}
	p := NewEventPublisher(queue, PublisherConfig{Workers: 2, Buffer: 8, Timeout: time.Second, HandoffTimeout: 10 * time.Millisecond}, logger)

	for i := 0; i < 5; i++ {
		p.Publish(domain.BoardEvent{ID: "ev", RoadmapID: "rm-1", Type: domain.EventTaskMoved})
	}
	p.Close()

	if got := queue.count(); got != 5 {
		t.Fatalf("expected 5 published events, got %d", got)
	}
}

func TestEventPublisherPublishesInlineWhenSaturated(t *testing.T) {
	logger, hook := test.NewNullLogger()
	queue := &recordingQueue{block: make(chan struct{})}
	p := NewEventPublisher(queue, PublisherConfig{Workers: 1, Buffer: 0, Timeout: time.Second, HandoffTimeout: 100 * time.Millisecond}, logger)

	// The single worker picks up the first event and blocks inside the queue.
	p.Publish(domain.BoardEvent{ID: "first", RoadmapID: "rm-1"})

	done := make(chan struct{})
	go func() {
		p.Publish(domain.BoardEvent{ID: "second", RoadmapID: "rm-1"})
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		warned := false
		for _, e := range hook.AllEntries() {
			if e.Message == "event buffer saturated; publishing inline" {
				warned = true
			}
		}
		if warned {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected saturation warning")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(queue.block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("inline publish did not return")
	}
	p.Close()
	if got := queue.count(); got != 2 {
		t.Fatalf("expected both events published, got %d", got)
	}
}

func TestEventPublisherAfterCloseStillDelivers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	queue := &recordingQueue{}
	p := NewEventPublisher(queue, PublisherConfig{Workers: 1, Buffer: 1}, logger)
	p.Close()
	p.Close()

	p.Publish(domain.BoardEvent{ID: "late"})
	if got := queue.count(); got != 1 {
		t.Fatalf("expected inline publish after close, got %d", got)
	}
}

func TestEventPublisherLogsQueueErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	queue := &recordingQueue{err: errors.New("queue down")}
	p := NewEventPublisher(queue, PublisherConfig{Workers: 1, Buffer: 1, Timeout: time.Second}, logger)
	p.Publish(domain.BoardEvent{ID: "ev", RoadmapID: "rm-1", Type: domain.EventTaskCreated})
	p.Close()

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "publish board event failed" {
		t.Fatalf("expected publish failure to be logged, got %#v", entry)
	}
	if entry.Data["type"] != domain.EventTaskCreated {
		t.Fatalf("unexpected fields %#v", entry.Data)
	}
}

func TestNewEventPublisherPanicsOnNilLogger(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewEventPublisher(&recordingQueue{}, PublisherConfig{}, nil)
}

func TestSendWithTimerTimesOut(t *testing.T) {
	ch := make(chan domain.BoardEvent)
	timer := time.NewTimer(10 * time.Millisecond)
	defer timer.Stop()
	if sendWithTimer(ch, domain.BoardEvent{}, timer.C) {
		t.Fatal("expected send to time out without a receiver")
	}
	if trySendNonBlocking(ch, domain.BoardEvent{}) {
		t.Fatal("expected non-blocking send to fail without a receiver")
	}
}

func TestPublisherConfigFromEnv(t *testing.T) {
	t.Setenv("PUBLISH_WORKERS", "3")
	t.Setenv("PUBLISH_BUFFER", "nope")
	t.Setenv("PUBLISH_TIMEOUT", "2s")
	cfg := PublisherConfigFromEnv()
	if cfg.Workers != 3 || cfg.Buffer != 1024 || cfg.Timeout != 2*time.Second || cfg.HandoffTimeout != 15*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
