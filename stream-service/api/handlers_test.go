package api

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"roadmap-planner/board"
	"roadmap-planner/domain"
	"roadmap-planner/storage"
	"roadmap-planner/stream-service/subscription"
)

type fakeStore struct {
	mu       sync.Mutex
	roadmaps map[string]domain.Roadmap
	boards   map[string]board.Board
}

func (f *fakeStore) GetRoadmap(_ context.Context, id string) (domain.Roadmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.roadmaps[id]
	if !ok {
		return domain.Roadmap{}, storage.ErrNotFound
	}
	return rm, nil
}

func (f *fakeStore) LoadBoard(_ context.Context, id string) (board.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boards[id]
	if !ok {
		return board.Board{}, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) setBoard(id string, b board.Board) {
	f.mu.Lock()
	f.boards[id] = b
	f.mu.Unlock()
}

func (f *fakeStore) deleteRoadmap(id string) {
	f.mu.Lock()
	delete(f.roadmaps, id)
	delete(f.boards, id)
	f.mu.Unlock()
}

type fakeAuth struct{}

func (fakeAuth) IdentityFromAuthHeader(h string) (domain.Identity, error) {
	user, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || user == "" {
		return domain.Identity{}, errors.New("bad token")
	}
	return domain.Identity{UserID: user}, nil
}

func newStore() *fakeStore {
	return &fakeStore{
		roadmaps: map[string]domain.Roadmap{
			"private": {ID: "private", OwnerID: "owner"},
			"public":  {ID: "public", OwnerID: "owner", IsPublic: true},
		},
		boards: map[string]board.Board{"private": board.Empty(), "public": board.Empty()},
	}
}

func newServer(t *testing.T, store Storage, broker Broker) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e := echo.New()
	Register(e, store, fakeAuth{}, broker, logger, 20*time.Millisecond)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamRejectsUnauthorized(t *testing.T) {
	srv := newServer(t, newStore(), subscription.NewBroker())
	tests := []struct {
		name   string
		query  string
		header string
		status int
	}{
		{"missing roadmap", "", "", http.StatusBadRequest},
		{"anonymous private", "?roadmapId=private", "", http.StatusUnauthorized},
		{"stranger", "?roadmapId=private&token=stranger", "", http.StatusForbidden},
		{"bad header", "?roadmapId=private", "Basic x", http.StatusUnauthorized},
		{"unknown roadmap", "?roadmapId=nope&token=owner", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/stream"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

// readEvent returns the next data line, skipping keepalive comments.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "data: ") || strings.HasPrefix(line, "event: ") {
			return line
		}
	}
}

func TestStreamPushesBoardOnUpdates(t *testing.T) {
	store := newStore()
	broker := subscription.NewBroker()
	srv := newServer(t, store, broker)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream?roadmapId=public", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	var view boardView
	if err := sonic.UnmarshalString(strings.TrimPrefix(readEvent(t, r), "data: "), &view); err != nil {
		t.Fatalf("decode initial view: %v", err)
	}
	if view.Permission != domain.PermissionView || len(view.Board.Tasks) != 0 {
		t.Fatalf("unexpected initial view %+v", view)
	}

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	b, _, err := board.Empty().AddTask(domain.Task{ID: "t1", Title: "New", StartTime: start, EndTime: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	store.setBoard("public", b)
	broker.Notify("public")

	if err := sonic.UnmarshalString(strings.TrimPrefix(readEvent(t, r), "data: "), &view); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if _, ok := view.Board.Tasks["t1"]; !ok {
		t.Fatalf("expected pushed board to contain t1, got %+v", view.Board.Tasks)
	}

	store.deleteRoadmap("public")
	broker.Notify("public")
	if line := readEvent(t, r); line != "event: closed" {
		t.Fatalf("expected closed event, got %q", line)
	}
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	broker := subscription.NewBroker()
	srv := newServer(t, newStore(), broker)

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream?roadmapId=private&token=owner", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	readEvent(t, bufio.NewReader(resp.Body))
	if broker.Subscribers("private") != 1 {
		t.Fatalf("expected subscriber while connected")
	}
	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(time.Second)
	for broker.Subscribers("private") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// plainWriter hides the Flush method of the recorder it wraps.
type plainWriter struct {
	http.ResponseWriter
}

type countingBroker struct {
	subscribed int
}

func (b *countingBroker) Subscribe(string) (<-chan struct{}, func()) {
	b.subscribed++
	return make(chan struct{}), func() {}
}

func TestStreamRequiresFlusher(t *testing.T) {
	logger, _ := test.NewNullLogger()
	broker := &countingBroker{}
	e := echo.New()
	Register(e, newStore(), fakeAuth{}, broker, logger, time.Second)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream?roadmapId=public", nil)
	e.ServeHTTP(plainWriter{rec}, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("event-stream headers sent before failing: %q", ct)
	}
	if broker.subscribed != 0 {
		t.Fatalf("subscribed %d times without a stream", broker.subscribed)
	}
}
