//go:build integration

package scenarios

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"roadmap-planner/board"
	"roadmap-planner/domain"
	integration "roadmap-planner/tests/integration"
	"roadmap-planner/tests/integration/internal/httpclient"
)

type boardView struct {
	Roadmap    domain.Roadmap    `json:"roadmap"`
	Board      board.Board       `json:"board"`
	Permission domain.Permission `json:"permission"`
}

type taskResponse struct {
	Task domain.Task `json:"task"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := integration.TestToken(user, user+"@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func newClient(t *testing.T) *httpclient.Client {
	t.Helper()
	base := getenv("API_BASE", "http://localhost:8080")
	if _, err := http.Get(base + "/healthz"); err != nil {
		t.Skipf("skipping, API not reachable: %v", err)
	}
	bearer := os.Getenv("TEST_BEARER")
	if bearer == "" {
		bearer = token(t, "integration-owner")
	}
	return httpclient.New(base, bearer)
}

func createRoadmap(t *testing.T, client *httpclient.Client) domain.Roadmap {
	t.Helper()
	title := fmt.Sprintf("integration %d", time.Now().UnixNano())
	var rm domain.Roadmap
	if _, err := client.PostJSON("/api/roadmaps", map[string]any{"title": title}, &rm); err != nil {
		t.Fatalf("create roadmap: %v", err)
	}
	t.Cleanup(func() { _, _ = client.Delete("/api/roadmaps/" + rm.ID) })
	return rm
}

func createTask(t *testing.T, client *httpclient.Client, roadmapID, title string, start time.Time, d time.Duration) domain.Task {
	t.Helper()
	var resp taskResponse
	if _, err := client.PostJSON("/api/roadmaps/"+roadmapID+"/tasks", taskBody(title, start, d), &resp); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return resp.Task
}

func taskBody(title string, start time.Time, d time.Duration) map[string]any {
	return map[string]any{
		"title":     title,
		"startTime": start.UTC().Format(time.RFC3339),
		"endTime":   start.Add(d).UTC().Format(time.RFC3339),
	}
}

// pollBoard polls the roadmap until cond returns true or the projection
// SLA passes.
func pollBoard(t *testing.T, client *httpclient.Client, roadmapID, what string, cond func(board.Board) bool) board.Board {
	t.Helper()
	deadline := time.Now().Add(projectionSLA())
	backoff := 200 * time.Millisecond
	for {
		var view boardView
		_, err := client.GetJSON("/api/roadmaps/"+roadmapID, &view)
		if err == nil && cond(view.Board) {
			return view.Board
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s: %v", what, err)
		}
		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func projectionSLA() time.Duration {
	sla := 10 * time.Second
	data, err := os.ReadFile("../config.test.yaml")
	if err != nil {
		return sla
	}
	var cfg struct {
		ProjectionSLAMs int `yaml:"projection_visibility_sla_ms"`
	}
	if err := yaml.Unmarshal(data, &cfg); err == nil && cfg.ProjectionSLAMs > 0 {
		sla = time.Duration(cfg.ProjectionSLAMs) * time.Millisecond
	}
	return sla
}
