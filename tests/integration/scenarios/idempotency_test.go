//go:build integration

package scenarios

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"roadmap-planner/tests/integration/internal/assertx"
)

func TestCreateTaskIdempotencyKeyReplays(t *testing.T) {
	client := newClient(t)
	rm := createRoadmap(t, client)
	key := fmt.Sprintf("idem-%d", time.Now().UnixNano())
	body := taskBody("once", time.Now(), time.Hour)
	headers := map[string]string{"Idempotency-Key": key}

	var first, second taskResponse
	resp, err := client.Do(http.MethodPost, "/api/roadmaps/"+rm.ID+"/tasks", body, &first, headers)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	assertx.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = client.Do(http.MethodPost, "/api/roadmaps/"+rm.ID+"/tasks", body, &second, headers)
	if err != nil {
		t.Fatalf("replayed create: %v", err)
	}
	assertx.Equal(t, http.StatusOK, resp.StatusCode)
	assertx.Equal(t, first.Task.ID, second.Task.ID)

	var list []map[string]any
	if _, err := client.GetJSON("/api/roadmaps/"+rm.ID+"/tasks", &list); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	assertx.Equal(t, 1, len(list))
}
