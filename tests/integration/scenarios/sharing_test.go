//go:build integration

package scenarios

import (
	"net/http"
	"testing"
	"time"

	"roadmap-planner/domain"
	"roadmap-planner/tests/integration/internal/assertx"
)

func TestSharingControlsAccess(t *testing.T) {
	owner := newClient(t)
	rm := createRoadmap(t, owner)
	viewer := owner.As(token(t, "integration-viewer"))
	stranger := owner.As(token(t, "integration-stranger"))

	_, err := stranger.GetJSON("/api/roadmaps/"+rm.ID, nil)
	assertx.Status(t, http.StatusForbidden, err)

	share := map[string]any{"email": "integration-viewer@example.com", "permissionLevel": "view"}
	if _, err := owner.PostJSON("/api/roadmaps/"+rm.ID+"/share", share, nil); err != nil {
		t.Fatalf("share roadmap: %v", err)
	}
	var view boardView
	if _, err := viewer.GetJSON("/api/roadmaps/"+rm.ID, &view); err != nil {
		t.Fatalf("viewer read: %v", err)
	}
	assertx.Equal(t, domain.PermissionView, view.Permission)

	_, err = viewer.PostJSON("/api/roadmaps/"+rm.ID+"/tasks", taskBody("nope", time.Now(), time.Hour), nil)
	assertx.Status(t, http.StatusForbidden, err)

	if _, err := owner.PatchJSON("/api/roadmaps/"+rm.ID+"/visibility", map[string]any{"isPublic": true}, nil); err != nil {
		t.Fatalf("publish roadmap: %v", err)
	}
	anonymous := owner.As("")
	if _, err := anonymous.GetJSON("/api/roadmaps/slug/"+rm.Slug, &view); err != nil {
		t.Fatalf("public read by slug: %v", err)
	}
	assertx.Equal(t, rm.ID, view.Roadmap.ID)
}
