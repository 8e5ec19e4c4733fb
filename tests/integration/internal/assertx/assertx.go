package assertx

import (
	"errors"
	"testing"

	"roadmap-planner/tests/integration/internal/httpclient"
)

// Equal fails if want != got.
func Equal[T comparable](t *testing.T, want, got T) {
	t.Helper()
	if want != got {
		t.Fatalf("want %v, got %v", want, got)
	}
}

// Status fails unless err carries the given HTTP status code.
func Status(t *testing.T, want int, err error) {
	t.Helper()
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want status %d, got error %v", want, err)
	}
	if se.Code != want {
		t.Fatalf("want status %d, got %d: %s", want, se.Code, se.Body)
	}
}
