// Package testutil provides shared test helpers for setting up stores and
// services.
package testutil

import (
	"testing"
	"time"

	"github.com/rowanvale/draftforge/internal/notebook"
	"github.com/rowanvale/draftforge/internal/refine"
	"github.com/rowanvale/draftforge/internal/runner"
	"github.com/rowanvale/draftforge/internal/store"
	"github.com/rowanvale/draftforge/internal/workspace"
)

// TestStore creates a store rooted in a temporary directory.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// TestService wires a full service over a temporary store with the
// deterministic fallback refiner and zeroed stage pacing. The notify hook, if
// non-nil, receives every run transition.
func TestService(t *testing.T, notify func(workspace.RunRecord)) (*notebook.Service, *store.Store) {
	t.Helper()
	st := TestStore(t)
	processor := runner.New(st, refine.Fallback{}, nil, notify)
	processor.Pause = func(time.Duration) {}
	return notebook.NewService(st, processor), st
}
