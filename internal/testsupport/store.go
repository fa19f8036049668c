package testsupport

import (
	"context"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProject creates a queued project for tests. A duration <= 0 leaves the
// duration unknown.
func NewProject(t testing.TB, st *store.Store, filename string, duration float64) *store.Project {
	t.Helper()

	p := store.Project{
		Filename:     filename,
		ContentType:  "video/mp4",
		SourceBucket: "uploads",
		SourceURL:    "http://localhost:9000/uploads/source",
	}
	p.ID = store.NewProjectID()
	p.SourceKey = p.ID + "/source/" + filename
	if duration > 0 {
		p.DurationSec = &duration
	}
	created, err := st.CreateProject(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return created
}
