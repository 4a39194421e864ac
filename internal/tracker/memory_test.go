package tracker_test

import (
	"context"
	"testing"
	"time"

	"ppt2video/internal/entity"
	"ppt2video/internal/tracker"
)

func TestMemorySetGetClear(t *testing.T) {
	ctx := context.Background()
	tr := tracker.NewMemory()

	got, err := tr.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil snapshot for unknown job, got %+v", got)
	}

	snap := entity.Snapshot{
		Stage:     "generating audio",
		Progress:  42.5,
		Detail:    "slide 3 of 7",
		UpdatedAt: time.Now().UTC(),
	}
	if err := tr.Set(ctx, "j1", snap); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err = tr.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Stage != snap.Stage || got.Progress != snap.Progress || got.Detail != snap.Detail {
		t.Fatalf("got %+v, want %+v", got, snap)
	}

	if err := tr.Clear(ctx, "j1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = tr.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after clear, got %+v", got)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	tr := tracker.NewMemory()

	if err := tr.Set(ctx, "j1", entity.Snapshot{Stage: "exporting slides", Progress: 10}); err != nil {
		t.Fatalf("set: %v", err)
	}

	first, _ := tr.Get(ctx, "j1")
	first.Progress = 99

	second, _ := tr.Get(ctx, "j1")
	if second.Progress != 10 {
		t.Fatalf("tracker state mutated through returned snapshot: %+v", second)
	}
}
