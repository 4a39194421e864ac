package artifact_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"ppt2video/internal/artifact"
	"ppt2video/internal/entity"
)

func newFS(t *testing.T) *artifact.FS {
	t.Helper()
	fs, err := artifact.NewFS(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}
	return fs
}

func TestFSStoreOpenRemove(t *testing.T) {
	ctx := context.Background()
	fs := newFS(t)
	id := uuid.New()

	ref, err := fs.StoreInput(ctx, id, "My Deck.pptx", strings.NewReader("pptx-bytes"))
	if err != nil {
		t.Fatalf("store input: %v", err)
	}
	if ref.Name != "My Deck.pptx" {
		t.Fatalf("input ref keeps the original name, got %q", ref.Name)
	}
	if !strings.HasPrefix(ref.Key, "uploads/") {
		t.Fatalf("input key should live under uploads/, got %q", ref.Key)
	}

	rc, err := fs.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(body) != "pptx-bytes" {
		t.Fatalf("read back %q, err=%v", body, err)
	}

	if err := fs.Remove(ctx, ref); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := fs.Open(ctx, ref); !errors.Is(err, artifact.ErrMissing) {
		t.Fatalf("open after remove: got %v, want ErrMissing", err)
	}
	// second removal is a no-op
	if err := fs.Remove(ctx, ref); err != nil {
		t.Fatalf("repeat remove: %v", err)
	}
}

func TestFSOutputNaming(t *testing.T) {
	ctx := context.Background()
	fs := newFS(t)
	id := uuid.MustParse("abcdef01-2222-3333-4444-555566667777")

	ref, err := fs.StoreOutput(ctx, id, "My Deck.pptx", strings.NewReader("mp4"))
	if err != nil {
		t.Fatalf("store output: %v", err)
	}
	if ref.Name != "My_Deck_abcdef01.mp4" {
		t.Fatalf("output name = %q, want My_Deck_abcdef01.mp4", ref.Name)
	}
	if ref.Key != "videos/My_Deck_abcdef01.mp4" {
		t.Fatalf("output key = %q", ref.Key)
	}
}

func TestFSRejectsMalformedKeys(t *testing.T) {
	ctx := context.Background()
	fs := newFS(t)

	for _, key := range []string{
		"",
		"noprefix",
		"uploads/../../etc/passwd",
		"uploads/a/b",
		"secrets/x",
		`uploads/..\x`,
	} {
		if _, err := fs.Open(ctx, entity.ArtifactRef{Key: key}); err == nil {
			t.Errorf("open accepted malformed key %q", key)
		}
	}
}

func TestInputNameSanitized(t *testing.T) {
	id := uuid.MustParse("abcdef01-2222-3333-4444-555566667777")
	now := time.Unix(1700000000, 0)

	got := artifact.InputName(id, "../наброски weird name!!.PPTX", now)
	want := "1700000000_abcdef01_weird_name.pptx"
	if got != want {
		t.Fatalf("input name = %q, want %q", got, want)
	}
}

func TestSafeNameFallback(t *testing.T) {
	if got := artifact.SafeName("...."); got != "file" {
		t.Fatalf("SafeName(....) = %q, want file", got)
	}
	if got := artifact.SafeName("report.pptx"); got != "report.pptx" {
		t.Fatalf("SafeName(report.pptx) = %q", got)
	}
}
