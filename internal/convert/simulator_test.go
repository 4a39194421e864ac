package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"ppt2video/internal/convert"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "deck.pptx")
	if err := os.WriteFile(path, []byte("pptx"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestSimulatorProducesVideoAndOrderedProgress(t *testing.T) {
	work := t.TempDir()
	sim := convert.NewSimulator(time.Millisecond)

	var stages []string
	var progress []float64
	res, err := sim.Convert(context.Background(), convert.Request{
		JobID:     uuid.New(),
		InputPath: writeInput(t, work),
		WorkDir:   work,
		BaseName:  "deck.pptx",
		Voice:     "en-US-GuyNeural",
	}, func(stage string, p float64, detail string) {
		stages = append(stages, stage)
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}

	if len(stages) == 0 || stages[0] != convert.StageInitializing {
		t.Fatalf("first stage = %v, want initializing", stages)
	}
	if stages[len(stages)-1] != convert.StageComplete {
		t.Fatalf("last stage = %s, want complete", stages[len(stages)-1])
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, progress)
		}
	}
	if progress[len(progress)-1] != 100 {
		t.Fatalf("final progress = %v, want 100", progress[len(progress)-1])
	}
}

func TestSimulatorHonorsCancellation(t *testing.T) {
	work := t.TempDir()
	sim := convert.NewSimulator(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := sim.Convert(ctx, convert.Request{
		JobID:     uuid.New(),
		InputPath: writeInput(t, work),
		WorkDir:   work,
	}, func(string, float64, string) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSimulatorRejectsUnknownVoice(t *testing.T) {
	work := t.TempDir()
	sim := convert.NewSimulator(time.Millisecond)

	_, err := sim.Convert(context.Background(), convert.Request{
		JobID:     uuid.New(),
		InputPath: writeInput(t, work),
		WorkDir:   work,
		Voice:     "nope-voice",
	}, func(string, float64, string) {})

	var failure *convert.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected Failure, got %v", err)
	}
	if failure.Transient {
		t.Fatal("unknown voice must not be retried")
	}
	if failure.Trace == "" {
		t.Fatal("failure should carry a diagnostic trace")
	}
}

func TestSimulatorVoices(t *testing.T) {
	sim := convert.NewSimulator(time.Millisecond)
	voices, err := sim.Voices(context.Background())
	if err != nil {
		t.Fatalf("voices: %v", err)
	}
	if len(voices) == 0 {
		t.Fatal("expected a non-empty voice list")
	}
	for _, v := range voices {
		if v.ID == "" || v.Locale == "" {
			t.Fatalf("voice missing fields: %+v", v)
		}
	}
}
