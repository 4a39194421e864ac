package worker

import (
	"context"
	"testing"

	"ppt2video/internal/tracker"
)

func TestReporterClampsRegressingProgress(t *testing.T) {
	trk := tracker.NewMemory()
	rep := newReporter(trk, "job-1", 1000, nil)

	rep.report("exporting slides", 30, "")
	rep.report("exporting slides", 20, "") // regression, must be clamped

	snap, err := trk.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap == nil || snap.Progress != 30 {
		t.Fatalf("snapshot=%+v, want progress 30", snap)
	}

	rep.report("exporting slides", 45, "")
	snap, _ = trk.Get(context.Background(), "job-1")
	if snap.Progress != 45 {
		t.Fatalf("progress=%v, want 45", snap.Progress)
	}
}

func TestReporterCapsProgressAtHundred(t *testing.T) {
	trk := tracker.NewMemory()
	rep := newReporter(trk, "job-1", 1000, nil)

	rep.report("concatenating video", 140, "")

	snap, _ := trk.Get(context.Background(), "job-1")
	if snap.Progress != 100 {
		t.Fatalf("progress=%v, want 100", snap.Progress)
	}
}

func TestReporterStageChangeBypassesThrottle(t *testing.T) {
	trk := tracker.NewMemory()
	// one token per hour: only the first same-stage write passes
	rep := newReporter(trk, "job-1", 1.0/3600, nil)

	rep.report("exporting slides", 10, "")
	rep.report("exporting slides", 20, "") // throttled
	snap, _ := trk.Get(context.Background(), "job-1")
	if snap.Progress != 10 {
		t.Fatalf("throttled write went through: %+v", snap)
	}

	rep.report("extracting notes", 30, "") // stage change, always written
	snap, _ = trk.Get(context.Background(), "job-1")
	if snap.Stage != "extracting notes" || snap.Progress != 30 {
		t.Fatalf("stage transition lost: %+v", snap)
	}
}

func TestReporterOnFirstFiresOnce(t *testing.T) {
	trk := tracker.NewMemory()
	calls := 0
	rep := newReporter(trk, "job-1", 1000, func() { calls++ })

	rep.report("initializing", 0, "")
	rep.report("exporting slides", 10, "")
	if calls != 1 {
		t.Fatalf("onFirst calls=%d, want 1", calls)
	}
}
