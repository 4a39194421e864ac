package worker

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"ppt2video/internal/entity"
	"ppt2video/internal/tracker"
)

// reporter funnels pipeline progress callbacks into tracker snapshots.
// It clamps progress so one attempt never reports a lower value than it
// already has, and throttles same-stage writes so a chatty pipeline
// cannot hammer the tracker. Stage transitions always go through.
//
// One reporter serves one execution attempt; retries get a fresh one.
type reporter struct {
	tracker tracker.Tracker
	jobID   string
	limiter *rate.Limiter

	// onFirst runs once, before the first snapshot is written. The
	// processor uses it to flip the record STARTED -> PROCESSING.
	onFirst func()

	started   bool
	lastStage string
	progress  float64
}

func newReporter(trk tracker.Tracker, jobID string, perSecond float64, onFirst func()) *reporter {
	if perSecond <= 0 {
		perSecond = 4
	}
	return &reporter{
		tracker: trk,
		jobID:   jobID,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		onFirst: onFirst,
	}
}

// report is the convert.ProgressFunc for this attempt. Calls arrive from
// the single goroutine running the conversion, so no locking is needed.
func (r *reporter) report(stage string, progress float64, detail string) {
	if !r.started {
		r.started = true
		if r.onFirst != nil {
			r.onFirst()
		}
	}

	if progress < r.progress {
		progress = r.progress
	}
	if progress > 100 {
		progress = 100
	}
	r.progress = progress

	stageChanged := stage != r.lastStage
	r.lastStage = stage
	allowed := r.limiter.Allow()
	if !stageChanged && !allowed {
		return
	}

	err := r.tracker.Set(context.Background(), r.jobID, entity.Snapshot{
		Stage:     stage,
		Progress:  progress,
		Detail:    detail,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		// losing a snapshot only degrades polling granularity
		log.Printf("[worker] job_id=%s snapshot stage=%q error=%v", r.jobID, stage, err)
	}
}
