package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"ppt2video/internal/entity"
	"ppt2video/internal/tracker"
)

// SweepRepo is the retention sweeper's slice of the record store.
type SweepRepo interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ArtifactRemover removes stored artifacts; removing a missing one
// succeeds.
type ArtifactRemover interface {
	Remove(ctx context.Context, ref entity.ArtifactRef) error
}

// Sweeper cascade-deletes terminal jobs older than the retention window,
// the same input -> output -> record order a user-initiated deletion
// follows. It only ever touches terminal jobs, so it cannot race a
// running executor's fenced writes into anything worse than a discarded
// result.
type Sweeper struct {
	repo    SweepRepo
	store   ArtifactRemover
	tracker tracker.Tracker

	maxAge   time.Duration
	interval time.Duration
	batch    int
}

func NewSweeper(repo SweepRepo, store ArtifactRemover, trk tracker.Tracker, maxAge, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		repo:     repo,
		store:    store,
		tracker:  trk,
		maxAge:   maxAge,
		interval: interval,
		batch:    batch,
	}
}

// Run loops until ctx is done. maxAge 0 disables the sweeper entirely.
func (s *Sweeper) Run(ctx context.Context) {
	if s.maxAge <= 0 {
		log.Printf("[sweeper] disabled")
		return
	}
	log.Printf("[sweeper] started max_age=%s interval=%s", s.maxAge, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sweeper] stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("[sweeper] sweep error=%v", err)
			} else if n > 0 {
				log.Printf("[sweeper] removed=%d", n)
			}
		}
	}
}

// Sweep deletes one batch of expired jobs and reports how many went.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.maxAge)

	jobs, err := s.repo.ListExpired(ctx, cutoff, s.batch)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, job := range jobs {
		if err := s.purge(ctx, job); err != nil {
			log.Printf("[sweeper] job_id=%s purge error=%v", job.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Sweeper) purge(ctx context.Context, job *entity.Job) error {
	if job.Input != nil {
		if err := s.store.Remove(ctx, *job.Input); err != nil {
			return err
		}
	}
	if job.Output != nil {
		if err := s.store.Remove(ctx, *job.Output); err != nil {
			return err
		}
	}
	if err := s.tracker.Clear(ctx, job.ID.String()); err != nil {
		log.Printf("[sweeper] job_id=%s clear snapshot error=%v", job.ID, err)
	}
	return s.repo.Delete(ctx, job.ID)
}
