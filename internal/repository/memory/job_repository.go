// Package memory is an in-process record store with the same semantics as
// the postgres implementation. It backs the memory store mode and the
// test suites; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ppt2video/internal/entity"
)

type JobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.Job
	seq  map[uuid.UUID]uint64
	next uint64
}

func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs: make(map[uuid.UUID]*entity.Job),
		seq:  make(map[uuid.UUID]uint64),
	}
}

// CreateUnderLimit counts and inserts under one lock, mirroring the
// advisory-lock transaction of the postgres store. limit -1 skips the
// gate.
func (r *JobRepository) CreateUnderLimit(ctx context.Context, owner, role, voice string, input entity.ArtifactRef, limit int) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit >= 0 {
		count := r.countActiveLocked(owner)
		if count >= limit {
			return uuid.Nil, &entity.QuotaError{Role: role, Limit: limit, Count: count}
		}
	}

	in := input
	job := &entity.Job{
		ID:        uuid.New(),
		Owner:     owner,
		Voice:     voice,
		Status:    entity.StatePending,
		Input:     &in,
		CreatedAt: time.Now().UTC(),
	}
	r.jobs[job.ID] = job
	r.next++
	r.seq[job.ID] = r.next
	return job.ID, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return clone(job), nil
}

func (r *JobRepository) ListByOwner(ctx context.Context, owner string) ([]*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var jobs []*entity.Job
	for _, job := range r.jobs {
		if job.Owner == owner {
			jobs = append(jobs, clone(job))
		}
	}
	// newest first, creation order breaks created_at ties
	sort.Slice(jobs, func(i, k int) bool {
		return r.seq[jobs[i].ID] > r.seq[jobs[k].ID]
	})
	return jobs, nil
}

func (r *JobRepository) CountActive(ctx context.Context, owner string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countActiveLocked(owner), nil
}

func (r *JobRepository) countActiveLocked(owner string) int {
	count := 0
	for _, job := range r.jobs {
		if job.Owner == owner && job.Status.CountsTowardQuota() {
			count++
		}
	}
	return count
}

// Claim moves a pending job to STARTED, stamping the executor's lease.
// Exactly one concurrent claimant wins.
func (r *JobRepository) Claim(ctx context.Context, id, lease uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if job.Status != entity.StatePending {
		if job.Status.Terminal() {
			return entity.ErrTerminal
		}
		return entity.ErrAlreadyClaimed
	}

	now := time.Now().UTC()
	job.Status = entity.StateStarted
	job.Lease = &lease
	job.StartedAt = &now
	return nil
}

// SetRunning flips a claimed job between STARTED, PROCESSING and RETRY,
// fenced by the lease issued at claim time.
func (r *JobRepository) SetRunning(ctx context.Context, id, lease uuid.UUID, to entity.State) error {
	if !to.Claimed() {
		return fmt.Errorf("state %s is not a running state", to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if job.Status.Terminal() {
		return entity.ErrTerminal
	}
	if job.Lease == nil || *job.Lease != lease || !job.Status.Claimed() {
		return entity.ErrAlreadyClaimed
	}
	if job.Status == to {
		return nil
	}
	job.Status = to
	return nil
}

func (r *JobRepository) Succeed(ctx context.Context, id, lease uuid.UUID, output entity.ArtifactRef) error {
	return r.finish(id, lease, func(job *entity.Job, now time.Time) {
		out := output
		job.Status = entity.StateSuccess
		job.Output = &out
		job.CompletedAt = &now
	})
}

func (r *JobRepository) Fail(ctx context.Context, id, lease uuid.UUID, summary, detail string) error {
	return r.finish(id, lease, func(job *entity.Job, now time.Time) {
		job.Status = entity.StateFailure
		job.ErrorSummary = &summary
		job.ErrorDetail = &detail
		job.CompletedAt = &now
	})
}

// finish applies a fenced terminal write: the job must still be claimed
// under the given lease, exactly like the guarded UPDATE in postgres.
func (r *JobRepository) finish(id, lease uuid.UUID, apply func(*entity.Job, time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if job.Status.Terminal() {
		return entity.ErrTerminal
	}
	if !job.Status.Claimed() || job.Lease == nil || *job.Lease != lease {
		return entity.ErrAlreadyClaimed
	}
	apply(job, time.Now().UTC())
	return nil
}

func (r *JobRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if job.Status.Terminal() {
		return entity.ErrTerminal
	}

	now := time.Now().UTC()
	job.Status = entity.StateRevoked
	job.CompletedAt = &now
	return nil
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return entity.ErrNotFound
	}
	delete(r.jobs, id)
	delete(r.seq, id)
	return nil
}

func (r *JobRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var jobs []*entity.Job
	for _, job := range r.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			jobs = append(jobs, clone(job))
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CompletedAt.Before(*jobs[k].CompletedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func clone(j *entity.Job) *entity.Job {
	c := *j
	if j.Input != nil {
		in := *j.Input
		c.Input = &in
	}
	if j.Output != nil {
		out := *j.Output
		c.Output = &out
	}
	if j.ErrorSummary != nil {
		s := *j.ErrorSummary
		c.ErrorSummary = &s
	}
	if j.ErrorDetail != nil {
		d := *j.ErrorDetail
		c.ErrorDetail = &d
	}
	if j.Lease != nil {
		l := *j.Lease
		c.Lease = &l
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
