package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ppt2video/internal/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, owner_id, voice, status,
input_name, input_key, output_name, output_key,
error_summary, error_detail, lease_token,
created_at, started_at, completed_at`

const countActiveQuery = `
SELECT count(*) FROM jobs
WHERE owner_id = $1 AND status NOT IN ('FAILURE', 'REVOKED');
`

// CreateUnderLimit admits a job only while the owner holds fewer than
// limit active jobs. Count and insert run in one transaction under a
// per-owner advisory lock, so concurrent submissions cannot overshoot.
// limit -1 skips the gate entirely.
func (r *JobRepository) CreateUnderLimit(ctx context.Context, owner, role, voice string, input entity.ArtifactRef, limit int) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	if limit >= 0 {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, owner); err != nil {
			return uuid.Nil, err
		}
		var count int
		if err := tx.QueryRow(ctx, countActiveQuery, owner).Scan(&count); err != nil {
			return uuid.Nil, err
		}
		if count >= limit {
			return uuid.Nil, &entity.QuotaError{Role: role, Limit: limit, Count: count}
		}
	}

	const q = `
INSERT INTO jobs (owner_id, voice, status, input_name, input_key)
VALUES ($1, $2, 'PENDING', $3, $4)
RETURNING id;
`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, q, owner, voice, input.Name, input.Key).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) ListByOwner(ctx context.Context, owner string) ([]*entity.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE owner_id = $1 ORDER BY created_at DESC;`

	rows, err := r.pool.Query(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) CountActive(ctx context.Context, owner string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countActiveQuery, owner).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Claim moves a pending job to STARTED, stamping the executor's lease.
// Exactly one concurrent claimant wins; the losers learn why.
func (r *JobRepository) Claim(ctx context.Context, id, lease uuid.UUID) error {
	const q = `
UPDATE jobs
SET status = 'STARTED', lease_token = $2, started_at = now()
WHERE id = $1 AND status = 'PENDING';
`
	tag, err := r.pool.Exec(ctx, q, id, lease)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missReason(ctx, id)
	}
	return nil
}

// SetRunning flips a claimed job between STARTED, PROCESSING and RETRY.
// The write is fenced by the lease issued at claim time.
func (r *JobRepository) SetRunning(ctx context.Context, id, lease uuid.UUID, to entity.State) error {
	if !to.Claimed() {
		return fmt.Errorf("state %s is not a running state", to)
	}

	const q = `
UPDATE jobs
SET status = $3
WHERE id = $1 AND lease_token = $2
  AND status IN ('STARTED', 'PROCESSING', 'RETRY') AND status <> $3;
`
	tag, err := r.pool.Exec(ctx, q, id, lease, string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		job, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if job.Status == to && job.Lease != nil && *job.Lease == lease {
			return nil
		}
		if job.Status.Terminal() {
			return entity.ErrTerminal
		}
		return entity.ErrAlreadyClaimed
	}
	return nil
}

// Succeed records the output and completes the job. The status guard plus
// the lease fence turn a late write after revocation or deletion into a
// reported no-op instead of a lost update.
func (r *JobRepository) Succeed(ctx context.Context, id, lease uuid.UUID, output entity.ArtifactRef) error {
	const q = `
UPDATE jobs
SET status = 'SUCCESS', output_name = $3, output_key = $4, completed_at = now()
WHERE id = $1 AND lease_token = $2 AND status IN ('STARTED', 'PROCESSING', 'RETRY');
`
	tag, err := r.pool.Exec(ctx, q, id, lease, output.Name, output.Key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missReason(ctx, id)
	}
	return nil
}

// Fail completes the job with an error summary and diagnostic detail,
// fenced the same way as Succeed.
func (r *JobRepository) Fail(ctx context.Context, id, lease uuid.UUID, summary, detail string) error {
	const q = `
UPDATE jobs
SET status = 'FAILURE', error_summary = $3, error_detail = $4, completed_at = now()
WHERE id = $1 AND lease_token = $2 AND status IN ('STARTED', 'PROCESSING', 'RETRY');
`
	tag, err := r.pool.Exec(ctx, q, id, lease, summary, detail)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missReason(ctx, id)
	}
	return nil
}

// Revoke cancels a job in any non-terminal state. A running executor
// observes it at its next fenced write and discards the attempt's result.
func (r *JobRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs
SET status = 'REVOKED', completed_at = now()
WHERE id = $1 AND status NOT IN ('SUCCESS', 'FAILURE', 'REVOKED');
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		job, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			return entity.ErrTerminal
		}
		return entity.ErrNotFound
	}
	return nil
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM jobs WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// ListExpired returns terminal jobs completed before cutoff, oldest
// first, for the retention sweeper.
func (r *JobRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Job, error) {
	const q = `SELECT ` + jobColumns + `
FROM jobs
WHERE status IN ('SUCCESS', 'FAILURE', 'REVOKED') AND completed_at < $1
ORDER BY completed_at
LIMIT $2;`

	rows, err := r.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// missReason explains a zero-row guarded update: the job is gone, already
// terminal, or held under a different lease.
func (r *JobRepository) missReason(ctx context.Context, id uuid.UUID) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return entity.ErrTerminal
	}
	return entity.ErrAlreadyClaimed
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job        entity.Job
		status     string
		inputName  *string
		inputKey   *string
		outputName *string
		outputKey  *string
	)
	if err := row.Scan(
		&job.ID,
		&job.Owner,
		&job.Voice,
		&status,
		&inputName,
		&inputKey,
		&outputName,
		&outputKey,
		&job.ErrorSummary,
		&job.ErrorDetail,
		&job.Lease,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}

	job.Status = entity.State(status)
	if inputName != nil && inputKey != nil {
		job.Input = &entity.ArtifactRef{Name: *inputName, Key: *inputKey}
	}
	if outputName != nil && outputKey != nil {
		job.Output = &entity.ArtifactRef{Name: *outputName, Key: *outputKey}
	}
	return &job, nil
}
