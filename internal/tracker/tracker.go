// Package tracker keeps the live stage/progress/detail of running jobs.
// It is ephemeral by design: losing it degrades status detail for a while
// but never loses lifecycle state, which belongs to the record store.
package tracker

import (
	"context"

	"ppt2video/internal/entity"
)

type Tracker interface {
	Set(ctx context.Context, jobID string, snap entity.Snapshot) error
	// Get returns (nil, nil) when no snapshot exists for the job.
	Get(ctx context.Context, jobID string) (*entity.Snapshot, error)
	Clear(ctx context.Context, jobID string) error
}
