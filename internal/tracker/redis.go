package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ppt2video/internal/entity"
)

// Redis stores one hash per job under task:{id}:progress. Every write
// refreshes the TTL so abandoned snapshots expire on their own.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func snapshotKey(jobID string) string {
	return "task:" + jobID + ":progress"
}

func (t *Redis) Set(ctx context.Context, jobID string, snap entity.Snapshot) error {
	key := snapshotKey(jobID)

	pipe := t.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"stage":      snap.Stage,
		"progress":   snap.Progress,
		"detail":     snap.Detail,
		"updated_at": snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if t.ttl > 0 {
		pipe.Expire(ctx, key, t.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tracker set %s: %w", jobID, err)
	}
	return nil
}

func (t *Redis) Get(ctx context.Context, jobID string) (*entity.Snapshot, error) {
	fields, err := t.rdb.HGetAll(ctx, snapshotKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("tracker get %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	snap := &entity.Snapshot{
		Stage:  fields["stage"],
		Detail: fields["detail"],
	}
	if v := fields["progress"]; v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			snap.Progress = p
		}
	}
	if v := fields["updated_at"]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			snap.UpdatedAt = ts
		}
	}
	return snap, nil
}

func (t *Redis) Clear(ctx context.Context, jobID string) error {
	if err := t.rdb.Del(ctx, snapshotKey(jobID)).Err(); err != nil {
		return fmt.Errorf("tracker clear %s: %w", jobID, err)
	}
	return nil
}
