package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueEmpty is returned by ClaimBlocking when the wait window expires
// without a claimable job.
var ErrQueueEmpty = errors.New("queue empty")

type Queue interface {
	Enqueue(ctx context.Context, jobID string, priority int) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	Remove(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, maxPerLane int64) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// redisPriorityQueue implements a reliable queue with priorities using Redis lists.
// Lanes: high/normal/low; vip submissions land in high.
// Claim: BRPOPLPUSH lane.queue -> lane.processing
// Ack:   LREM from correct processing list (stored in processingMapKey hash)
type redisPriorityQueue struct {
	rdb              *redis.Client
	processingMapKey string

	low    Lane
	normal Lane
	high   Lane
}

func NewRedisPriorityQueue(rdb *redis.Client, processingMapKey string, low, normal, high Lane) Queue {
	return &redisPriorityQueue{
		rdb:              rdb,
		processingMapKey: processingMapKey,
		low:              low,
		normal:           normal,
		high:             high,
	}
}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 2 {
		return 2
	}
	return p
}

func (q *redisPriorityQueue) laneByPriority(p int) Lane {
	switch clampPriority(p) {
	case 2:
		return q.high
	case 1:
		return q.normal
	default:
		return q.low
	}
}

func (q *redisPriorityQueue) lanes() []Lane {
	return []Lane{q.high, q.normal, q.low}
}

func (q *redisPriorityQueue) Enqueue(ctx context.Context, jobID string, priority int) error {
	ln := q.laneByPriority(priority)
	return q.rdb.LPush(ctx, ln.QueueKey, jobID).Err()
}

// ClaimBlocking tries high->normal->low with small blocking slots,
// so it is "mostly blocking" but still respects priority.
func (q *redisPriorityQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	// if timeout <= 0, loop forever (worker daemon mode)
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if !forever && time.Now().After(deadline) {
			return "", ErrQueueEmpty
		}

		for _, ln := range q.lanes() {
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return "", ErrQueueEmpty
				}
				if remain < wait {
					wait = remain
				}
			}

			id, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if err == nil {
				// remember which processing list holds this id (for Ack)
				if hErr := q.rdb.HSet(ctx, q.processingMapKey, id, ln.ProcessingKey).Err(); hErr != nil {
					// can't safely ack later => return error
					return "", hErr
				}
				return id, nil
			}

			if errors.Is(err, redis.Nil) {
				// nothing in this lane during the wait slot
				continue
			}
			return "", err
		}
	}
}

func (q *redisPriorityQueue) Ack(ctx context.Context, jobID string) error {
	processingKey, err := q.rdb.HGet(ctx, q.processingMapKey, jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// mapping is missing (old entries, manual edits) — sweep all
			// processing lists instead
			for _, ln := range q.lanes() {
				_ = q.rdb.LRem(ctx, ln.ProcessingKey, 1, jobID).Err()
			}
			return nil
		}
		return err
	}

	if err := q.rdb.LRem(ctx, processingKey, 1, jobID).Err(); err != nil {
		return err
	}
	_ = q.rdb.HDel(ctx, q.processingMapKey, jobID).Err()
	return nil
}

// Remove withdraws an id from every lane, queued or in-flight. Used to
// undo a failed submission and when a job is deleted or revoked before
// any executor claims it.
func (q *redisPriorityQueue) Remove(ctx context.Context, jobID string) error {
	for _, ln := range q.lanes() {
		if err := q.rdb.LRem(ctx, ln.QueueKey, 0, jobID).Err(); err != nil {
			return err
		}
		if err := q.rdb.LRem(ctx, ln.ProcessingKey, 0, jobID).Err(); err != nil {
			return err
		}
	}
	return q.rdb.HDel(ctx, q.processingMapKey, jobID).Err()
}

// RequeueStale moves items from processing back to queue per lane.
// It's a simple "reaper": at-least-once delivery. A requeued id whose
// record is already claimed or terminal is dropped by the next claimant,
// so duplicates are harmless.
func (q *redisPriorityQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	var moved int64

	for _, ln := range q.lanes() {
		for i := int64(0); i < maxPerLane; i++ {
			id, err := q.rdb.RPopLPush(ctx, ln.ProcessingKey, ln.QueueKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return moved, err
			}
			if id != "" {
				moved++
				_ = q.rdb.HDel(ctx, q.processingMapKey, id).Err()
			}
		}
	}

	return moved, nil
}
