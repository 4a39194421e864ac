package service

import (
	"context"
	"sync"
	"time"
)

// memoryQueue is the in-process counterpart of the redis queue, used with
// the memory store backend and in tests. Same lane semantics, claims poll
// instead of blocking on the server.
type memoryQueue struct {
	mu         sync.Mutex
	lanes      [3][]string // index = priority, high claimed first
	processing map[string]int
}

func NewMemoryQueue() Queue {
	return &memoryQueue{processing: make(map[string]int)}
}

func (q *memoryQueue) Enqueue(ctx context.Context, jobID string, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := clampPriority(priority)
	q.lanes[p] = append(q.lanes[p], jobID)
	return nil
}

func (q *memoryQueue) tryClaim() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := 2; p >= 0; p-- {
		if len(q.lanes[p]) == 0 {
			continue
		}
		id := q.lanes[p][0]
		q.lanes[p] = q.lanes[p][1:]
		q.processing[id] = p
		return id, true
	}
	return "", false
}

func (q *memoryQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if id, ok := q.tryClaim(); ok {
			return id, nil
		}
		if !forever && time.Now().After(deadline) {
			return "", ErrQueueEmpty
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *memoryQueue) Ack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, jobID)
	return nil
}

func (q *memoryQueue) Remove(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := range q.lanes {
		kept := q.lanes[p][:0]
		for _, id := range q.lanes[p] {
			if id != jobID {
				kept = append(kept, id)
			}
		}
		q.lanes[p] = kept
	}
	delete(q.processing, jobID)
	return nil
}

func (q *memoryQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var moved int64
	for id, p := range q.processing {
		q.lanes[p] = append(q.lanes[p], id)
		delete(q.processing, id)
		moved++
	}
	return moved, nil
}
