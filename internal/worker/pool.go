package worker

import (
	"context"
	"log"
	"time"

	"ppt2video/internal/service"
)

type Pool struct {
	queue      service.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
}

func NewPool(queue service.Queue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
	}
}

func (p *Pool) Run(ctx context.Context) {
	log.Printf("[worker] pool started workers=%d", p.workers)

	jobCh := make(chan string)

	// N executors draining the channel
	for i := 0; i < p.workers; i++ {
		go func(n int) {
			for jobID := range jobCh {
				if err := p.processor.Process(ctx, jobID); err != nil {
					log.Printf("[worker-%d] job_id=%s process error=%v", n, jobID, err)
				}

				// Ack regardless: the record already carries the terminal
				// state (or the claim was lost). If Process died before
				// any record write, the reaper requeues the id.
				if ackErr := p.queue.Ack(ctx, jobID); ackErr != nil {
					log.Printf("[worker-%d] job_id=%s ack error=%v", n, jobID, ackErr)
				}
			}
		}(i + 1)
	}

	// Listener: atomically claim from queue -> processing
	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			log.Printf("[worker] pool stopped")
			return
		default:
			jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// empty queue / ctx cancel, not fatal
				continue
			}
			select {
			case jobCh <- jobID:
			case <-ctx.Done():
				close(jobCh)
				return
			}
		}
	}
}
