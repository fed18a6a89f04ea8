package job

import (
	"context"
	"sync"
)

// Pool manages the goroutines that execute generation jobs.
type Pool struct {
	queue   chan func()
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a pool with a fixed number of workers and a bounded
// job queue.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:   make(chan func(), queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case run := <-p.queue:
			run()
		case <-p.ctx.Done():
			// Drain what is already queued; each run observes its
			// canceled context and completes immediately, so no
			// handle is left forever pending.
			for {
				select {
				case run := <-p.queue:
					run()
				default:
					return
				}
			}
		}
	}
}

// submit hands run to a pool worker. When the queue is full it falls
// back to a dedicated goroutine so callers in the tick loop never block.
func (p *Pool) submit(run func()) {
	select {
	case p.queue <- run:
	default:
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			run()
		}()
	}
}

// QueueLen returns the current number of queued jobs.
func (p *Pool) QueueLen() int {
	return len(p.queue)
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Shutdown cancels outstanding work and waits for the workers to exit.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
