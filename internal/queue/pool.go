package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/postersnap/postersnap/internal/logging"
)

// Processor handles a single generation job.
type Processor interface {
	Process(ctx context.Context, posterID string) error
}

// Pool runs generation jobs on in-process workers. It stands in for the
// message queue in single-binary deployments: same fire-and-forget dispatch,
// no broker.
type Pool struct {
	workers int
	jobs    chan string
	logger  *logging.Logger

	mu        sync.Mutex
	started   bool
	processor Processor
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPool creates a worker pool with the given worker count and queue buffer.
func NewPool(workers, buffer int, logger *logging.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan string, buffer),
		logger:  logger,
	}
}

// Start launches the workers. The processor is passed here rather than at
// construction because the generator that processes jobs also dispatches
// into this pool.
func (p *Pool) Start(processor Processor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.processor = processor

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Infof("Worker pool started with %d workers", p.workers)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case posterID, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor.Process(ctx, posterID); err != nil {
				p.logger.WithPosterID(posterID).ErrorWithErr("Job processing failed", err)
			}
		}
	}
}

// Dispatch enqueues a job. It fails fast when the buffer is full instead of
// blocking the submit path.
func (p *Pool) Dispatch(_ context.Context, posterID string) error {
	select {
	case p.jobs <- posterID:
		return nil
	default:
		return fmt.Errorf("job queue full")
	}
}

// Stop cancels the workers and waits for in-flight jobs to settle.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}
