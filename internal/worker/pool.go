package worker

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// JobFunc adapts a plain function to the Job interface
type JobFunc func(ctx context.Context) Result

// Execute calls f
func (f JobFunc) Execute(ctx context.Context) Result {
	return f(ctx)
}

// Pool runs jobs on a fixed number of workers.
// Results are drained continuously by a collector goroutine, so Submit
// never stalls on unread results regardless of how many jobs are queued.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	collector  *ResultCollector
	collected  chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	submitMu  sync.RWMutex
	closed    bool
	started   bool
	closeOnce sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolContext(context.Background(), workers)
}

// NewPoolContext creates a pool whose workers stop taking jobs once parent is done
func NewPoolContext(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		collector:  NewResultCollector(),
		collected:  make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	go func() {
		defer close(p.collected)
		for result := range p.results {
			p.collector.Add(result)
		}
	}()
}

// worker processes jobs until the queue is closed or the pool is cancelled.
// A job that has started always runs to completion.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := execute(p.ctx, job)
			if result == nil {
				continue
			}
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// PanicResult is the result of a job that panicked
type PanicResult struct {
	Value any
}

// GetError reports the recovered panic value
func (r *PanicResult) GetError() error {
	return goerr.New("job panicked", goerr.V("panic", r.Value))
}

func execute(ctx context.Context, job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &PanicResult{Value: r}
		}
	}()
	return job.Execute(ctx)
}

// Submit queues a job. It returns false when the job was dropped because
// the pool was cancelled or already drained.
func (p *Pool) Submit(job Job) bool {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed || p.ctx.Err() != nil {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait stops accepting jobs, waits for queued jobs and returns all results
// in completion order
func (p *Pool) Wait() []Result {
	p.submitMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobQueue)
	}
	started := p.started
	p.submitMu.Unlock()

	p.wg.Wait()
	p.closeResults()
	if started {
		<-p.collected
	}

	return p.collector.Results()
}

// Shutdown cancels the pool; running jobs finish, queued jobs are abandoned
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

// Context returns the pool's context, cancelled on Shutdown or parent cancellation
func (p *Pool) Context() context.Context {
	return p.ctx
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// ResultCollector provides a safer way to collect results as they arrive
type ResultCollector struct {
	results []Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

// Add adds a result to the collector (thread-safe)
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns a snapshot of all collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}
