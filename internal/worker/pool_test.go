package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type valueResult struct {
	value int
	err   error
}

func (r *valueResult) GetError() error {
	return r.err
}

// square returns a job yielding n*n, counting executions in calls
func square(n int, calls *atomic.Int32) Job {
	return JobFunc(func(ctx context.Context) Result {
		if calls != nil {
			calls.Add(1)
		}
		return &valueResult{value: n * n}
	})
}

// sumResults adds up every valueResult
func sumResults(results []Result) int {
	total := 0
	for _, r := range results {
		if v, ok := r.(*valueResult); ok {
			total += v.value
		}
	}
	return total
}

func TestNewPool_WorkerCount(t *testing.T) {
	for in, want := range map[int]int{5: 5, 1: 1, 0: 1, -3: 1} {
		if got := NewPool(in).workers; got != want {
			t.Errorf("NewPool(%d).workers = %d, want %d", in, got, want)
		}
	}
}

func TestPool_RunsEveryJob(t *testing.T) {
	pool := NewPool(3)
	pool.Start()

	var calls atomic.Int32
	want := 0
	for i := 1; i <= 20; i++ {
		if !pool.Submit(square(i, &calls)) {
			t.Fatalf("job %d dropped", i)
		}
		want += i * i
	}

	results := pool.Wait()
	if len(results) != 20 || calls.Load() != 20 {
		t.Fatalf("results = %d, calls = %d, want 20", len(results), calls.Load())
	}
	if got := sumResults(results); got != want {
		t.Errorf("sum = %d, want %d", got, want)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 4
	pool := NewPool(workers)
	pool.Start()

	var running, peak atomic.Int32
	for i := 0; i < 40; i++ {
		pool.Submit(JobFunc(func(ctx context.Context) Result {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return &valueResult{}
		}))
	}
	pool.Wait()

	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency %d exceeded %d workers", got, workers)
	}
}

func TestPool_ErrorsAreReturnedAsResults(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	boom := errors.New("search failed")
	pool.Submit(JobFunc(func(ctx context.Context) Result { return &valueResult{err: boom} }))
	pool.Submit(square(3, nil))
	pool.Submit(JobFunc(func(ctx context.Context) Result { return nil })) // dropped

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	failed := 0
	for _, r := range results {
		if errors.Is(r.GetError(), boom) {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed result, got %d", failed)
	}
}

func TestPool_PanickingJobBecomesResult(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	pool.Submit(JobFunc(func(ctx context.Context) Result { panic("parser exploded") }))
	pool.Submit(square(4, nil))

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if got := sumResults(results); got != 16 {
		t.Errorf("sum = %d, want 16: worker did not survive the panic", got)
	}
	panicked := 0
	for _, r := range results {
		if p, ok := r.(*PanicResult); ok {
			panicked++
			if p.Value != "parser exploded" {
				t.Errorf("panic value = %v", p.Value)
			}
			if p.GetError() == nil {
				t.Error("PanicResult.GetError() = nil")
			}
		}
	}
	if panicked != 1 {
		t.Errorf("expected 1 panic result, got %d", panicked)
	}
}

func TestResultCollector_Snapshot(t *testing.T) {
	c := NewResultCollector()
	c.Add(&valueResult{value: 1})
	snap := c.Results()
	c.Add(&valueResult{value: 2})

	if len(snap) != 1 || len(c.Results()) != 2 {
		t.Errorf("snapshot = %d, live = %d", len(snap), len(c.Results()))
	}
}

func TestPool_ShutdownLetsRunningJobFinish(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	started := make(chan struct{})
	var finished atomic.Bool
	pool.Submit(JobFunc(func(ctx context.Context) Result {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return &valueResult{}
	}))
	<-started

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return")
	}
	if !finished.Load() {
		t.Error("running job was interrupted by Shutdown")
	}
	if pool.Context().Err() == nil {
		t.Error("pool context should be cancelled after Shutdown")
	}
	if pool.Submit(square(1, nil)) {
		t.Error("Submit after Shutdown should drop the job")
	}
}

func TestPool_ManyJobsDoNotStall(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	// Far more jobs than the queue and result buffers hold
	var calls atomic.Int32
	const count = 200
	for i := 0; i < count; i++ {
		if !pool.Submit(square(i, &calls)) {
			t.Fatalf("job %d was dropped", i)
		}
	}

	done := make(chan []Result)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		if len(results) != count {
			t.Errorf("expected %d results, got %d", count, len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool stalled with many queued jobs")
	}
}

func TestPool_ParentCancelDropsSubmissions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPoolContext(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	pool.Submit(JobFunc(func(ctx context.Context) Result {
		close(started)
		<-release
		return &valueResult{}
	}))
	<-started

	cancel()

	if pool.Submit(square(2, nil)) {
		t.Error("expected submission after cancel to be dropped")
	}

	close(release)
	results := pool.Wait()

	// The running job finishes but its result may be discarded on cancel
	if len(results) > 1 {
		t.Errorf("expected at most 1 result, got %d", len(results))
	}
}

func TestPool_SubmitAfterWait(t *testing.T) {
	pool := NewPool(1)
	pool.Start()
	pool.Wait()

	if pool.Submit(square(2, nil)) {
		t.Error("expected submission after Wait to be dropped")
	}
}

func TestPool_WaitWithoutStart(t *testing.T) {
	pool := NewPool(1)
	if got := pool.Wait(); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}
