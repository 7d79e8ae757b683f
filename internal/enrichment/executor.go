package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/telemetry"
)

// Runner processes one document.
type Runner interface {
	Run(ctx context.Context, documentID string) error
}

type job struct {
	documentID string
	requestID  string
}

// Executor runs enrichment in-process on a fixed pool of workers fed by a
// bounded queue. Dispatch never blocks the caller.
type Executor struct {
	runner  Runner
	workers int
	timeout time.Duration

	ch   chan job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Executor)

func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.ch = make(chan job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExecutor starts the worker pool.
func NewExecutor(runner Runner, opts ...Option) *Executor {
	e := &Executor{
		runner:  runner,
		workers: 4,
		timeout: 10 * time.Minute,
		ch:      make(chan job, 100),
	}
	for _, o := range opts {
		o(e)
	}
	e.start()
	return e
}

func (e *Executor) start() {
	e.once.Do(func() {
		for i := 0; i < e.workers; i++ {
			e.wg.Add(1)
			go func(workerID int) {
				defer e.wg.Done()
				for j := range e.ch {
					e.process(workerID, j)
				}
			}(i + 1)
		}
	})
}

func (e *Executor) process(workerID int, j job) {
	fields := map[string]any{
		"worker_id":   workerID,
		"document_id": j.documentID,
		"request_id":  j.requestID,
	}
	defer func() {
		if rec := recover(); rec != nil {
			fields["panic"] = fmt.Sprint(rec)
			telemetry.Error("enrichment.run.panic", fields)
		}
	}()

	ctx := telemetry.WithRequestID(context.Background(), j.requestID)
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.runner.Run(ctx, j.documentID); err != nil {
		fields["err"] = err
		telemetry.Error("enrichment.run.failed", fields)
	}
}

// Dispatch queues a document for enrichment. It returns ErrQueueFull when the
// queue has no room and ErrExecutorClosed after Shutdown.
func (e *Executor) Dispatch(ctx context.Context, documentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		metrics.IncJobsDropped()
		return ErrExecutorClosed
	}
	select {
	case e.ch <- job{documentID: documentID, requestID: telemetry.RequestIDFromContext(ctx)}:
		metrics.IncJobsDispatched()
		return nil
	default:
		metrics.IncJobsDropped()
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued runs to finish or ctx to end.
func (e *Executor) Shutdown(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.ch)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); e.wg.Wait() }()

	select {
	case <-ctx.Done():
		telemetry.Warn("enrichment.executor.shutdown_interrupted", nil)
	case <-done:
		telemetry.Info("enrichment.executor.drained", nil)
	}
}
