package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProcessorQueue runs jobs on a fixed set of workers. A document id is held
// from Enqueue until its attempt finishes, so at most one attempt per
// document is ever queued or running.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// senders hold mu for reading; Shutdown closes ch under the write lock
	// after closing done, which wakes every blocked sender
	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	stopOnce sync.Once

	pmu      sync.Mutex
	inflight map[string]struct{}
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:     proc,
		logger:   logger,
		workers:  4,
		timeout:  5 * time.Minute,
		ch:       make(chan Job, 256),
		done:     make(chan struct{}),
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *ProcessorQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("queue.worker.start", "worker_id", workerID)

	for job := range q.ch {
		q.run(workerID, job)
	}

	q.logger.Debug("queue.worker.stop", "worker_id", workerID)
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	defer q.release(job.DocumentID)

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	err := q.proc.ProcessDocument(ctx, job.DocumentID)
	attrs := []any{
		"worker_id", workerID,
		"document_id", job.DocumentID,
		"trace_id", job.TraceID,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		q.logger.Error("queue.job.failed", append(attrs, "error", err)...)
		return
	}
	q.logger.Info("queue.job.ok", attrs...)
}

// Enqueue schedules job. It blocks while the buffer is full until ctx ends
// or the queue shuts down.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "document_id", job.DocumentID)
		return ErrQueueClosed
	}
	if !q.claim(job.DocumentID) {
		q.logger.Info("queue.enqueue.duplicate", "document_id", job.DocumentID)
		return ErrAlreadyQueued
	}

	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue.ok", "document_id", job.DocumentID, "trace_id", job.TraceID)
		return nil
	default:
	}

	q.logger.Warn("queue.enqueue.backpressure", "document_id", job.DocumentID)
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue.ok", "document_id", job.DocumentID, "trace_id", job.TraceID)
		return nil
	case <-ctx.Done():
		q.release(job.DocumentID)
		return ctx.Err()
	case <-q.done:
		q.release(job.DocumentID)
		q.logger.Warn("queue.enqueue.closed", "document_id", job.DocumentID)
		return ErrQueueClosed
	}
}

// Busy reports whether documentID is queued or running.
func (q *ProcessorQueue) Busy(documentID string) bool {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	_, ok := q.inflight[documentID]
	return ok
}

func (q *ProcessorQueue) claim(id string) bool {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	if _, ok := q.inflight[id]; ok {
		return false
	}
	q.inflight[id] = struct{}{}
	return true
}

func (q *ProcessorQueue) release(id string) {
	q.pmu.Lock()
	delete(q.inflight, id)
	q.pmu.Unlock()
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
// Senders blocked on a full buffer are released with ErrQueueClosed.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() { defer close(drained); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-drained:
		q.logger.Info("queue.shutdown.drained")
	}
}
