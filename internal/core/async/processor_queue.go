package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoicebot/internal/core"
)

var ErrQueueClosed = errors.New("processor queue is shutting down")

// InvoiceProcessor is satisfied by *core.Processor.
type InvoiceProcessor interface {
	ProcessInvoice(ctx context.Context, content []byte, filename string) core.Result
}

// Job is one file waiting to be processed. OnDone runs on the worker
// goroutine after processing; err is set only when the file could not be read.
type Job struct {
	Path   string
	OnDone func(job Job, res core.Result, err error)
}

type ProcessorQueue struct {
	proc    InvoiceProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// quit wakes producers blocked on a full queue; senders tracks them so
	// ch is closed only once none can still send.
	quit    chan struct{}
	senders sync.WaitGroup

	mu     sync.RWMutex
	closed bool
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

func NewProcessorQueue(proc InvoiceProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		quit:    make(chan struct{}),
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
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	content, err := os.ReadFile(job.Path)
	if err != nil {
		q.logger.Error("queue.job.read_failed", "worker_id", workerID, "path", job.Path, "error", err)
		if job.OnDone != nil {
			job.OnDone(job, core.Result{Filename: filepath.Base(job.Path)}, fmt.Errorf("read %s: %w", job.Path, err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	res := q.proc.ProcessInvoice(ctx, content, filepath.Base(job.Path))
	cancel()

	if res.Error != nil {
		q.logger.Warn("queue.job.incomplete",
			"worker_id", workerID, "path", job.Path, "run_id", res.RunID,
			"stage", res.Error.Stage, "error", res.Error.Message)
	} else {
		q.logger.Info("queue.job.ok", "worker_id", workerID, "path", job.Path, "run_id", res.RunID)
	}
	if job.OnDone != nil {
		job.OnDone(job, res, nil)
	}
}

// Enqueue blocks while the queue is full, until ctx is done or Shutdown
// starts. The lock is not held while blocked.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.RUnlock()
	defer q.senders.Done()

	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "path", job.Path)
		return nil
	default:
	}
	q.logger.Warn("queue.full.backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-q.quit:
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for in-flight jobs or ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
