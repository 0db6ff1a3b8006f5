package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipts-sync/internal/cache"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("refresh queue is shutting down")

// Refresher refetches one view; *cache.Store satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, key cache.ViewKey) error
}

type RefreshQueue struct {
	refresher Refresher
	logger    *slog.Logger
	workers   int
	timeout   time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
}

var _ Queue = (*RefreshQueue)(nil)

type Option func(*RefreshQueue)

func WithWorkers(n int) Option {
	return func(q *RefreshQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *RefreshQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithRefreshTimeout(d time.Duration) Option {
	return func(q *RefreshQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewRefreshQueue(refresher Refresher, logger *slog.Logger, opts ...Option) *RefreshQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RefreshQueue{
		refresher: refresher,
		logger:    logger,
		workers:   2,
		timeout:   30 * time.Second,
		ch:        make(chan Job, 128),
		pending:   make(map[string]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RefreshQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("refresh.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("refresh.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *RefreshQueue) run(workerID int, job Job) {
	key := job.View.String()
	q.mu.Lock()
	delete(q.pending, key)
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(common.WithRequestID(context.Background(), job.TraceID), q.timeout)
	defer cancel()

	start := time.Now()
	if err := q.refresher.Refresh(ctx, job.View); err != nil {
		q.logger.Error("refresh.failed", "worker_id", workerID, "view", key, "trace_id", job.TraceID, "error", err)
		return
	}
	q.logger.Info("refresh.ok",
		"worker_id", workerID,
		"view", key,
		"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue schedules a refresh. A view already waiting in the queue is not
// queued twice unless Force is set. When the buffer is full Enqueue blocks
// until there is room or ctx is done.
func (q *RefreshQueue) Enqueue(ctx context.Context, job Job) error {
	key := job.View.String()
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("refresh.enqueue.rejected", "view", key, "reason", "shutting down")
		return ErrClosed
	}
	if _, ok := q.pending[key]; ok && !job.Force {
		q.mu.Unlock()
		q.logger.Debug("refresh.enqueue.deduplicated", "view", key)
		return nil
	}
	q.pending[key] = struct{}{}

	select {
	case q.ch <- job:
		q.mu.Unlock()
		q.logger.Debug("refresh.enqueued", "view", key, "force", job.Force)
		return nil
	default:
	}
	q.mu.Unlock()

	q.logger.Warn("refresh.queue.full", "view", key)
	return q.blockingSend(ctx, job)
}

// blockingSend waits for room without holding q.mu, so workers and Shutdown
// can make progress.
func (q *RefreshQueue) blockingSend(ctx context.Context, job Job) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.mu.Lock()
		if q.closed {
			delete(q.pending, job.View.String())
			q.mu.Unlock()
			return ErrClosed
		}
		select {
		case q.ch <- job:
			q.mu.Unlock()
			return nil
		default:
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.pending, job.View.String())
			q.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// EnqueueAll schedules every key, stopping at the first error.
func (q *RefreshQueue) EnqueueAll(ctx context.Context, keys []cache.ViewKey) error {
	traceID := common.RequestIDFromContext(ctx)
	for _, k := range keys {
		if err := q.Enqueue(ctx, Job{View: k, TraceID: traceID}); err != nil {
			return err
		}
	}
	return nil
}

func (q *RefreshQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("refresh.shutdown.interrupted")
	case <-done:
		q.logger.Info("refresh.shutdown.drained")
	}
}
