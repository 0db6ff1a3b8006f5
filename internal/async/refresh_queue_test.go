package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-sync/internal/cache"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

type recordingRefresher struct {
	mu    sync.Mutex
	seen  []cache.ViewKey
	gate  chan struct{}
	fails map[string]bool
}

func (r *recordingRefresher) Refresh(_ context.Context, key cache.ViewKey) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, key)
	if r.fails[key.String()] {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshQueue_RefreshesAndDrains(t *testing.T) {
	r := &recordingRefresher{fails: map[string]bool{}}
	q := NewRefreshQueue(r, discard(), WithWorkers(2), WithQueueSize(4))

	keys := []cache.ViewKey{
		cache.ListKey(entity.ReceiptFilters{}),
		cache.ListKey(entity.ReceiptFilters{StoreName: "Deli"}),
		cache.ReceiptKey(uuid.New()),
	}
	r.fails[keys[1].String()] = true
	require.NoError(t, q.EnqueueAll(context.Background(), keys))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, 3, r.count())
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{View: keys[0]}), ErrClosed)
}

func TestRefreshQueue_DeduplicatesPendingViews(t *testing.T) {
	r := &recordingRefresher{gate: make(chan struct{})}
	q := NewRefreshQueue(r, discard(), WithWorkers(1), WithQueueSize(8))

	blocker := cache.ReceiptKey(uuid.New())
	require.NoError(t, q.Enqueue(context.Background(), Job{View: blocker}))

	key := cache.ListKey(entity.ReceiptFilters{})
	for range 3 {
		require.NoError(t, q.Enqueue(context.Background(), Job{View: key}))
	}
	require.NoError(t, q.Enqueue(context.Background(), Job{View: key, Force: true}))

	close(r.gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	// blocker, one deduplicated list refresh, one forced
	assert.Equal(t, 3, r.count())
}

func TestRefreshQueue_FullQueueHonoursContext(t *testing.T) {
	r := &recordingRefresher{gate: make(chan struct{})}
	q := NewRefreshQueue(r, discard(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(r.gate)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), Job{View: cache.ReceiptKey(uuid.New())}))
	// the worker may or may not have taken the first job; fill until blocked
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{View: cache.ReceiptKey(uuid.New())})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
