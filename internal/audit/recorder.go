package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
)

const storeTimeout = 5 * time.Second

// AsyncRecorder hands entries to background workers so the request path never
// waits on the database. Entries are dropped when the queue is full.
type AsyncRecorder struct {
	store   Recorder
	metrics *metrics.Metrics
	queue   chan Entry
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Recorder = (*AsyncRecorder)(nil)

func NewAsyncRecorder(store Recorder, m *metrics.Metrics, queueSize, workers int) *AsyncRecorder {
	return &AsyncRecorder{
		store:   store,
		metrics: m,
		queue:   make(chan Entry, max(queueSize, 1)),
		workers: max(workers, 1),
	}
}

func (a *AsyncRecorder) Start() {
	for i := range a.workers {
		a.wg.Add(1)
		go a.work(i)
	}
	slog.Info("Audit recorder started.", "workers", a.workers)
}

func (a *AsyncRecorder) work(id int) {
	defer a.wg.Done()

	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := a.store.Record(ctx, e); err != nil {
			slog.Error("Failed to store audit entry.", "worker", id, "entry", e, "reason", err)
		}
		cancel()
	}
}

// Record enqueues e. It never blocks.
func (a *AsyncRecorder) Record(_ context.Context, e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(e, "recorder closed")
		return nil
	}

	select {
	case a.queue <- e:
	default:
		a.drop(e, "queue full")
	}
	return nil
}

func (a *AsyncRecorder) drop(e Entry, reason string) {
	slog.Warn("Audit entry dropped.", "entry", e, "reason", reason)
	a.metrics.AuditDropped()
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// expire.
func (a *AsyncRecorder) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Audit queue drained.")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain audit queue: %w", ctx.Err())
	}
}
