package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wordclash-backend/internal/game"
	"wordclash-backend/internal/logging"
)

// writeTimeout bounds a single persistence write so a wedged database
// cannot pin a worker forever.
const writeTimeout = 10 * time.Second

// writeTask is one queued persistence write.
type writeTask struct {
	kind string
	run  func(ctx context.Context) error
}

// Writer decouples room executors from the database: writes are queued and
// drained by a small worker pool, so a slow or failing store never blocks
// gameplay. When the queue is full, writes are dropped and logged rather
// than applying backpressure.
type Writer struct {
	store  Store
	logger *logging.Logger

	mu     sync.Mutex
	closed bool

	queue   chan writeTask
	workers errgroup.Group
	done    chan struct{}
}

// NewWriter starts a write pipeline over store with the given queue size
// and worker count.
func NewWriter(store Store, queueSize, workers int) *Writer {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	w := &Writer{
		store:  store,
		logger: logging.CreateLogger("store.writer"),
		queue:  make(chan writeTask, queueSize),
		done:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		w.workers.Go(w.drain)
	}
	go func() {
		_ = w.workers.Wait()
		close(w.done)
	}()
	return w
}

// drain consumes queued tasks until the queue is closed. Errors are logged
// and reported, never propagated: a lost record must not stop the pool.
func (w *Writer) drain() error {
	for task := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := task.run(ctx); err != nil {
			w.logger.Error("persistence write failed", "kind", task.kind, "error", err)
			logging.CaptureError(ctx, err, map[string]string{"component": "store.writer", "kind": task.kind}, nil)
		}
		cancel()
	}
	return nil
}

// SaveGameRecord queues a finished game for persistence. Fire-and-forget.
func (w *Writer) SaveGameRecord(record game.GameRecord) {
	w.enqueue(writeTask{
		kind: "game_record",
		run: func(ctx context.Context) error {
			return w.store.SaveGameRecord(ctx, record)
		},
	})
}

// SaveDailyCompletion queues a daily-challenge completion. Fire-and-forget.
func (w *Writer) SaveDailyCompletion(completion game.DailyCompletion) {
	w.enqueue(writeTask{
		kind: "daily_completion",
		run: func(ctx context.Context) error {
			return w.store.SaveDailyCompletion(ctx, completion)
		},
	})
}

// HasCompletedDaily is a synchronous read-through to the store. Errors
// propagate to the caller, which must treat them as "cannot verify" rather
// than "not completed".
func (w *Writer) HasCompletedDaily(ctx context.Context, email string, dailyNumber int) (bool, error) {
	return w.store.HasCompletedDaily(ctx, email, dailyNumber)
}

func (w *Writer) enqueue(task writeTask) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("write after close dropped", "kind", task.kind)
		return
	}
	select {
	case w.queue <- task:
	default:
		w.logger.Error("write queue full, dropping", "kind", task.kind)
	}
}

// Close stops accepting writes and waits for the workers to flush the
// queue, bounded by ctx.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
