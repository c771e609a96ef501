// Package queue buffers finalized interactions and batch-writes them to the
// store, keeping persistence off the request path.
package queue

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/capturellm/captureproxy/internal/store"
)

const (
	defaultCapacity     = 1000
	defaultBatchSize    = 10
	defaultBatchTimeout = 5 * time.Second
)

// Writer owns the buffered channel between request handlers and the store.
// One Run loop drains it; Enqueue never blocks a handler.
type Writer struct {
	store        *store.Store
	ch           chan store.Interaction
	batchSize    int
	batchTimeout time.Duration
	done         chan struct{}
}

// Option adjusts Writer tuning, mainly for tests.
type Option func(*Writer)

func WithCapacity(n int) Option {
	return func(w *Writer) { w.ch = make(chan store.Interaction, n) }
}

func WithBatchSize(n int) Option {
	return func(w *Writer) { w.batchSize = n }
}

func WithBatchTimeout(d time.Duration) Option {
	return func(w *Writer) { w.batchTimeout = d }
}

// NewWriter builds a Writer over s with default tuning: capacity 1000,
// batches of 10, 5 s flush timeout.
func NewWriter(s *store.Store, opts ...Option) *Writer {
	w := &Writer{
		store:        s,
		ch:           make(chan store.Interaction, defaultCapacity),
		batchSize:    defaultBatchSize,
		batchTimeout: defaultBatchTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue hands one interaction to the writer without blocking. When the
// buffer is full the row is dropped and the drop logged; the proxy keeps
// serving.
func (w *Writer) Enqueue(row store.Interaction) bool {
	select {
	case w.ch <- row:
		return true
	default:
		log.WithFields(log.Fields{
			"id":    row.ID,
			"model": row.Model,
		}).Warn("persistence queue full, dropping interaction")
		return false
	}
}

// Run consumes the queue until ctx is cancelled, flushing a batch when it
// reaches the batch size or when the flush timeout fires. On cancellation it
// drains everything still buffered before returning.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	batch := make([]store.Interaction, 0, w.batchSize)
	timer := time.NewTimer(w.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case row := <-w.ch:
			batch = append(batch, row)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
				resetTimer(timer, w.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
			timer.Reset(w.batchTimeout)

		case <-ctx.Done():
			for {
				select {
				case row := <-w.ch:
					batch = append(batch, row)
				default:
					if len(batch) > 0 {
						w.flush(batch)
					}
					log.Info("persistence writer drained")
					return
				}
			}
		}
	}
}

// Done is closed once Run has drained and returned.
func (w *Writer) Done() <-chan struct{} { return w.done }

// Pending reports how many rows are buffered, for the stats endpoint.
func (w *Writer) Pending() int { return len(w.ch) }

func (w *Writer) flush(batch []store.Interaction) {
	n, err := w.store.InsertBatch(batch)
	if err != nil {
		log.WithError(err).WithField("batch", len(batch)).Error("batch insert failed")
		return
	}
	log.WithFields(log.Fields{
		"batch":    len(batch),
		"inserted": n,
	}).Debug("flushed interaction batch")
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
