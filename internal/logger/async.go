package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Closer flushes buffered log records and stops background work.
type Closer interface {
	Close()
}

// nopCloser is returned in synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// logTask pairs a record with the handler it was emitted through, so
// attributes added via With survive the trip through the shared queue.
type logTask struct {
	rec     slog.Record
	handler slog.Handler
}

// AsyncHandler keeps log emission off the hot paths (event fan-out, command
// dispatch) by queueing records to a single background drainer. One drainer
// preserves emission order. A full queue drops the record instead of
// blocking the caller; drops are counted.
type AsyncHandler struct {
	inner   slog.Handler
	queue   chan logTask
	done    chan struct{}
	dropped *atomic.Int64
}

// NewAsyncHandler wraps inner with a queue of the given capacity and starts
// the drainer.
func NewAsyncHandler(inner slog.Handler, capacity int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		queue:   make(chan logTask, capacity),
		done:    make(chan struct{}),
		dropped: &atomic.Int64{},
	}
	go h.drain()
	return h
}

func (h *AsyncHandler) drain() {
	defer close(h.done)
	for t := range h.queue {
		_ = t.handler.Handle(context.Background(), t.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it if the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.queue <- logTask{rec: rec, handler: h.inner}:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler that shares this handler's queue and drainer.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithAttrs(attrs),
		queue:   h.queue,
		done:    h.done,
		dropped: h.dropped,
	}
}

// WithGroup returns a handler that shares this handler's queue and drainer.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithGroup(name),
		queue:   h.queue,
		done:    h.done,
		dropped: h.dropped,
	}
}

// Dropped returns how many records were discarded on a full queue.
func (h *AsyncHandler) Dropped() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and blocks until the queue is drained.
func (h *AsyncHandler) Close() {
	close(h.queue)
	<-h.done
}
