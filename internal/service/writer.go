package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
	"github.com/lii16com/arkilino/internal/repository"
	"github.com/lii16com/arkilino/pkg/errors"
)

// ErrWriterClosed is returned for mutations enqueued after Close.
var ErrWriterClosed = stderrors.New("writer closed")

const defaultQueueSize = 256

// Mutator changes the document in place. Returning an error aborts the unit:
// nothing is persisted and the error goes back to the caller.
type Mutator func(doc *domain.Document) error

type writeRequest struct {
	mutate Mutator
	done   chan error
}

// Writer applies every mutation of the document one at a time, in arrival
// order: load, mutate, persist. The next mutation starts only after the
// previous persist returned.
type Writer struct {
	store  repository.DocumentStore
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan writeRequest
	done   chan struct{}
}

// NewWriter starts the worker goroutine. Call Close to stop it.
func NewWriter(store repository.DocumentStore, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		store:  store,
		logger: logger,
		queue:  make(chan writeRequest, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue schedules m and returns a channel receiving its single outcome.
func (w *Writer) Enqueue(m Mutator) <-chan error {
	result := make(chan error, 1)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		result <- ErrWriterClosed
		return result
	}
	w.queue <- writeRequest{mutate: m, done: result}
	return result
}

// Apply enqueues m and waits for its outcome. ctx bounds the wait only; once
// queued the mutation runs regardless.
func (w *Writer) Apply(ctx context.Context, m Mutator) error {
	select {
	case err := <-w.Enqueue(m):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, drains what is queued and stops the worker.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for req := range w.queue {
		req.done <- w.apply(req.mutate)
	}
}

func (w *Writer) apply(m Mutator) (err error) {
	ctx := context.Background()

	doc, loadErr := w.store.Load(ctx)
	if loadErr != nil {
		// the stored document is still there; writing over it would drop it
		w.logger.Error("Failed to load document, write skipped", zap.Error(loadErr))
		return &errors.ErrStorage{Op: "load", Err: loadErr}
	}
	if doc == nil {
		doc = domain.EmptyDocument()
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Mutation panicked", zap.Any("panic", r))
			err = fmt.Errorf("mutation panicked: %v", r)
		}
	}()

	if err := m(doc); err != nil {
		return err
	}

	if err := w.store.Persist(ctx, doc); err != nil {
		w.logger.Error("Failed to persist document", zap.Error(err))
		return &errors.ErrStorage{Op: "persist", Err: err}
	}
	return nil
}
