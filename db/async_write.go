package db

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultChannelCapacity is the default buffer size for queued audit writes.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout is the maximum time to wait for pending writes during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// AuditWrite is a queued audit-store write. Record holds either a
// GenerationRecord or a GenerationEvent.
type AuditWrite struct {
	// Record holds the write payload
	Record interface{}
	// QueuedAt is when the operation was queued
	QueuedAt time.Time
}

// WriteHandler processes queued audit writes.
// Implementations should handle their own error logging/recovery.
type WriteHandler func(op AuditWrite) error

// AsyncWriter provides non-blocking audit writes using a buffered
// channel and a background goroutine, so recording a finished
// generation never blocks the worker loop on disk I/O.
type AsyncWriter struct {
	writeChan chan AuditWrite
	handler   WriteHandler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	mu        sync.Mutex

	drainTimeout time.Duration
	dropped      int64
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	// ChannelCapacity is the buffer size for pending writes
	ChannelCapacity int
	// DrainTimeout is the maximum wait time during shutdown
	DrainTimeout time.Duration
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// NewAsyncWriter creates a new async writer with default configuration.
// The handler is called for each queued write.
func NewAsyncWriter(handler WriteHandler) *AsyncWriter {
	return NewAsyncWriterWithConfig(handler, DefaultAsyncWriterConfig())
}

// NewAsyncWriterWithConfig creates a new async writer with custom configuration.
func NewAsyncWriterWithConfig(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncWriter{
		writeChan:    make(chan AuditWrite, config.ChannelCapacity),
		handler:      handler,
		ctx:          ctx,
		cancel:       cancel,
		drainTimeout: config.DrainTimeout,
	}
}

// Start begins the background processing goroutine.
// Calling Start more than once is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true

	w.wg.Add(1)
	go w.processLoop()
}

func (w *AsyncWriter) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case op, ok := <-w.writeChan:
			if !ok {
				return
			}
			// Handler owns error reporting; a failed audit write must
			// not take down the writer
			_ = w.handler(op)
		case <-w.ctx.Done():
			// Drain whatever is already buffered before exiting
			for {
				select {
				case op := <-w.writeChan:
					_ = w.handler(op)
				default:
					return
				}
			}
		}
	}
}

// Queue adds a write to the pending channel without blocking.
// Returns an error if the writer is not started, already stopped, or
// the buffer is full (the write is dropped, not blocked on).
func (w *AsyncWriter) Queue(op AuditWrite) error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	if !started {
		return fmt.Errorf("async writer not started")
	}

	select {
	case <-w.ctx.Done():
		return fmt.Errorf("async writer is stopped")
	default:
	}

	select {
	case w.writeChan <- op:
		return nil
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		return fmt.Errorf("audit write buffer full, write dropped")
	}
}

// Pending returns the number of writes currently buffered.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Dropped returns the number of writes rejected because the buffer was full.
func (w *AsyncWriter) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Stop signals the processing goroutine to drain buffered writes and
// exit, waiting up to the configured drain timeout. Returns an error
// if the drain did not complete in time.
func (w *AsyncWriter) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.drainTimeout):
		return fmt.Errorf("async writer drain timed out after %s", w.drainTimeout)
	}
}

// NewAsyncRepository wires a Repository to a started AsyncWriter whose
// handler performs the actual inserts. The caller owns the writer's
// lifecycle and should Stop it during shutdown.
func NewAsyncRepository(database *Database, config AsyncWriterConfig) (*Repository, *AsyncWriter) {
	repo := &Repository{db: database}
	writer := NewAsyncWriterWithConfig(repo.handleAuditWrite, config)
	repo.asyncWriter = writer
	writer.Start()
	return repo, writer
}
