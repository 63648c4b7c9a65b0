// Package audit persists the activity log and the API tracking trail off the
// request path.
//
// Each trail is a Sink: handlers hand entries to Record, which never blocks,
// and a single background writer appends them to the store in arrival order.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
)

// ErrNotRunning is returned by Flush when the writer has not been started.
var ErrNotRunning = errors.New("audit sink is not running")

// Config configures a sink.
type Config struct {
	// BufferSize is the number of entries that may wait for the writer.
	// Default: 1024.
	BufferSize int

	// WriteTimeout bounds a single append, retries included.
	// Default: 5 seconds.
	WriteTimeout time.Duration

	// RetryAttempts is the total number of tries per entry.
	// Default: 3.
	RetryAttempts int

	// RetryDelay is the delay before the first retry. Later retries back off
	// exponentially.
	// Default: 50 milliseconds.
	RetryDelay time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:    1024,
		WriteTimeout:  5 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	return c
}

// WriteFunc appends one entry to durable storage.
type WriteFunc[T any] func(ctx context.Context, entry *T) error

// item is either an entry or a flush barrier.
type item[T any] struct {
	entry   T
	barrier chan struct{}
}

// Sink buffers entries and writes them from one goroutine.
type Sink[T any] struct {
	name   string
	write  WriteFunc[T]
	config Config
	logger *slog.Logger

	queue   chan item[T]
	running atomic.Bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	// Lifecycle management. Record and Flush hold the read lock while they
	// enqueue, so Stop cannot drain between their running check and the send.
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSink creates a sink that hands entries to write. The sink does nothing
// until Start is called.
func NewSink[T any](name string, write WriteFunc[T], config Config, logger *slog.Logger) *Sink[T] {
	config = config.withDefaults()

	if logger == nil {
		logger = slog.Default()
	}

	return &Sink[T]{
		name:   name,
		write:  write,
		config: config,
		logger: logger.With("component", name),
		queue:  make(chan item[T], config.BufferSize),
	}
}

// Start begins the background writer. Calling Start on a running sink is a no-op.
func (s *Sink[T]) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running.Store(true)

	s.wg.Add(1)
	go s.run(s.ctx)

	s.logger.Info("audit sink started",
		"buffer_size", s.config.BufferSize,
		"retry_attempts", s.config.RetryAttempts,
	)
}

// Stop writes every entry still queued and then stops the writer.
func (s *Sink[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}

	s.running.Store(false)
	s.cancel()
	s.wg.Wait()

	s.logger.Info("audit sink stopped",
		"written", s.written.Load(),
		"dropped", s.dropped.Load(),
		"failed", s.failed.Load(),
	)
}

// Record queues an entry for writing. It never blocks: when the queue is full
// or the sink is stopped, starting or stopping, the entry is dropped and a
// warning is logged.
func (s *Sink[T]) Record(entry T) {
	if !s.mu.TryRLock() {
		s.dropped.Add(1)
		s.logger.Warn("audit entry dropped", "reason", "sink starting or stopping")
		return
	}
	defer s.mu.RUnlock()

	if !s.running.Load() {
		s.dropped.Add(1)
		s.logger.Warn("audit entry dropped", "reason", "sink not running")
		return
	}

	select {
	case s.queue <- item[T]{entry: entry}:
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit entry dropped", "reason", "queue full", "buffer_size", s.config.BufferSize)
	}
}

// Flush blocks until every entry recorded before the call has been handled.
func (s *Sink[T]) Flush(ctx context.Context) error {
	barrier, err := s.enqueueBarrier(ctx)
	if err != nil {
		return err
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueueBarrier queues a flush barrier. A barrier queued here is always
// closed, either by the writer loop or by the drain in Stop.
func (s *Sink[T]) enqueueBarrier(ctx context.Context) (chan struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running.Load() {
		return nil, ErrNotRunning
	}

	barrier := make(chan struct{})
	select {
	case s.queue <- item[T]{barrier: barrier}:
		return barrier, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Name identifies the sink in logs and readiness checks.
func (s *Sink[T]) Name() string {
	return s.name
}

// Running reports whether the background writer is accepting entries.
func (s *Sink[T]) Running() bool {
	return s.running.Load()
}

// Stats reports how many entries were written, dropped and given up on.
func (s *Sink[T]) Stats() (written, dropped, failed uint64) {
	return s.written.Load(), s.dropped.Load(), s.failed.Load()
}

// run is the writer loop.
func (s *Sink[T]) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case it := <-s.queue:
			s.handle(it)
		}
	}
}

// drain handles whatever is left in the queue without waiting for more.
func (s *Sink[T]) drain() {
	for {
		select {
		case it := <-s.queue:
			s.handle(it)
		default:
			return
		}
	}
}

func (s *Sink[T]) handle(it item[T]) {
	if it.barrier != nil {
		close(it.barrier)
		return
	}

	if err := s.persist(it.entry); err != nil {
		s.failed.Add(1)
		s.logger.Error("failed to write audit entry", "error", err)
		return
	}
	s.written.Add(1)
}

// persist writes one entry with retries. Writes are detached from any request
// context so a finished request cannot cancel its own audit record.
func (s *Sink[T]) persist(entry T) error {
	t := timeout.New[struct{}](timeout.Config{
		DefaultTimeout: s.config.WriteTimeout,
	})

	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   s.config.RetryAttempts,
		InitialDelay:  s.config.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})

	_, err := t.Execute(context.Background(), s.config.WriteTimeout, func(ctx context.Context) (struct{}, error) {
		return r.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.write(ctx, &entry)
		})
	})
	return err
}
