package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultAsyncBuffer is the queue depth of the async writer.
const DefaultAsyncBuffer = 1024

// AsyncStorage decorates a Storage with a buffered background writer so that
// recording an event never blocks the mutation path. When the buffer is full
// the event is dropped and counted; audit is best-effort by contract and a
// full buffer must not stall the engine.
type AsyncStorage struct {
	backend Storage
	events  chan Event
	done    chan struct{}
	log     *slog.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewAsyncStorage wraps backend with an asynchronous writer.
func NewAsyncStorage(backend Storage, bufferSize int, log *slog.Logger) *AsyncStorage {
	if backend == nil {
		panic("audit: backend storage cannot be nil")
	}
	if bufferSize <= 0 {
		bufferSize = DefaultAsyncBuffer
	}
	if log == nil {
		log = slog.Default()
	}

	s := &AsyncStorage{
		backend: backend,
		events:  make(chan Event, bufferSize),
		done:    make(chan struct{}),
		log:     log,
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Store queues the event without blocking. A full buffer drops the event.
// The lock spans the send so Close cannot close the channel mid-enqueue.
func (s *AsyncStorage) Store(ctx context.Context, event Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStorageClosed
	}

	select {
	case s.events <- event:
		s.mu.Unlock()
		return nil
	default:
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()
		s.log.WarnContext(ctx, "audit buffer full, event dropped",
			slog.String("action", event.Action),
			slog.Int64("dropped_total", dropped))
		return nil
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (s *AsyncStorage) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close drains the queue and stops the worker. Events recorded after Close
// return ErrStorageClosed.
func (s *AsyncStorage) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.events)

	waitDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncStorage) worker() {
	defer s.wg.Done()

	for event := range s.events {
		// Writes use their own timeout so a slow backend cannot wedge the
		// drain loop.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.backend.Store(ctx, event); err != nil {
			s.log.Error("audit event write failed",
				slog.String("action", event.Action),
				slog.Any("error", err))
		}
		cancel()
	}
}
