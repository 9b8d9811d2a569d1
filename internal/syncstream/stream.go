// Package syncstream is the bounded hand-off between a source's entity
// generator and the orchestrator's worker pool (SPEC_FULL §4.4): a single
// producer drains the generator into a fixed-capacity buffer; multiple
// consumers pull from it. The buffer back-pressures both ends.
package syncstream

import (
	"context"
	"sync"

	"github.com/R3E-Network/syncengine/internal/syncentity"
)

// Generator is the source-side entity producer. It calls emit for each
// entity and must return promptly with emit's error when emit fails
// (buffer closed or context cancelled); a nil return means the source is
// exhausted.
type Generator func(ctx context.Context, emit func(syncentity.Entity) error) error

// Stream is a scoped resource: Close releases the producer goroutine and
// drains the buffer on every exit path, including the caller panicking
// after Open without reading to exhaustion.
type Stream struct {
	items  chan syncentity.Entity
	errc   chan error
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Open starts the producer goroutine and returns a Stream with the given
// buffer capacity. The generator is called with a context derived from ctx;
// cancelling ctx (or calling Close) stops the producer.
func Open(ctx context.Context, capacity int, gen Generator) *Stream {
	if capacity <= 0 {
		capacity = 256
	}

	producerCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		items:  make(chan syncentity.Entity, capacity),
		errc:   make(chan error, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run(producerCtx, gen)
	return s
}

func (s *Stream) run(ctx context.Context, gen Generator) {
	defer close(s.done)
	defer close(s.items)

	emit := func(e syncentity.Entity) error {
		select {
		case s.items <- e:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := gen(ctx, emit); err != nil {
		select {
		case s.errc <- err:
		default:
		}
	}
}

// Items returns the consumer-facing channel. Workers range over it; the
// channel closes once the generator returns or the stream is cancelled and
// drained.
func (s *Stream) Items() <-chan syncentity.Entity {
	return s.items
}

// Err returns the generator's error, if any, once the stream has fully
// drained (call after ranging Items() to completion, or after Close).
func (s *Stream) Err() error {
	select {
	case err := <-s.errc:
		return err
	default:
		return nil
	}
}

// Close cancels the producer, drains any buffered items so the producer
// goroutine never blocks on a full channel, and waits for it to exit.
// Safe to call multiple times and safe to call before Items() is fully
// consumed.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.cancel()
		go func() {
			for range s.items {
			}
		}()
		<-s.done
	})
}
