package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

var ErrBusClosed = errors.New("bus closed")

// MemoryBus is an in-process bus for single-node and test setups. Events are
// lost on restart and failed events are not redelivered.
type MemoryBus struct {
	events chan []byte
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func NewMemoryBus(buffer int, log *slog.Logger) *MemoryBus {
	if buffer <= 0 {
		buffer = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBus{
		events: make(chan []byte, buffer),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Publish blocks while the buffer is full, until the event is queued, ctx is
// done or the bus is closed.
func (b *MemoryBus) Publish(ctx context.Context, payload []byte) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	select {
	case b.events <- payload:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return fmt.Errorf("bus.memory.publish: %w", ctx.Err())
	}
}

// Consume returns once ctx is done or the bus is closed. Events still queued
// at that point are dropped.
func (b *MemoryBus) Consume(ctx context.Context, h Handler) error {
	const op = "bus.memory.consume"
	log := b.log.With(slog.String("op", op))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case payload := <-b.events:
			if err := h(ctx, payload); err != nil {
				log.Warn("event handling failed, dropping", sl.Err(err))
			}
		}
	}
}

func (b *MemoryBus) Close() {
	b.once.Do(func() { close(b.done) })
}
