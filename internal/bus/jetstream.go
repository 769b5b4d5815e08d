package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

type JetStreamConfig struct {
	Stream     string
	Subject    string
	Durable    string
	MaxDeliver int
	RetryDelay time.Duration
}

func (c *JetStreamConfig) setDefaults() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.Durable == "" {
		c.Durable = DefaultDurable
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
}

// JetStreamBus publishes to a durable stream and consumes it through a
// durable pull consumer.
type JetStreamBus struct {
	js  jetstream.JetStream
	cfg JetStreamConfig
	log *slog.Logger
}

// NewJetStreamBus ensures the stream exists before returning.
func NewJetStreamBus(ctx context.Context, nc *nats.Conn, cfg JetStreamConfig, log *slog.Logger) (*JetStreamBus, error) {
	const op = "bus.jetstream.new"
	cfg.setDefaults()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &JetStreamBus{
		js:  js,
		cfg: cfg,
		log: log.With(slog.String("stream", cfg.Stream)),
	}, nil
}

func (b *JetStreamBus) Publish(ctx context.Context, payload []byte) error {
	if _, err := b.js.Publish(ctx, b.cfg.Subject, payload); err != nil {
		return fmt.Errorf("bus.jetstream.publish: %w", err)
	}
	return nil
}

func (b *JetStreamBus) Consume(ctx context.Context, h Handler) error {
	const op = "bus.jetstream.consume"
	log := b.log.With(slog.String("op", op), slog.String("durable", b.cfg.Durable))

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       b.cfg.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: b.cfg.Subject,
		MaxDeliver:    b.cfg.MaxDeliver,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		b.handle(ctx, log, msg, h)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("consumer started")

	<-ctx.Done()
	cc.Stop()
	log.Info("consumer stopped")

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (b *JetStreamBus) handle(ctx context.Context, log *slog.Logger, msg jetstream.Msg, h Handler) {
	if err := h(ctx, msg.Data()); err != nil {
		log.Warn("event handling failed, requesting redelivery", sl.Err(err))
		if nakErr := msg.NakWithDelay(b.cfg.RetryDelay); nakErr != nil {
			log.Error("nak failed", sl.Err(nakErr))
		}
		return
	}
	if err := msg.Ack(); err != nil {
		log.Error("ack failed", sl.Err(err))
	}
}
