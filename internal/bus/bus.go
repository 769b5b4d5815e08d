// Package bus carries position events between the ingestion pipeline and the
// location recorder.
package bus

import "context"

// Handler processes one event payload. A non-nil error asks for redelivery
// where the transport supports it.
type Handler func(ctx context.Context, payload []byte) error

type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Consumer blocks delivering events to h until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
}

const (
	DefaultStream  = "location_events"
	DefaultSubject = "location.update"
	DefaultDurable = "location-recorder"
)
