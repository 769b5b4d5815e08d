package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/metrics"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/internal/wire"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

// LocationRecorder consumes position events from the bus and upserts the
// last known location of each user.
type LocationRecorder struct {
	locations repository.LocationRepository
	log       *slog.Logger
	now       func() time.Time
}

func NewLocationRecorder(locations repository.LocationRepository, log *slog.Logger) *LocationRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &LocationRecorder{locations: locations, log: log, now: time.Now}
}

// Handle is a bus.Handler. Undecodable events are dropped; only store
// failures are returned so the bus can redeliver.
func (r *LocationRecorder) Handle(ctx context.Context, payload []byte) error {
	const op = "service.location_recorder.handle"
	log := r.log.With(slog.String("op", op))

	pkt, err := wire.Decode(payload)
	if err != nil {
		log.Warn("dropping undecodable event", sl.Err(err))
		metrics.IncBusEvent(metrics.BusDropped)
		return nil
	}

	return pkt.Accept(&recordVisitor{ctx: ctx, recorder: r, log: log})
}

type recordVisitor struct {
	ctx      context.Context
	recorder *LocationRecorder
	log      *slog.Logger
}

func (v *recordVisitor) VisitPosition(p domain.PositionUpdate) error {
	if p.UserID == uuid.Nil || domain.ValidateCoordinates(p.Lon, p.Lat) != nil {
		v.log.Warn("dropping invalid position event")
		metrics.IncBusEvent(metrics.BusDropped)
		return nil
	}

	at := p.TS
	if at.IsZero() {
		at = v.recorder.now().UTC()
	}

	err := v.recorder.locations.Upsert(v.ctx, domain.Location{
		UserID:    p.UserID,
		Lon:       p.Lon,
		Lat:       p.Lat,
		UpdatedAt: at,
	})
	if err != nil {
		metrics.IncBusEvent(metrics.BusFailed)
		return fmt.Errorf("service.location_recorder.upsert: %w", err)
	}

	metrics.IncBusEvent(metrics.BusPersisted)
	return nil
}

func (v *recordVisitor) VisitChat(domain.ChatMessage) error {
	metrics.IncBusEvent(metrics.BusIgnored)
	return nil
}

func (v *recordVisitor) VisitInvite(domain.InviteEvent) error {
	metrics.IncBusEvent(metrics.BusIgnored)
	return nil
}

func (v *recordVisitor) VisitHeartbeat(domain.Heartbeat) error {
	metrics.IncBusEvent(metrics.BusIgnored)
	return nil
}
