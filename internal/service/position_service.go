package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/wire"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

// PositionService runs the ingestion pipeline: presence, then the durable
// bus, then the live hub. Persistence happens downstream of the bus.
type PositionService struct {
	presence    PresenceStore
	events      PositionPublisher
	broadcaster Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

func NewPositionService(presence PresenceStore, events PositionPublisher, broadcaster Broadcaster, log *slog.Logger) *PositionService {
	if log == nil {
		log = slog.Default()
	}
	return &PositionService{
		presence:    presence,
		events:      events,
		broadcaster: broadcaster,
		log:         log,
		now:         time.Now,
	}
}

func (s *PositionService) Ingest(ctx context.Context, userID uuid.UUID, lon, lat float64) error {
	const op = "service.position.ingest"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID.String()))

	if err := domain.ValidateCoordinates(lon, lat); err != nil {
		return validationError(err)
	}

	payload, err := wire.Encode(domain.PositionUpdate{
		UserID: userID,
		Lon:    lon,
		Lat:    lat,
		TS:     s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.presence.MarkOnline(ctx, userID, lon, lat); err != nil {
		log.Error("failed to refresh presence", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.events.Publish(ctx, payload); err != nil {
		log.Error("failed to publish position event", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.broadcaster.Publish(payload)
	return nil
}
