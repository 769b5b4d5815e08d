package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/internal/wire"
)

type failingLocations struct {
	repository.LocationRepository
}

func (failingLocations) Upsert(context.Context, domain.Location) error {
	return errors.New("db down")
}

func encode(t *testing.T, p domain.Packet) []byte {
	t.Helper()
	payload, err := wire.Encode(p)
	require.NoError(t, err)
	return payload
}

func TestRecorderPersistsPositions(t *testing.T) {
	req := require.New(t)
	locations := repository.NewInMemoryLocationRepository()
	rec := NewLocationRecorder(locations, discardLogger())

	userID := uuid.New()
	ts := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	req.NoError(rec.Handle(context.Background(), encode(t, domain.PositionUpdate{UserID: userID, Lon: 2.35, Lat: 48.85, TS: ts})))

	loc, ok := locations.Get(context.Background(), userID)
	req.True(ok)
	req.Equal(2.35, loc.Lon)
	req.Equal(48.85, loc.Lat)
	req.Equal(ts, loc.UpdatedAt)
}

func TestRecorderDropsUndecodableEvents(t *testing.T) {
	req := require.New(t)
	locations := repository.NewInMemoryLocationRepository()
	rec := NewLocationRecorder(locations, discardLogger())

	req.NoError(rec.Handle(context.Background(), []byte{0xc1}))
	req.NoError(rec.Handle(context.Background(), nil))
	req.NoError(rec.Handle(context.Background(), encode(t, domain.PositionUpdate{Lon: 1, Lat: 1})))

	hits, err := locations.Nearby(context.Background(), 1, 1, 1000, 10)
	req.NoError(err)
	req.Empty(hits)
}

func TestRecorderIgnoresOtherPackets(t *testing.T) {
	rec := NewLocationRecorder(failingLocations{}, discardLogger())

	require.NoError(t, rec.Handle(context.Background(), encode(t, domain.ChatMessage{Text: "hi"})))
	require.NoError(t, rec.Handle(context.Background(), encode(t, domain.Heartbeat{})))
}

func TestRecorderReturnsStoreFailures(t *testing.T) {
	rec := NewLocationRecorder(failingLocations{}, discardLogger())

	err := rec.Handle(context.Background(), encode(t, domain.PositionUpdate{UserID: uuid.New(), Lon: 1, Lat: 1}))
	require.Error(t, err)
}
