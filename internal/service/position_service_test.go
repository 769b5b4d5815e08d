package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/service/mocks"
	"github.com/immxrtalbeast/geopulse/internal/wire"
)

func TestIngestRunsPipelineInOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	presence := mocks.NewMockPresenceStore(ctrl)
	events := mocks.NewMockPositionPublisher(ctrl)
	broadcaster := mocks.NewMockBroadcaster(ctrl)
	svc := NewPositionService(presence, events, broadcaster, discardLogger())

	userID := uuid.New()
	var published []byte
	gomock.InOrder(
		presence.EXPECT().MarkOnline(gomock.Any(), userID, 13.4, 52.5).Return(nil),
		events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, payload []byte) error {
			published = payload
			return nil
		}),
		broadcaster.EXPECT().Publish(gomock.Any()).DoAndReturn(func(payload []byte) int {
			req.Equal(published, payload)
			return 2
		}),
	)

	req.NoError(svc.Ingest(context.Background(), userID, 13.4, 52.5))

	pkt, err := wire.Decode(published)
	req.NoError(err)
	pos, ok := pkt.(domain.PositionUpdate)
	req.True(ok)
	req.Equal(userID, pos.UserID)
	req.Equal(13.4, pos.Lon)
	req.Equal(52.5, pos.Lat)
	req.False(pos.TS.IsZero())
}

func TestIngestStopsWhenPresenceFails(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	presence := mocks.NewMockPresenceStore(ctrl)
	events := mocks.NewMockPositionPublisher(ctrl)
	broadcaster := mocks.NewMockBroadcaster(ctrl)
	svc := NewPositionService(presence, events, broadcaster, discardLogger())

	presence.EXPECT().MarkOnline(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	err := svc.Ingest(context.Background(), uuid.New(), 1, 1)
	req.Error(err)
	req.NotErrorIs(err, ErrValidation)
}

func TestIngestStopsWhenBusFails(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	presence := mocks.NewMockPresenceStore(ctrl)
	events := mocks.NewMockPositionPublisher(ctrl)
	broadcaster := mocks.NewMockBroadcaster(ctrl)
	svc := NewPositionService(presence, events, broadcaster, discardLogger())

	presence.EXPECT().MarkOnline(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("nats down"))

	req.Error(svc.Ingest(context.Background(), uuid.New(), 1, 1))
}

func TestIngestRejectsInvalidCoordinates(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewPositionService(
		mocks.NewMockPresenceStore(ctrl),
		mocks.NewMockPositionPublisher(ctrl),
		mocks.NewMockBroadcaster(ctrl),
		discardLogger(),
	)

	for _, c := range [][2]float64{{181, 0}, {0, -91}, {-180.5, 10}} {
		require.ErrorIs(t, svc.Ingest(context.Background(), uuid.New(), c[0], c[1]), ErrValidation)
	}
}
