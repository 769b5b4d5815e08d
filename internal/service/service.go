package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

type UserInteractor interface {
	Register(ctx context.Context, username, password string) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

type ChatInteractor interface {
	Send(ctx context.Context, roomID string, from uuid.UUID, text string) (*domain.ChatMessage, error)
	History(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, roomID string, userID uuid.UUID) error
	RoomState(ctx context.Context, roomID string, userID uuid.UUID) (*domain.RoomState, error)
}

type InviteInteractor interface {
	Create(ctx context.Context, from, to uuid.UUID, mode string) (*domain.Invite, error)
	Respond(ctx context.Context, inviteID, responder uuid.UUID, action string) (*domain.Invite, error)
	PendingFor(ctx context.Context, userID uuid.UUID) ([]domain.Invite, error)
	Relay(ctx context.Context, ev domain.InviteEvent) error
}

type PositionInteractor interface {
	Ingest(ctx context.Context, userID uuid.UUID, lon, lat float64) error
}

type SpatialInteractor interface {
	NearbyUsers(ctx context.Context, lon, lat, radiusMeters float64) ([]domain.NearbyUser, error)
}
