//go:generate go run go.uber.org/mock/mockgen -source=deps.go -destination=mocks/mock_deps.go -package=mocks
package service

import (
	"context"

	"github.com/google/uuid"
)

// PresenceStore is the short-lived online index.
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID uuid.UUID, lon, lat float64) error
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// PositionPublisher appends serialized position packets to the durable bus.
type PositionPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Broadcaster fans a serialized packet out to every live session.
type Broadcaster interface {
	Publish(payload []byte) int
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
	Parse(token string) (uuid.UUID, error)
}
