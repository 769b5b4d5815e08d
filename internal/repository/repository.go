package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrInviteNotFound = errors.New("invite not found or already resolved")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type LocationRepository interface {
	// Upsert keeps one row per user. An older sample never replaces a newer one.
	Upsert(ctx context.Context, loc domain.Location) error
	// Nearby returns users within radiusMeters, nearest first.
	Nearby(ctx context.Context, lon, lat, radiusMeters float64, limit int) ([]domain.NearbyUser, error)
}

type ChatRepository interface {
	Insert(ctx context.Context, msg *domain.ChatMessage) error
	// Recent returns up to limit messages of the room, newest first.
	Recent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
	// MarkRead moves the marker forward to at; it never moves back.
	MarkRead(ctx context.Context, roomID string, userID uuid.UUID, at time.Time) error
	UnreadCount(ctx context.Context, roomID string, userID uuid.UUID) (int64, error)
	// Members lists every distinct author of the room.
	Members(ctx context.Context, roomID string) ([]uuid.UUID, error)
}

type InviteRepository interface {
	Create(ctx context.Context, invite *domain.Invite) error
	// Respond resolves a pending invite addressed to toUser. It returns
	// ErrInviteNotFound when no such pending invite exists.
	Respond(ctx context.Context, id, toUser uuid.UUID, status domain.InviteStatus, at time.Time) (*domain.Invite, error)
	PendingFor(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Invite, error)
}

// Open connects gorm with driver errors translated into gorm sentinels.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
}
