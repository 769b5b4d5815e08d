package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"size:32;uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// UserLocation is written and read through raw PostGIS SQL only.
type UserLocation struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Location  string    `gorm:"type:geography(Point,4326);not null;index:idx_user_locations_location,type:gist"`
	UpdatedAt time.Time `gorm:"not null"`
}

type RoomMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	RoomID    string    `gorm:"size:128;not null;index:idx_room_messages_room_created,priority:1"`
	FromUser  uuid.UUID `gorm:"type:uuid;not null;index"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_room_messages_room_created,priority:2"`
}

type RoomMemberRead struct {
	RoomID     string    `gorm:"size:128;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastReadAt time.Time `gorm:"not null"`
}

type Invite struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	FromUser    uuid.UUID `gorm:"type:uuid;not null;index"`
	ToUser      uuid.UUID `gorm:"type:uuid;not null;index:idx_invites_to_status,priority:1"`
	Mode        string    `gorm:"size:32;not null"`
	Status      string    `gorm:"size:16;not null;index:idx_invites_to_status,priority:2"`
	CreatedAt   time.Time `gorm:"not null"`
	RespondedAt *time.Time
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{&User{}, &UserLocation{}, &RoomMessage{}, &RoomMemberRead{}, &Invite{}}
}
