package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/repository/model"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelUser(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(&user), nil
}

type PostgresLocationRepository struct {
	db *gorm.DB
}

func NewPostgresLocationRepository(db *gorm.DB) *PostgresLocationRepository {
	return &PostgresLocationRepository{db: db}
}

const upsertLocationSQL = `
INSERT INTO user_locations (user_id, location, updated_at)
VALUES (?, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)
ON CONFLICT (user_id) DO UPDATE
SET location = EXCLUDED.location, updated_at = EXCLUDED.updated_at
WHERE user_locations.updated_at <= EXCLUDED.updated_at`

func (r *PostgresLocationRepository) Upsert(ctx context.Context, loc domain.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Exec(upsertLocationSQL, loc.UserID, loc.Lon, loc.Lat, loc.UpdatedAt.UTC()).
		Error
}

const nearbySQL = `
SELECT
	user_id,
	ST_Distance(location, ST_Point(?, ?)::geography) AS distance,
	ST_X(location::geometry) AS lon,
	ST_Y(location::geometry) AS lat
FROM user_locations
WHERE ST_DWithin(location, ST_Point(?, ?)::geography, ?)
ORDER BY distance
LIMIT ?`

type nearbyRow struct {
	UserID   uuid.UUID
	Distance float64
	Lon      float64
	Lat      float64
}

func (r *PostgresLocationRepository) Nearby(ctx context.Context, lon, lat, radiusMeters float64, limit int) ([]domain.NearbyUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []nearbyRow
	err := r.db.WithContext(ctx).
		Raw(nearbySQL, lon, lat, lon, lat, radiusMeters, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.NearbyUser, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.NearbyUser{
			UserID:         row.UserID,
			DistanceMeters: row.Distance,
			Lon:            row.Lon,
			Lat:            row.Lat,
		})
	}
	return out, nil
}

type PostgresChatRepository struct {
	db *gorm.DB
}

func NewPostgresChatRepository(db *gorm.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is nil")
	}

	return r.db.WithContext(ctx).Create(&model.RoomMessage{
		RoomID:    msg.RoomID,
		FromUser:  msg.FromUser,
		Message:   msg.Text,
		CreatedAt: msg.CreatedAt.UTC(),
	}).Error
}

func (r *PostgresChatRepository) Recent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.RoomMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChatMessage, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainMessage(&rows[i]))
	}
	return out, nil
}

const markReadSQL = `
INSERT INTO room_member_reads (room_id, user_id, last_read_at)
VALUES (?, ?, ?)
ON CONFLICT (room_id, user_id) DO UPDATE
SET last_read_at = GREATEST(room_member_reads.last_read_at, EXCLUDED.last_read_at)`

func (r *PostgresChatRepository) MarkRead(ctx context.Context, roomID string, userID uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Exec(markReadSQL, roomID, userID, at.UTC()).Error
}

const unreadCountSQL = `
WITH marker AS (
	SELECT last_read_at
	FROM room_member_reads
	WHERE room_id = ? AND user_id = ?
)
SELECT COUNT(*)
FROM room_messages
WHERE room_id = ?
	AND from_user <> ?
	AND created_at > COALESCE((SELECT last_read_at FROM marker), to_timestamp(0))`

func (r *PostgresChatRepository) UnreadCount(ctx context.Context, roomID string, userID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := r.db.WithContext(ctx).
		Raw(unreadCountSQL, roomID, userID, roomID, userID).
		Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresChatRepository) Members(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var members []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.RoomMessage{}).
		Where("room_id = ?", roomID).
		Distinct().
		Order("from_user").
		Pluck("from_user", &members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

type PostgresInviteRepository struct {
	db *gorm.DB
}

func NewPostgresInviteRepository(db *gorm.DB) *PostgresInviteRepository {
	return &PostgresInviteRepository{db: db}
}

func (r *PostgresInviteRepository) Create(ctx context.Context, invite *domain.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if invite == nil {
		return errors.New("invite is nil")
	}

	return r.db.WithContext(ctx).Create(toModelInvite(invite)).Error
}

const respondInviteSQL = `
UPDATE invites
SET status = ?, responded_at = ?
WHERE id = ? AND to_user = ? AND status = ?
RETURNING id, from_user, to_user, mode, status, created_at, responded_at`

func (r *PostgresInviteRepository) Respond(ctx context.Context, id, toUser uuid.UUID, status domain.InviteStatus, at time.Time) (*domain.Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.Invite
	err := r.db.WithContext(ctx).
		Raw(respondInviteSQL, string(status), at.UTC(), id, toUser, string(domain.InviteStatusPending)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrInviteNotFound
	}
	return toDomainInvite(&rows[0]), nil
}

func (r *PostgresInviteRepository) PendingFor(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.Invite
	err := r.db.WithContext(ctx).
		Where("to_user = ? AND status = ?", userID, string(domain.InviteStatusPending)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Invite, 0, len(rows))
	for i := range rows {
		out = append(out, *toDomainInvite(&rows[i]))
	}
	return out, nil
}

func toModelUser(user *domain.User) *model.User {
	return &model.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
	}
}

func toDomainUser(user *model.User) *domain.User {
	return &domain.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
	}
}

func toDomainMessage(msg *model.RoomMessage) domain.ChatMessage {
	return domain.ChatMessage{
		RoomID:    msg.RoomID,
		FromUser:  msg.FromUser,
		Text:      msg.Message,
		CreatedAt: msg.CreatedAt.UTC(),
	}
}

func toModelInvite(invite *domain.Invite) *model.Invite {
	return &model.Invite{
		ID:          invite.ID,
		FromUser:    invite.FromUser,
		ToUser:      invite.ToUser,
		Mode:        invite.Mode,
		Status:      string(invite.Status),
		CreatedAt:   invite.CreatedAt.UTC(),
		RespondedAt: invite.RespondedAt,
	}
}

func toDomainInvite(invite *model.Invite) *domain.Invite {
	out := &domain.Invite{
		ID:        invite.ID,
		FromUser:  invite.FromUser,
		ToUser:    invite.ToUser,
		Mode:      invite.Mode,
		Status:    domain.InviteStatus(invite.Status),
		CreatedAt: invite.CreatedAt.UTC(),
	}
	if invite.RespondedAt != nil {
		at := invite.RespondedAt.UTC()
		out.RespondedAt = &at
	}
	return out
}
