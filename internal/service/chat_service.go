package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

const (
	maxChatMessageLength = 4000

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

type ChatConfig struct {
	HistoryDefault int
	HistoryMax     int
}

type ChatService struct {
	messages    repository.ChatRepository
	presence    PresenceStore
	broadcaster Broadcaster
	cfg         ChatConfig
	log         *slog.Logger
	now         func() time.Time
}

func NewChatService(messages repository.ChatRepository, presence PresenceStore, broadcaster Broadcaster, cfg ChatConfig, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = MaxHistoryLimit
	}
	if cfg.HistoryDefault <= 0 || cfg.HistoryDefault > cfg.HistoryMax {
		cfg.HistoryDefault = min(DefaultHistoryLimit, cfg.HistoryMax)
	}
	return &ChatService{
		messages:    messages,
		presence:    presence,
		broadcaster: broadcaster,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Send persists the message and then broadcasts it.
func (s *ChatService) Send(ctx context.Context, roomID string, from uuid.UUID, text string) (*domain.ChatMessage, error) {
	const op = "service.chat.send"
	log := s.log.With(slog.String("op", op), slog.String("user_id", from.String()))

	if strings.TrimSpace(text) == "" {
		return nil, validationError(errors.New("text is required"))
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return nil, validationErrorf("text exceeds %d characters", maxChatMessageLength)
	}

	msg := domain.NewChatMessage(roomID, from, text, s.now())
	if err := s.messages.Insert(ctx, msg); err != nil {
		log.Error("failed to store message", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	broadcast(s.broadcaster, log, *msg)
	return msg, nil
}

// History returns the latest messages of the room, oldest first.
func (s *ChatService) History(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	const op = "service.chat.history"

	recent, err := s.messages.Recent(ctx, domain.NormalizeRoomID(roomID), s.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return lo.Reverse(recent), nil
}

func (s *ChatService) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.cfg.HistoryDefault
	case limit > s.cfg.HistoryMax:
		return s.cfg.HistoryMax
	default:
		return limit
	}
}

func (s *ChatService) MarkRead(ctx context.Context, roomID string, userID uuid.UUID) error {
	const op = "service.chat.mark_read"

	if err := s.messages.MarkRead(ctx, domain.NormalizeRoomID(roomID), userID, s.now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UnreadCount counts messages of other users newer than the read marker.
func (s *ChatService) UnreadCount(ctx context.Context, roomID string, userID uuid.UUID) (int64, error) {
	const op = "service.chat.unread_count"

	count, err := s.messages.UnreadCount(ctx, domain.NormalizeRoomID(roomID), userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// Members lists everyone who posted to the room with their presence. A
// presence lookup failure reports the member offline.
func (s *ChatService) Members(ctx context.Context, roomID string) ([]domain.Member, error) {
	const op = "service.chat.members"
	log := s.log.With(slog.String("op", op))

	ids, err := s.messages.Members(ctx, domain.NormalizeRoomID(roomID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	members := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		online, err := s.presence.IsOnline(ctx, id)
		if err != nil {
			log.Warn("presence lookup failed", slog.String("user_id", id.String()), sl.Err(err))
			online = false
		}
		members = append(members, domain.NewMember(id, online))
	}
	return members, nil
}

func (s *ChatService) RoomState(ctx context.Context, roomID string, userID uuid.UUID) (*domain.RoomState, error) {
	roomID = domain.NormalizeRoomID(roomID)

	unread, err := s.UnreadCount(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	members, err := s.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return &domain.RoomState{
		RoomID:      roomID,
		UnreadCount: unread,
		Members:     members,
	}, nil
}
