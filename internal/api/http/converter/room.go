package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

type MessageResponse struct {
	RoomID    string    `json:"room_id"`
	FromUser  uuid.UUID `json:"from_user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	UserID uuid.UUID           `json:"user_id"`
	Online bool                `json:"online"`
	Status domain.MemberStatus `json:"status"`
}

type RoomStateResponse struct {
	RoomID      string           `json:"room_id"`
	UnreadCount int64            `json:"unread_count"`
	Members     []MemberResponse `json:"members"`
}

func MessageToApi(m domain.ChatMessage) MessageResponse {
	return MessageResponse{
		RoomID:    m.RoomID,
		FromUser:  m.FromUser,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}

func MessagesToApi(messages []domain.ChatMessage) []MessageResponse {
	return lo.Map(messages, func(m domain.ChatMessage, _ int) MessageResponse {
		return MessageToApi(m)
	})
}

func RoomStateToApi(state *domain.RoomState) *RoomStateResponse {
	return &RoomStateResponse{
		RoomID:      state.RoomID,
		UnreadCount: state.UnreadCount,
		Members: lo.Map(state.Members, func(m domain.Member, _ int) MemberResponse {
			return MemberResponse{UserID: m.UserID, Online: m.Online, Status: m.Status()}
		}),
	}
}
