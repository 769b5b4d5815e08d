package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is an immutable message posted to a room. It doubles as the
// Chat variant of the realtime packet.
type ChatMessage struct {
	RoomID    string
	FromUser  uuid.UUID
	Text      string
	CreatedAt time.Time
}

func NewChatMessage(roomID string, from uuid.UUID, text string, at time.Time) *ChatMessage {
	return &ChatMessage{
		RoomID:    NormalizeRoomID(roomID),
		FromUser:  from,
		Text:      text,
		CreatedAt: at.UTC(),
	}
}

func (m ChatMessage) Accept(v PacketVisitor) error { return v.VisitChat(m) }

func (ChatMessage) packet() {}
