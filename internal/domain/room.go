package domain

import "strings"

// DefaultRoomID is used whenever a client omits the room or sends a blank one.
const DefaultRoomID = "global"

// Rooms have no entity of their own: a room is the string id plus everybody
// who has ever posted to it.

// NormalizeRoomID trims the id and falls back to DefaultRoomID.
func NormalizeRoomID(roomID string) string {
	trimmed := strings.TrimSpace(roomID)
	if trimmed == "" {
		return DefaultRoomID
	}
	return trimmed
}

// RoomState is the per-user view of a room: unread counter plus roster.
type RoomState struct {
	RoomID      string
	UnreadCount int64
	Members     []Member
}
