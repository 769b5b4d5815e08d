package domain

import "github.com/google/uuid"

type MemberStatus string

const (
	MemberStatusOnline  MemberStatus = "online"
	MemberStatusOffline MemberStatus = "offline"
)

// Member is one entry of a room roster, annotated with presence.
type Member struct {
	UserID uuid.UUID
	Online bool
}

func NewMember(userID uuid.UUID, online bool) Member {
	return Member{UserID: userID, Online: online}
}

func (m Member) Status() MemberStatus {
	if m.Online {
		return MemberStatusOnline
	}
	return MemberStatusOffline
}
