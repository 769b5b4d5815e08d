package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
)

const (
	DefaultInviteMode = "duel"
	maxInviteModeLen  = 32
)

var (
	ErrUnsupportedAction = errors.New("unsupported invite action")
	ErrInviteModeTooLong = errors.New("invite mode is too long")
)

// Invite is a pairwise invitation. It leaves pending exactly once, and only
// through a response of ToUser.
type Invite struct {
	ID          uuid.UUID
	FromUser    uuid.UUID
	ToUser      uuid.UUID
	Mode        string
	Status      InviteStatus
	CreatedAt   time.Time
	RespondedAt *time.Time
}

func NewInvite(from, to uuid.UUID, mode string, at time.Time) *Invite {
	return &Invite{
		ID:        uuid.New(),
		FromUser:  from,
		ToUser:    to,
		Mode:      mode,
		Status:    InviteStatusPending,
		CreatedAt: at.UTC(),
	}
}

// NormalizeInviteMode trims the mode and falls back to DefaultInviteMode.
func NormalizeInviteMode(mode string) (string, error) {
	trimmed := strings.TrimSpace(mode)
	if trimmed == "" {
		return DefaultInviteMode, nil
	}
	if len(trimmed) > maxInviteModeLen {
		return "", ErrInviteModeTooLong
	}
	return trimmed, nil
}

// StatusForAction maps a client action onto the terminal status it requests.
func StatusForAction(action string) (InviteStatus, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "accept":
		return InviteStatusAccepted, nil
	case "reject":
		return InviteStatusRejected, nil
	default:
		return "", ErrUnsupportedAction
	}
}

func (s InviteStatus) IsTerminal() bool {
	return s == InviteStatusAccepted || s == InviteStatusRejected
}

// Event converts the invite into its realtime packet.
func (i *Invite) Event(at time.Time) InviteEvent {
	return InviteEvent{
		InviteID: i.ID,
		FromUser: i.FromUser,
		ToUser:   i.ToUser,
		Mode:     i.Mode,
		Status:   i.Status,
		TS:       at.UTC(),
	}
}
