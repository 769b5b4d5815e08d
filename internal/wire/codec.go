// Package wire encodes realtime packets as compact msgpack frames. The same
// bytes travel over the event bus, through the fan-out hub and over the
// websocket.
package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ugorji/go/codec"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

var ErrMalformedPacket = errors.New("malformed packet")

type kind uint8

const (
	kindPosition kind = iota + 1
	kindChat
	kindInvite
	kindHeartbeat
)

// envelope is the frame layout. Exactly one payload matches Kind; heartbeat
// has none.
type envelope struct {
	Kind     kind           `codec:"k"`
	Position *positionFrame `codec:"p,omitempty"`
	Chat     *chatFrame     `codec:"c,omitempty"`
	Invite   *inviteFrame   `codec:"i,omitempty"`
}

type positionFrame struct {
	UserID string  `codec:"user_id"`
	Lon    float64 `codec:"lon"`
	Lat    float64 `codec:"lat"`
	TS     int64   `codec:"ts"`
}

type chatFrame struct {
	RoomID   string `codec:"room_id"`
	FromUser string `codec:"from_user"`
	Text     string `codec:"text"`
	TS       int64  `codec:"ts"`
}

type inviteFrame struct {
	InviteID string `codec:"invite_id"`
	FromUser string `codec:"from_user"`
	ToUser   string `codec:"to_user"`
	Mode     string `codec:"mode"`
	Status   string `codec:"status"`
	TS       int64  `codec:"ts"`
}

var handle = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	return h
}

// Encode serializes a packet into a frame.
func Encode(p domain.Packet) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("wire.encode: nil packet")
	}

	var env envelope
	if err := p.Accept(&encoder{env: &env}); err != nil {
		return nil, err
	}

	var out []byte
	if err := codec.NewEncoderBytes(&out, handle).Encode(&env); err != nil {
		return nil, fmt.Errorf("wire.encode: %w", err)
	}
	return out, nil
}

// Decode parses a frame. Every failure wraps ErrMalformedPacket.
func Decode(data []byte) (domain.Packet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedPacket)
	}

	var env envelope
	if err := codec.NewDecoderBytes(data, handle).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}

	switch env.Kind {
	case kindPosition:
		if env.Position == nil {
			return nil, fmt.Errorf("%w: position payload missing", ErrMalformedPacket)
		}
		userID, err := parseID(env.Position.UserID)
		if err != nil {
			return nil, err
		}
		return domain.PositionUpdate{
			UserID: userID,
			Lon:    env.Position.Lon,
			Lat:    env.Position.Lat,
			TS:     fromMillis(env.Position.TS),
		}, nil
	case kindChat:
		if env.Chat == nil {
			return nil, fmt.Errorf("%w: chat payload missing", ErrMalformedPacket)
		}
		from, err := parseID(env.Chat.FromUser)
		if err != nil {
			return nil, err
		}
		return domain.ChatMessage{
			RoomID:    env.Chat.RoomID,
			FromUser:  from,
			Text:      env.Chat.Text,
			CreatedAt: fromMillis(env.Chat.TS),
		}, nil
	case kindInvite:
		if env.Invite == nil {
			return nil, fmt.Errorf("%w: invite payload missing", ErrMalformedPacket)
		}
		ids := make([]uuid.UUID, 3)
		for i, raw := range []string{env.Invite.InviteID, env.Invite.FromUser, env.Invite.ToUser} {
			id, err := parseID(raw)
			if err != nil {
				return nil, err
			}
			ids[i] = id
		}
		return domain.InviteEvent{
			InviteID: ids[0],
			FromUser: ids[1],
			ToUser:   ids[2],
			Mode:     env.Invite.Mode,
			Status:   domain.InviteStatus(env.Invite.Status),
			TS:       fromMillis(env.Invite.TS),
		}, nil
	case kindHeartbeat:
		return domain.Heartbeat{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedPacket, env.Kind)
	}
}

type encoder struct {
	env *envelope
}

func (e *encoder) VisitPosition(p domain.PositionUpdate) error {
	e.env.Kind = kindPosition
	e.env.Position = &positionFrame{
		UserID: formatID(p.UserID),
		Lon:    p.Lon,
		Lat:    p.Lat,
		TS:     toMillis(p.TS),
	}
	return nil
}

func (e *encoder) VisitChat(m domain.ChatMessage) error {
	e.env.Kind = kindChat
	e.env.Chat = &chatFrame{
		RoomID:   m.RoomID,
		FromUser: formatID(m.FromUser),
		Text:     m.Text,
		TS:       toMillis(m.CreatedAt),
	}
	return nil
}

func (e *encoder) VisitInvite(ev domain.InviteEvent) error {
	e.env.Kind = kindInvite
	e.env.Invite = &inviteFrame{
		InviteID: formatID(ev.InviteID),
		FromUser: formatID(ev.FromUser),
		ToUser:   formatID(ev.ToUser),
		Mode:     ev.Mode,
		Status:   string(ev.Status),
		TS:       toMillis(ev.TS),
	}
	return nil
}

func (e *encoder) VisitHeartbeat(domain.Heartbeat) error {
	e.env.Kind = kindHeartbeat
	return nil
}

// Client-asserted ids may be blank; the server overwrites them anyway.
func parseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return id, nil
}

func formatID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
