package wire

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

func TestEncodeDecodeVariants(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	tests := []struct {
		name   string
		packet domain.Packet
	}{
		{"position", domain.PositionUpdate{UserID: uuid.New(), Lon: 13.405, Lat: 52.52, TS: ts}},
		{"chat", domain.ChatMessage{RoomID: "lobby", FromUser: uuid.New(), Text: "hello", CreatedAt: ts}},
		{"invite", domain.InviteEvent{
			InviteID: uuid.New(),
			FromUser: uuid.New(),
			ToUser:   uuid.New(),
			Mode:     "duel",
			Status:   domain.InviteStatusAccepted,
			TS:       ts,
		}},
		{"heartbeat", domain.Heartbeat{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			frame, err := Encode(tt.packet)
			req.NoError(err)
			req.NotEmpty(frame)

			decoded, err := Decode(frame)
			req.NoError(err)
			req.Equal(tt.packet, decoded)
		})
	}
}

func TestDecodeKeepsBlankClientIDs(t *testing.T) {
	req := require.New(t)

	frame, err := Encode(domain.ChatMessage{Text: "anonymous"})
	req.NoError(err)

	decoded, err := Decode(frame)
	req.NoError(err)

	msg, ok := decoded.(domain.ChatMessage)
	req.True(ok)
	req.Equal(uuid.Nil, msg.FromUser)
	req.True(msg.CreatedAt.IsZero())
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	raw := func(v any) []byte {
		var out []byte
		require.NoError(t, codec.NewEncoderBytes(&out, handle).Encode(v))
		return out
	}

	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"garbage", []byte{0xc1, 0xff, 0x00, 0x13}},
		{"scalar", raw(42)},
		{"unknown kind", raw(map[string]any{"k": 99})},
		{"missing position payload", raw(map[string]any{"k": int(kindPosition)})},
		{"missing chat payload", raw(map[string]any{"k": int(kindChat)})},
		{"bad user id", raw(map[string]any{
			"k": int(kindPosition),
			"p": map[string]any{"user_id": "not-a-uuid", "lon": 1.0, "lat": 2.0},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			require.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestEncodeNilPacket(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
}
