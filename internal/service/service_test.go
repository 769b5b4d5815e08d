package service

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/hub"
	"github.com/immxrtalbeast/geopulse/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepClock advances one millisecond on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func nextPacket(t *testing.T, sub *hub.Subscription) domain.Packet {
	t.Helper()
	select {
	case payload := <-sub.C():
		pkt, err := wire.Decode(payload)
		require.NoError(t, err)
		return pkt
	case <-time.After(time.Second):
		t.Fatal("no packet broadcast")
		return nil
	}
}

func requireNoPacket(t *testing.T, sub *hub.Subscription) {
	t.Helper()
	select {
	case <-sub.C():
		t.Fatal("unexpected packet broadcast")
	default:
	}
}
