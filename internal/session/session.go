// Package session runs one realtime websocket connection: inbound frames are
// decoded and dispatched to the services, hub packets are drained outbound.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/hub"
	"github.com/immxrtalbeast/geopulse/internal/metrics"
	"github.com/immxrtalbeast/geopulse/internal/wire"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

var errFeedClosed = errors.New("session: feed closed")

// Conn is the subset of *websocket.Conn a session needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadLimit(limit int64)
	Close() error
}

type Feed interface {
	Subscribe() *hub.Subscription
}

type PositionIngester interface {
	Ingest(ctx context.Context, userID uuid.UUID, lon, lat float64) error
}

type ChatSender interface {
	Send(ctx context.Context, roomID string, from uuid.UUID, text string) (*domain.ChatMessage, error)
}

type InviteRelayer interface {
	Relay(ctx context.Context, ev domain.InviteEvent) error
}

type Deps struct {
	Positions PositionIngester
	Chat      ChatSender
	Invites   InviteRelayer
}

type Config struct {
	WriteTimeout time.Duration
	PongWait     time.Duration
	PingPeriod   time.Duration
	// MaxFrameSize is the largest inbound frame that gets decoded; bigger
	// frames are dropped and the session carries on. The socket itself
	// refuses frames beyond transportReadLimit, which closes the connection.
	MaxFrameSize int64
	// InboundRate is frames per second; zero disables limiting.
	InboundRate  float64
	InboundBurst int
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 64 << 10
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = 1
	}
	return c
}

const minTransportReadLimit = 1 << 20

// transportReadLimit is the hard cap handed to the websocket reader. A frame
// past it cannot be skipped, only refused.
func (c Config) transportReadLimit() int64 {
	return max(c.MaxFrameSize*16, minTransportReadLimit)
}

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session belongs to one authenticated user for the lifetime of one
// connection.
type Session struct {
	userID  uuid.UUID
	conn    Conn
	feed    Feed
	deps    Deps
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
	state   atomic.Int32
}

// New wraps an upgraded connection of an already authenticated user.
func New(userID uuid.UUID, conn Conn, feed Feed, deps Deps, cfg Config, log *slog.Logger) *Session {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}

	limit := rate.Inf
	if cfg.InboundRate > 0 {
		limit = rate.Limit(cfg.InboundRate)
	}

	s := &Session{
		userID:  userID,
		conn:    conn,
		feed:    feed,
		deps:    deps,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.InboundBurst),
		log:     log.With(slog.String("user_id", userID.String())),
	}
	s.state.Store(int32(StateAuthenticated))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) UserID() uuid.UUID {
	return s.userID
}

// Run subscribes to the feed and serves the connection until the client
// goes away, a write fails or ctx is canceled. A normal close returns nil.
func (s *Session) Run(ctx context.Context) error {
	sub := s.feed.Subscribe()
	s.state.Store(int32(StateActive))
	metrics.SessionOpened()
	s.log.Info("session active")

	defer func() {
		sub.Close()
		s.state.Store(int32(StateClosed))
		metrics.SessionClosed()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.writeLoop(gctx, sub) })
	g.Go(func() error {
		<-gctx.Done()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.cfg.WriteTimeout),
		)
		_ = s.conn.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil || isNormalClose(err) {
		s.log.Info("session closed")
		return nil
	}
	s.log.Info("session terminated", sl.Err(err))
	return err
}

func isNormalClose(err error) bool {
	return err == nil ||
		errors.Is(err, errFeedClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(s.cfg.transportReadLimit())
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	dispatch := &inbound{ctx: ctx, session: s}
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		if messageType != websocket.BinaryMessage {
			metrics.IncFrameDropped(metrics.FrameNonBinary)
			continue
		}
		if int64(len(data)) > s.cfg.MaxFrameSize {
			metrics.IncFrameDropped(metrics.FrameOversized)
			continue
		}
		if !s.limiter.Allow() {
			metrics.IncFrameDropped(metrics.FrameRateLimited)
			continue
		}

		pkt, err := wire.Decode(data)
		if err != nil {
			s.log.Debug("dropping malformed frame", sl.Err(err))
			metrics.IncFrameDropped(metrics.FrameMalformed)
			continue
		}

		if err := pkt.Accept(dispatch); err != nil {
			s.log.Warn("inbound packet rejected", sl.Err(err))
			metrics.IncFrameDropped(metrics.FrameRejected)
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, sub *hub.Subscription) error {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-sub.C():
			if !ok {
				return errFeedClosed
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return err
			}
		}
	}
}

// inbound stamps every client packet with the authenticated identity before
// handing it to the services.
type inbound struct {
	ctx     context.Context
	session *Session
}

func (in *inbound) VisitPosition(p domain.PositionUpdate) error {
	return in.session.deps.Positions.Ingest(in.ctx, in.session.userID, p.Lon, p.Lat)
}

func (in *inbound) VisitChat(m domain.ChatMessage) error {
	_, err := in.session.deps.Chat.Send(in.ctx, domain.NormalizeRoomID(m.RoomID), in.session.userID, m.Text)
	return err
}

func (in *inbound) VisitInvite(e domain.InviteEvent) error {
	e.FromUser = in.session.userID
	return in.session.deps.Invites.Relay(in.ctx, e)
}

func (in *inbound) VisitHeartbeat(domain.Heartbeat) error {
	return nil
}
