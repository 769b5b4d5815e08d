package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/immxrtalbeast/geopulse/internal/api/http/converter"
	"github.com/immxrtalbeast/geopulse/internal/auth"
	"github.com/immxrtalbeast/geopulse/internal/bus"
	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/hub"
	"github.com/immxrtalbeast/geopulse/internal/presence"
	"github.com/immxrtalbeast/geopulse/internal/repository"
	"github.com/immxrtalbeast/geopulse/internal/service"
	"github.com/immxrtalbeast/geopulse/internal/session"
	"github.com/immxrtalbeast/geopulse/internal/wire"
)

type testEnv struct {
	server *httptest.Server
	hub    *hub.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	presenceStore := presence.NewRedisStore(rdb, presence.DefaultTTL)

	users := repository.NewInMemoryUserRepository()
	locations := repository.NewInMemoryLocationRepository()
	messages := repository.NewInMemoryChatRepository()
	invites := repository.NewInMemoryInviteRepository()

	tokens, err := auth.NewHMACTokens([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	hasher := auth.NewHasher(auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1})

	fanout := hub.New(64)
	events := bus.NewMemoryBus(64, log)
	recorder := service.NewLocationRecorder(locations, log)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		_ = events.Consume(ctx, recorder.Handle)
	}()

	userService := service.NewUserService(users, hasher, tokens, log)
	chatService := service.NewChatService(messages, presenceStore, fanout, service.ChatConfig{}, log)
	inviteService := service.NewInviteService(invites, users, fanout, log)
	positionService := service.NewPositionService(presenceStore, events, fanout, log)
	spatialService := service.NewSpatialService(locations, service.SpatialConfig{})

	router := SetupRouter(nil, Controllers{
		Users:     NewUserController(userService),
		Rooms:     NewRoomController(chatService, userService),
		Invites:   NewInviteController(inviteService, userService),
		Positions: NewPositionController(positionService, spatialService, userService),
		Realtime: NewRealtimeController(
			userService,
			fanout,
			session.Deps{Positions: positionService, Chat: chatService, Invites: inviteService},
			session.Config{},
			nil,
			log,
		),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		fanout.Close()
		server.Close()
		cancel()
		<-consumed
		events.Close()
		_ = rdb.Close()
	})

	return &testEnv{server: server, hub: fanout}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *testEnv) register(t *testing.T, username, password string) authResponse {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/register", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, status, string(raw))

	var res authResponse
	require.NoError(t, json.Unmarshal(raw, &res))
	require.NotEmpty(t, res.Token)
	return res
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestChatUnreadScenario(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	alice := env.register(t, "alice", "pw1")
	status, raw := env.do(t, http.MethodPost, "/api/chat/send", gin.H{"token": alice.Token, "room_id": "global", "text": "hello"})
	req.Equal(http.StatusAccepted, status, string(raw))

	bob := env.register(t, "bob", "pw2")
	status, raw = env.do(t, http.MethodGet, "/api/chat/room-state?room_id=global&token="+url.QueryEscape(bob.Token), nil)
	req.Equal(http.StatusOK, status, string(raw))
	state := decode[converter.RoomStateResponse](t, raw)
	req.GreaterOrEqual(state.UnreadCount, int64(1))
	req.Equal("global", state.RoomID)
	req.Len(state.Members, 1)
	req.Equal(alice.UserID, state.Members[0].UserID.String())

	status, _ = env.do(t, http.MethodPost, "/api/chat/mark-read", gin.H{"token": bob.Token, "room_id": "global"})
	req.Equal(http.StatusAccepted, status)

	status, raw = env.do(t, http.MethodGet, "/api/chat/room-state?room_id=global&token="+url.QueryEscape(bob.Token), nil)
	req.Equal(http.StatusOK, status)
	req.Zero(decode[converter.RoomStateResponse](t, raw).UnreadCount)

	status, raw = env.do(t, http.MethodGet, "/api/chat/history?room_id=global", nil)
	req.Equal(http.StatusOK, status)
	history := decode[[]converter.MessageResponse](t, raw)
	req.Len(history, 1)
	req.Equal("hello", history[0].Text)
}

func TestLoginFailuresReturnEmptyToken(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	env.register(t, "alice", "pw1")

	status, raw := env.do(t, http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "wrong"})
	req.Equal(http.StatusUnauthorized, status)
	res := decode[authResponse](t, raw)
	req.Empty(res.Token)
	req.Equal("alice", res.Username)

	status, raw = env.do(t, http.MethodPost, "/api/register", gin.H{"username": "alice", "password": "other"})
	req.Equal(http.StatusConflict, status)
	req.Empty(decode[authResponse](t, raw).Token)

	status, raw = env.do(t, http.MethodPost, "/api/register", gin.H{"username": "a b", "password": "pw1"})
	req.Equal(http.StatusBadRequest, status)
	req.Empty(decode[authResponse](t, raw).Token)

	status, raw = env.do(t, http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "pw1"})
	req.Equal(http.StatusOK, status)
	req.NotEmpty(decode[authResponse](t, raw).Token)
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/position", gin.H{"token": "garbage", "lon": 1, "lat": 1}},
		{http.MethodPost, "/api/chat/send", gin.H{"token": "garbage", "text": "hi"}},
		{http.MethodGet, "/api/chat/room-state?token=garbage", nil},
		{http.MethodPost, "/api/chat/mark-read", gin.H{"token": ""}},
		{http.MethodPost, "/api/invite/send", gin.H{"token": "garbage", "to_user": uuid.NewString()}},
		{http.MethodGet, "/api/invite/pending", nil},
		{http.MethodPost, "/api/invite/respond", gin.H{"invite_id": uuid.NewString(), "action": "accept"}},
		{http.MethodGet, "/ws?token=garbage", nil},
	} {
		status, raw := env.do(t, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusUnauthorized, status, tc.path)
		require.JSONEq(t, `{"error":"unauthenticated"}`, string(raw), tc.path)
	}
}

func TestBearerHeaderAuthenticates(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.register(t, "alice", "pw1")

	r, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/invite/pending", nil)
	req.NoError(err)
	r.Header.Set("Authorization", "Bearer "+alice.Token)

	resp, err := env.server.Client().Do(r)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestInviteFlow(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.register(t, "alice", "pw1")
	bob := env.register(t, "bob", "pw2")

	status, raw := env.do(t, http.MethodPost, "/api/invite/send", gin.H{"token": alice.Token, "to_user": bob.UserID})
	req.Equal(http.StatusAccepted, status, string(raw))
	inviteID := decode[map[string]string](t, raw)["invite_id"]
	req.NotEmpty(inviteID)

	status, raw = env.do(t, http.MethodGet, "/api/invite/pending?token="+url.QueryEscape(bob.Token), nil)
	req.Equal(http.StatusOK, status)
	pending := decode[[]converter.InviteResponse](t, raw)
	req.Len(pending, 1)
	req.Equal(domain.DefaultInviteMode, pending[0].Mode)
	req.Equal(alice.UserID, pending[0].FromUser.String())

	status, _ = env.do(t, http.MethodPost, "/api/invite/respond", gin.H{"token": alice.Token, "invite_id": inviteID, "action": "accept"})
	req.Equal(http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, "/api/invite/respond", gin.H{"token": bob.Token, "invite_id": inviteID, "action": "maybe"})
	req.Equal(http.StatusBadRequest, status)

	status, raw = env.do(t, http.MethodPost, "/api/invite/respond", gin.H{"token": bob.Token, "invite_id": inviteID, "action": "accept"})
	req.Equal(http.StatusAccepted, status, string(raw))
	req.Equal(domain.InviteStatusAccepted, decode[converter.InviteResponse](t, raw).Status)

	status, _ = env.do(t, http.MethodPost, "/api/invite/respond", gin.H{"token": bob.Token, "invite_id": inviteID, "action": "reject"})
	req.Equal(http.StatusNotFound, status)

	status, raw = env.do(t, http.MethodGet, "/api/invite/pending?token="+url.QueryEscape(bob.Token), nil)
	req.Equal(http.StatusOK, status)
	req.JSONEq(`[]`, string(raw))

	status, _ = env.do(t, http.MethodPost, "/api/invite/send", gin.H{"token": alice.Token, "to_user": "not-a-uuid"})
	req.Equal(http.StatusBadRequest, status)
}

func TestPositionIngestAndNearby(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.register(t, "alice", "pw1")

	status, _ := env.do(t, http.MethodPost, "/api/position", gin.H{"token": alice.Token, "lon": 2.35, "lat": 48.85})
	req.Equal(http.StatusAccepted, status)

	status, _ = env.do(t, http.MethodPost, "/api/position", gin.H{"token": alice.Token, "lon": 200, "lat": 48.85})
	req.Equal(http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/position", gin.H{"token": alice.Token, "lat": 48.85})
	req.Equal(http.StatusBadRequest, status)

	var hits []converter.NearbyResponse
	req.Eventually(func() bool {
		status, raw := env.do(t, http.MethodGet, "/api/nearby?lon=2.3501&lat=48.8501&radius=1000", nil)
		if status != http.StatusOK {
			return false
		}
		hits = decode[[]converter.NearbyResponse](t, raw)
		return len(hits) == 1
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal(alice.UserID, hits[0].UserID.String())
	req.Less(hits[0].DistanceMeters, 1000.0)

	status, _ = env.do(t, http.MethodGet, "/api/nearby?lon=2.35&lat=48.85", nil)
	req.Equal(http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/nearby?lon=2.35&lat=48.85&radius=0", nil)
	req.Equal(http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/healthz"} {
		status, raw := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `{"status":"ok"}`, string(raw))
	}

	env.do(t, http.MethodGet, "/health", nil)
	status, raw := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(raw), "geopulse_http_requests_total")
}

func dial(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn *websocket.Conn) domain.Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, messageType)

	pkt, err := wire.Decode(data)
	require.NoError(t, err)
	return pkt
}

// readChat skips position packets, which every session also receives.
func readChat(t *testing.T, conn *websocket.Conn) domain.ChatMessage {
	t.Helper()
	for range 5 {
		if chat, ok := readPacket(t, conn).(domain.ChatMessage); ok {
			return chat
		}
	}
	t.Fatal("no chat packet received")
	return domain.ChatMessage{}
}

func TestRealtimeFanOut(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.register(t, "alice", "pw1")
	bob := env.register(t, "bob", "pw2")

	aliceConn := dial(t, env, alice.Token)
	bobConn := dial(t, env, bob.Token)
	req.Eventually(func() bool { return env.hub.Subscribers() == 2 }, 2*time.Second, 5*time.Millisecond)

	// Garbage first: the session must survive it.
	req.NoError(aliceConn.WriteMessage(websocket.BinaryMessage, []byte{0xc1}))

	spoofed := uuid.New()
	frame, err := wire.Encode(domain.PositionUpdate{UserID: spoofed, Lon: 13.4, Lat: 52.5})
	req.NoError(err)
	req.NoError(aliceConn.WriteMessage(websocket.BinaryMessage, frame))

	pos, ok := readPacket(t, bobConn).(domain.PositionUpdate)
	req.True(ok)
	req.Equal(alice.UserID, pos.UserID.String())
	req.Equal(13.4, pos.Lon)

	status, _ := env.do(t, http.MethodPost, "/api/chat/send", gin.H{"token": bob.Token, "text": "hi all"})
	req.Equal(http.StatusAccepted, status)

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		chat := readChat(t, conn)
		req.Equal(domain.DefaultRoomID, chat.RoomID)
		req.Equal("hi all", chat.Text)
		req.Equal(bob.UserID, chat.FromUser.String())
	}
}
