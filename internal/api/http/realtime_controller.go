package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/immxrtalbeast/geopulse/internal/service"
	"github.com/immxrtalbeast/geopulse/internal/session"
	"github.com/immxrtalbeast/geopulse/lib/logger/sl"
)

// RealtimeController upgrades authenticated clients to the binary packet
// stream.
type RealtimeController struct {
	users    service.UserInteractor
	feed     session.Feed
	deps     session.Deps
	cfg      session.Config
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewRealtimeController(
	users service.UserInteractor,
	feed session.Feed,
	deps session.Deps,
	cfg session.Config,
	allowedOrigins []string,
	log *slog.Logger,
) *RealtimeController {
	if log == nil {
		log = slog.Default()
	}
	return &RealtimeController{
		users: users,
		feed:  feed,
		deps:  deps,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				return lo.Contains(allowedOrigins, "*") || lo.Contains(allowedOrigins, origin)
			},
		},
		log: log,
	}
}

// Connect authenticates before the upgrade so a bad token gets a plain 401,
// then serves the session on the request goroutine until it ends.
func (c *RealtimeController) Connect(ctx *gin.Context) {
	const op = "api.http.realtime.connect"
	log := c.log.With(slog.String("op", op))

	userID, ok := authenticate(ctx, c.users, "")
	if !ok {
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", sl.Err(err))
		return
	}

	sess := session.New(userID, conn, c.feed, c.deps, c.cfg, c.log)
	if err := sess.Run(ctx.Request.Context()); err != nil {
		log.Info("realtime session ended with error", slog.String("user_id", sess.UserID().String()), sl.Err(err))
	}
}
