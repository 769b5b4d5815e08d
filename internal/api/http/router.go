package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/immxrtalbeast/geopulse/internal/metrics"
)

type Controllers struct {
	Users     *UserController
	Rooms     *RoomController
	Invites   *InviteController
	Positions *PositionController
	Realtime  *RealtimeController
}

func SetupRouter(allowedOrigins []string, c Controllers) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(config))
	router.Use(metrics.GinMiddleware())

	health := func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", health)
	router.GET("/healthz", health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")

	if c.Users != nil {
		api.POST("/register", c.Users.Register)
		api.POST("/login", c.Users.Login)
	}

	if c.Positions != nil {
		api.POST("/position", c.Positions.Ingest)
		api.GET("/nearby", c.Positions.Nearby)
	}

	if c.Rooms != nil {
		chat := api.Group("/chat")
		chat.POST("/send", c.Rooms.Send)
		chat.GET("/history", c.Rooms.History)
		chat.GET("/room-state", c.Rooms.RoomState)
		chat.POST("/mark-read", c.Rooms.MarkRead)
	}

	if c.Invites != nil {
		invites := api.Group("/invite")
		invites.POST("/send", c.Invites.Send)
		invites.GET("/pending", c.Invites.Pending)
		invites.POST("/respond", c.Invites.Respond)
	}

	if c.Realtime != nil {
		router.GET("/ws", c.Realtime.Connect)
	}

	return router
}
