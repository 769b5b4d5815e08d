package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immxrtalbeast/geopulse/internal/api/http/converter"
	"github.com/immxrtalbeast/geopulse/internal/service"
)

// RoomController serves room chat: posting, history, read markers and the
// per-user room state.
type RoomController struct {
	chat  service.ChatInteractor
	users service.UserInteractor
}

func NewRoomController(chat service.ChatInteractor, users service.UserInteractor) *RoomController {
	return &RoomController{chat: chat, users: users}
}

func (c *RoomController) Send(ctx *gin.Context) {
	type request struct {
		Token  string `json:"token"`
		RoomID string `json:"room_id"`
		Text   string `json:"text"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}
	userID, ok := authenticate(ctx, c.users, req.Token)
	if !ok {
		return
	}

	msg, err := c.chat.Send(ctx.Request.Context(), req.RoomID, userID, req.Text)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"message": converter.MessageToApi(*msg)})
}

func (c *RoomController) History(ctx *gin.Context) {
	type query struct {
		RoomID string `form:"room_id"`
		Limit  int    `form:"limit"`
	}
	var q query
	if err := ctx.ShouldBindQuery(&q); err != nil {
		badRequest(ctx, "invalid query", err)
		return
	}

	messages, err := c.chat.History(ctx.Request.Context(), q.RoomID, q.Limit)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, converter.MessagesToApi(messages))
}

func (c *RoomController) RoomState(ctx *gin.Context) {
	userID, ok := authenticate(ctx, c.users, "")
	if !ok {
		return
	}

	state, err := c.chat.RoomState(ctx.Request.Context(), ctx.Query("room_id"), userID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, converter.RoomStateToApi(state))
}

func (c *RoomController) MarkRead(ctx *gin.Context) {
	type request struct {
		Token  string `json:"token"`
		RoomID string `json:"room_id"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}
	userID, ok := authenticate(ctx, c.users, req.Token)
	if !ok {
		return
	}

	if err := c.chat.MarkRead(ctx.Request.Context(), req.RoomID, userID); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusAccepted)
}
