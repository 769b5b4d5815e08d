package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/api/http/converter"
	"github.com/immxrtalbeast/geopulse/internal/service"
)

type InviteController struct {
	invites service.InviteInteractor
	users   service.UserInteractor
}

func NewInviteController(invites service.InviteInteractor, users service.UserInteractor) *InviteController {
	return &InviteController{invites: invites, users: users}
}

func (c *InviteController) Send(ctx *gin.Context) {
	type request struct {
		Token  string `json:"token"`
		ToUser string `json:"to_user" binding:"required"`
		Mode   string `json:"mode"`
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
	to, err := uuid.Parse(req.ToUser)
	if err != nil {
		badRequest(ctx, "invalid to_user", nil)
		return
	}

	invite, err := c.invites.Create(ctx.Request.Context(), userID, to, req.Mode)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"invite_id": invite.ID})
}

func (c *InviteController) Pending(ctx *gin.Context) {
	userID, ok := authenticate(ctx, c.users, "")
	if !ok {
		return
	}

	invites, err := c.invites.PendingFor(ctx.Request.Context(), userID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, converter.InvitesToApi(invites))
}

func (c *InviteController) Respond(ctx *gin.Context) {
	type request struct {
		Token    string `json:"token"`
		InviteID string `json:"invite_id" binding:"required"`
		Action   string `json:"action" binding:"required"`
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
	inviteID, err := uuid.Parse(req.InviteID)
	if err != nil {
		badRequest(ctx, "invalid invite_id", nil)
		return
	}

	invite, err := c.invites.Respond(ctx.Request.Context(), inviteID, userID, req.Action)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusAccepted, converter.InviteToApi(*invite))
}
