package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immxrtalbeast/geopulse/internal/service"
)

type UserController struct {
	users service.UserInteractor
}

func NewUserController(users service.UserInteractor) *UserController {
	return &UserController{users: users}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse always has the same shape; an empty token means failure.
type authResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Error    string `json:"error,omitempty"`
}

func (c *UserController) Register(ctx *gin.Context) {
	c.authenticateWith(ctx, c.users.Register)
}

func (c *UserController) Login(ctx *gin.Context) {
	c.authenticateWith(ctx, c.users.Login)
}

func (c *UserController) authenticateWith(ctx *gin.Context, fn func(ctx context.Context, username, password string) (*service.AuthResult, error)) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, authResponse{Error: "invalid request body"})
		return
	}

	res, err := fn(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			_ = ctx.Error(err)
			msg = "internal error"
		}
		ctx.JSON(status, authResponse{Username: req.Username, Error: msg})
		return
	}

	ctx.JSON(http.StatusOK, authResponse{
		Token:    res.Token,
		UserID:   res.User.ID.String(),
		Username: res.User.Username,
	})
}
