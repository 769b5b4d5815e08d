package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/immxrtalbeast/geopulse/internal/service"
)

type tokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInviteNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx *gin.Context, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusUnauthorized:
		ctx.JSON(status, gin.H{"error": service.ErrUnauthenticated.Error()})
	case http.StatusInternalServerError:
		_ = ctx.Error(err)
		ctx.JSON(status, gin.H{"error": "internal error"})
	default:
		ctx.JSON(status, gin.H{"error": err.Error()})
	}
}

func badRequest(ctx *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	ctx.JSON(http.StatusBadRequest, body)
}

// requestToken looks for a token in the body first, then the query string,
// then an Authorization bearer header.
func requestToken(ctx *gin.Context, fromBody string) string {
	if token := strings.TrimSpace(fromBody); token != "" {
		return token
	}
	if token := strings.TrimSpace(ctx.Query("token")); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(ctx.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// authenticate writes a 401 and reports false when the request carries no
// valid token.
func authenticate(ctx *gin.Context, users tokenAuthenticator, fromBody string) (uuid.UUID, bool) {
	userID, err := users.Authenticate(ctx.Request.Context(), requestToken(ctx, fromBody))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ErrUnauthenticated.Error()})
		return uuid.Nil, false
	}
	return userID, true
}
