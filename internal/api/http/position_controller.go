package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immxrtalbeast/geopulse/internal/api/http/converter"
	"github.com/immxrtalbeast/geopulse/internal/service"
)

type PositionController struct {
	positions service.PositionInteractor
	spatial   service.SpatialInteractor
	users     service.UserInteractor
}

func NewPositionController(positions service.PositionInteractor, spatial service.SpatialInteractor, users service.UserInteractor) *PositionController {
	return &PositionController{positions: positions, spatial: spatial, users: users}
}

func (c *PositionController) Ingest(ctx *gin.Context) {
	type request struct {
		Token string   `json:"token"`
		Lon   *float64 `json:"lon" binding:"required"`
		Lat   *float64 `json:"lat" binding:"required"`
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

	if err := c.positions.Ingest(ctx.Request.Context(), userID, *req.Lon, *req.Lat); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusAccepted)
}

func (c *PositionController) Nearby(ctx *gin.Context) {
	type query struct {
		Lon    *float64 `form:"lon" binding:"required"`
		Lat    *float64 `form:"lat" binding:"required"`
		Radius *float64 `form:"radius" binding:"required"`
	}
	var q query
	if err := ctx.ShouldBindQuery(&q); err != nil {
		badRequest(ctx, "lon, lat and radius are required", err)
		return
	}

	users, err := c.spatial.NearbyUsers(ctx.Request.Context(), *q.Lon, *q.Lat, *q.Radius)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, converter.NearbyToApi(users))
}
