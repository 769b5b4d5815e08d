package converter

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/immxrtalbeast/geopulse/internal/domain"
)

type NearbyResponse struct {
	UserID         uuid.UUID `json:"user_id"`
	DistanceMeters float64   `json:"distance_m"`
	Lon            float64   `json:"lon"`
	Lat            float64   `json:"lat"`
}

func NearbyToApi(users []domain.NearbyUser) []NearbyResponse {
	return lo.Map(users, func(u domain.NearbyUser, _ int) NearbyResponse {
		return NearbyResponse{
			UserID:         u.UserID,
			DistanceMeters: u.DistanceMeters,
			Lon:            u.Lon,
			Lat:            u.Lat,
		}
	})
}
