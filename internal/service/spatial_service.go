package service

import (
	"context"
	"fmt"

	"github.com/immxrtalbeast/geopulse/internal/domain"
	"github.com/immxrtalbeast/geopulse/internal/repository"
)

type SpatialConfig struct {
	// MaxRadiusMeters caps the query radius. Zero means
	// domain.DefaultMaxNearbyRadiusMeters, negative means no cap.
	MaxRadiusMeters float64
}

type SpatialService struct {
	locations repository.LocationRepository
	maxRadius float64
}

func NewSpatialService(locations repository.LocationRepository, cfg SpatialConfig) *SpatialService {
	maxRadius := cfg.MaxRadiusMeters
	if maxRadius == 0 {
		maxRadius = domain.DefaultMaxNearbyRadiusMeters
	}
	return &SpatialService{locations: locations, maxRadius: maxRadius}
}

// NearbyUsers returns the users last seen within radiusMeters of the point,
// nearest first, at most domain.MaxNearbyResults.
func (s *SpatialService) NearbyUsers(ctx context.Context, lon, lat, radiusMeters float64) ([]domain.NearbyUser, error) {
	const op = "service.spatial.nearby"

	if err := domain.ValidateCoordinates(lon, lat); err != nil {
		return nil, validationError(err)
	}
	if err := domain.ValidateRadius(radiusMeters, s.maxRadius); err != nil {
		return nil, validationError(err)
	}

	users, err := s.locations.Nearby(ctx, lon, lat, radiusMeters, domain.MaxNearbyResults)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}
