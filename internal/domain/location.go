package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxNearbyResults caps every proximity query.
	MaxNearbyResults = 50
	// DefaultMaxNearbyRadiusMeters is the radius cap used when none is
	// configured. The cap is a service limit, not a property of the data.
	DefaultMaxNearbyRadiusMeters = 100_000

	earthRadiusMeters = 6_371_008.8
)

var (
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrInvalidRadius      = errors.New("radius out of range")
)

// Location is the last known position of a user. There is at most one per user.
type Location struct {
	UserID    uuid.UUID
	Lon       float64
	Lat       float64
	UpdatedAt time.Time
}

// NearbyUser is one hit of a proximity query.
type NearbyUser struct {
	UserID         uuid.UUID
	DistanceMeters float64
	Lon            float64
	Lat            float64
}

func ValidateCoordinates(lon, lat float64) error {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return ErrInvalidCoordinates
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return ErrInvalidCoordinates
	}
	return nil
}

// ValidateRadius accepts radii in (0, maxMeters]. A non-positive maxMeters
// leaves the radius unbounded.
func ValidateRadius(radiusMeters, maxMeters float64) error {
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return ErrInvalidRadius
	}
	if maxMeters > 0 && radiusMeters > maxMeters {
		return ErrInvalidRadius
	}
	return nil
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lon1, lat1, lon2, lat2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
