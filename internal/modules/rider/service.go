// README: Rider availability service. Tracks which riders can take a
// delivery and answers proximity queries for dispatch.
package rider

import (
	"context"
	"errors"

	"chomp/internal/types"
)

var ErrBadRequest = errors.New("bad request")

// Presence is the geo index the service consults. Backed by Redis GEO in
// production, a sorted in-memory fake in tests.
type Presence interface {
	Add(ctx context.Context, id types.ID, p types.Point) error
	Remove(ctx context.Context, id types.ID) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

type Service struct {
	presence      Presence
	defaultRadius float64
}

func NewService(presence Presence, defaultRadiusKm float64) *Service {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 5
	}
	return &Service{presence: presence, defaultRadius: defaultRadiusKm}
}

// SetAvailable marks a rider as accepting deliveries at the given location.
// Calling it again moves the rider's recorded position.
func (s *Service) SetAvailable(ctx context.Context, riderID types.ID, p types.Point) error {
	if riderID == "" {
		return ErrBadRequest
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrBadRequest
	}
	return s.presence.Add(ctx, riderID, p)
}

// SetUnavailable removes a rider from the dispatch pool. Removing a rider
// that is not present is not an error.
func (s *Service) SetUnavailable(ctx context.Context, riderID types.ID) error {
	if riderID == "" {
		return ErrBadRequest
	}
	return s.presence.Remove(ctx, riderID)
}

// Nearest lists available riders around a pickup point, closest first.
// A non-positive radius falls back to the configured default.
func (s *Service) Nearest(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	if radiusKm <= 0 {
		radiusKm = s.defaultRadius
	}
	return s.presence.Nearby(ctx, p, radiusKm)
}
