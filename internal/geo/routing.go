// README: Router asks the directions service for road distance and falls
// back to the great-circle value when no route comes back.
package geo

import (
	"fmt"
	"time"

	"context"

	"googlemaps.github.io/maps"

	"chomp/internal/logging"
	"chomp/internal/types"
)

// fallbackSpeedKmPerMin matches the pricing engine's delivery speed so the
// synthetic duration stays consistent with the quoted ETA.
const fallbackSpeedKmPerMin = 0.5

// Router wraps the directions service. A nil client always uses Haversine.
type Router struct {
	client *maps.Client
}

func NewRouter(client *maps.Client) *Router {
	return &Router{client: client}
}

// RoadDistance returns the driving distance in km and the trip duration
// between two points. It never fails: unreachable service or an empty route
// set degrades to the Haversine distance with a duration derived from the
// average delivery speed.
func (r *Router) RoadDistance(ctx context.Context, a, b types.Point) (float64, time.Duration) {
	if r.client != nil {
		routes, _, err := r.client.Directions(ctx, &maps.DirectionsRequest{
			Origin:      latLng(a),
			Destination: latLng(b),
			Mode:        maps.TravelModeDriving,
			Region:      "NG",
		})
		if err == nil && len(routes) > 0 && len(routes[0].Legs) > 0 {
			leg := routes[0].Legs[0]
			return round2(float64(leg.Distance.Meters) / 1000.0), leg.Duration
		}
		if err != nil {
			logging.Log(logging.Fields{
				Component: "router",
				Status:    "directions_failed",
				Error:     err.Error(),
			})
		}
	}
	km := HaversineKm(a, b)
	dur := time.Duration(km/fallbackSpeedKmPerMin) * time.Minute
	return km, dur
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
