// README: Geocoder resolves free-text addresses to coordinates with a
// hard-coded city fallback so pricing never blocks on a lookup failure.
package geo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"googlemaps.github.io/maps"

	"chomp/internal/logging"
	"chomp/internal/types"
)

const (
	// ConfidenceExact marks a result coming straight from the lookup service.
	ConfidenceExact = 1.0
	// ConfidenceFallback marks a city-level coordinate from the static table.
	ConfidenceFallback = 0.3

	geocodeCacheTTL = 24 * time.Hour
)

// Location is a geocode result. Confidence lets callers flag low-confidence
// addresses without being forced to reject them.
type Location struct {
	Point      types.Point `json:"point"`
	Confidence float64     `json:"confidence"`
}

// cityFallback maps lowercase city names to coordinates. Keyed by the major
// delivery markets; a state-level table backs it up below.
var cityFallback = map[string]types.Point{
	"lagos":         {Lat: 6.5244, Lng: 3.3792},
	"abuja":         {Lat: 9.0765, Lng: 7.3986},
	"port harcourt": {Lat: 4.8156, Lng: 7.0498},
	"ibadan":        {Lat: 7.3775, Lng: 3.9470},
	"kano":          {Lat: 12.0022, Lng: 8.5920},
	"enugu":         {Lat: 6.4584, Lng: 7.5464},
	"benin city":    {Lat: 6.3350, Lng: 5.6037},
	"kaduna":        {Lat: 10.5105, Lng: 7.4165},
	"jos":           {Lat: 9.8965, Lng: 8.8583},
	"owerri":        {Lat: 5.4836, Lng: 7.0333},
}

var stateFallback = map[string]types.Point{
	"lagos":   {Lat: 6.5244, Lng: 3.3792},
	"fct":     {Lat: 9.0765, Lng: 7.3986},
	"rivers":  {Lat: 4.8156, Lng: 7.0498},
	"oyo":     {Lat: 7.3775, Lng: 3.9470},
	"kano":    {Lat: 12.0022, Lng: 8.5920},
	"enugu":   {Lat: 6.4584, Lng: 7.5464},
	"edo":     {Lat: 6.3350, Lng: 5.6037},
	"kaduna":  {Lat: 10.5105, Lng: 7.4165},
	"plateau": {Lat: 9.8965, Lng: 8.8583},
	"imo":     {Lat: 5.4836, Lng: 7.0333},
}

// defaultPoint is the last-resort coordinate (Lagos).
var defaultPoint = types.Point{Lat: 6.5244, Lng: 3.3792}

// Geocoder wraps the lookup service. A nil maps client degrades to the
// fallback table, which keeps tests and keyless deployments working.
type Geocoder struct {
	client *maps.Client
	cache  *redis.Client
}

func NewGeocoder(client *maps.Client, cache *redis.Client) *Geocoder {
	return &Geocoder{client: client, cache: cache}
}

// Geocode resolves an address to coordinates. It never returns an error:
// lookup failures and empty results fall back to the static table.
func (g *Geocoder) Geocode(ctx context.Context, address, city, state string) Location {
	if loc, ok := g.cached(ctx, address); ok {
		return loc
	}
	if g.client != nil {
		results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
			Address: address,
			Region:  "NG",
		})
		if err == nil && len(results) > 0 {
			loc := Location{
				Point: types.Point{
					Lat: results[0].Geometry.Location.Lat,
					Lng: results[0].Geometry.Location.Lng,
				},
				Confidence: ConfidenceExact,
			}
			g.store(ctx, address, loc)
			return loc
		}
		if err != nil {
			logging.Log(logging.Fields{
				Component: "geocoder",
				Status:    "lookup_failed",
				Error:     err.Error(),
			})
		}
	}
	return Fallback(city, state)
}

// Fallback returns a city-level coordinate from the static table, trying the
// city first, then the state, then the default. Always succeeds.
func Fallback(city, state string) Location {
	if p, ok := cityFallback[normalize(city)]; ok {
		return Location{Point: p, Confidence: ConfidenceFallback}
	}
	if p, ok := stateFallback[normalizeState(state)]; ok {
		return Location{Point: p, Confidence: ConfidenceFallback}
	}
	return Location{Point: defaultPoint, Confidence: ConfidenceFallback}
}

func (g *Geocoder) cached(ctx context.Context, address string) (Location, bool) {
	if g.cache == nil || address == "" {
		return Location{}, false
	}
	val, err := g.cache.Get(ctx, cacheKey(address)).Result()
	if err != nil {
		return Location{}, false
	}
	var loc Location
	if err := json.Unmarshal([]byte(val), &loc); err != nil {
		return Location{}, false
	}
	return loc, true
}

func (g *Geocoder) store(ctx context.Context, address string, loc Location) {
	if g.cache == nil || address == "" {
		return
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	_ = g.cache.Set(ctx, cacheKey(address), data, geocodeCacheTTL).Err()
}

func cacheKey(address string) string {
	return "geo:addr:" + normalize(address)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeState(s string) string {
	s = normalize(s)
	s = strings.TrimSuffix(s, " state")
	if s == "abuja" || s == "federal capital territory" {
		return "fct"
	}
	return s
}
