// Package resolver turns free-text addresses into coordinates and a short
// "City, ST" label, memoizing results in a bounded LRU so repeated
// searches never re-invoke the geocoding collaborator.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/safebites/safebites-api/internal/geo"
	"github.com/safebites/safebites-api/internal/lru"
	"github.com/safebites/safebites-api/pkg/geocode"
)

// DefaultCacheCapacity bounds the memoized lookups per process.
const DefaultCacheCapacity = 100

// Location is a resolved address.
type Location struct {
	Latitude  float64
	Longitude float64
	City      string
}

// Resolver memoizes geocoding lookups keyed by the exact input string.
type Resolver struct {
	geocoder geocode.Client
	cache    *lru.Cache[string, resolution]
}

// resolution is the cached outcome; found=false records a definitive miss
// so repeated lookups of a bad address stay cheap.
type resolution struct {
	loc   Location
	found bool
}

// New creates a Resolver. Capacity values below 1 fall back to
// DefaultCacheCapacity.
func New(geocoder geocode.Client, capacity int) *Resolver {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	return &Resolver{
		geocoder: geocoder,
		cache:    lru.New[string, resolution](capacity),
	}
}

// Resolve maps an address or "city, state" string to coordinates. The
// second return value is false when the address cannot be resolved; a
// geocoding transport error degrades to not-found and is not cached, so a
// transient outage does not poison the memo.
func (r *Resolver) Resolve(ctx context.Context, address string) (Location, bool) {
	if address == "" {
		return Location{}, false
	}

	if cached, ok := r.cache.Get(address); ok {
		return cached.loc, cached.found
	}

	result, err := r.geocoder.Geocode(ctx, address)
	if err != nil {
		zap.L().Warn("resolver: geocode failed",
			zap.String("address", address),
			zap.Error(err),
		)
		return Location{}, false
	}

	if !result.Matched {
		r.cache.Put(address, resolution{})
		return Location{}, false
	}

	city := geo.ExtractCity(result.FormattedAddress)
	if city == "" {
		city = geo.ExtractCity(address)
	}
	loc := Location{
		Latitude:  result.Latitude,
		Longitude: result.Longitude,
		City:      city,
	}
	r.cache.Put(address, resolution{loc: loc, found: true})
	return loc, true
}
