// Package service implements the discovery pipeline: search merge and
// ranking, the review-detail recompute path, and the freshness policy that
// decides when to trust stored data versus refetch and rescore.
package service

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/safebites/safebites-api/internal/lru"
	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/internal/oracle"
	"github.com/safebites/safebites-api/internal/resolver"
	"github.com/safebites/safebites-api/internal/store"
	"github.com/safebites/safebites-api/pkg/places"
	"github.com/safebites/safebites-api/pkg/serpapi"
)

// Defaults for the tunable policy knobs.
const (
	DefaultSearchRadiusMiles   = 10.0
	DefaultSearchCacheCapacity = 100
	backfillTimeout            = 5 * time.Second
)

// Sentinel errors the HTTP layer maps to status codes.
var (
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = eris.New("service: invalid input")
	// ErrUnavailable marks operations whose required collaborator was not
	// configured at startup.
	ErrUnavailable = eris.New("service: collaborator not configured")
)

// Oracle is the safety-analysis surface the review path needs.
type Oracle interface {
	Analyze(ctx context.Context, items []model.ScoredReviewItem) oracle.Assessment
}

// AddressResolver turns a free-text address into coordinates and a city
// label.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) (resolver.Location, bool)
}

// Options tune the freshness and search policy.
type Options struct {
	FreshnessWindow     time.Duration
	SearchRadiusMiles   float64
	SearchCacheCapacity int
}

// Service wires the collaborators behind the two public operations, Search
// and ReviewDetail. Any collaborator may be nil when its credential is
// missing; operations that depend on it return ErrUnavailable.
type Service struct {
	store    store.Store
	places   places.Client
	serp     serpapi.Client
	resolver AddressResolver
	oracle   Oracle

	window      time.Duration
	radiusMiles float64
	searchCache *lru.Cache[string, []places.Place]
	now         func() time.Time
}

// New creates a Service.
func New(st store.Store, pl places.Client, sp serpapi.Client, res AddressResolver, orc Oracle, opts Options) *Service {
	window := opts.FreshnessWindow
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	radius := opts.SearchRadiusMiles
	if radius <= 0 {
		radius = DefaultSearchRadiusMiles
	}
	capacity := opts.SearchCacheCapacity
	if capacity < 1 {
		capacity = DefaultSearchCacheCapacity
	}
	return &Service{
		store:       st,
		places:      pl,
		serp:        sp,
		resolver:    res,
		oracle:      orc,
		window:      window,
		radiusMiles: radius,
		searchCache: lru.New[string, []places.Place](capacity),
		now:         func() time.Time { return time.Now().UTC() },
	}
}
