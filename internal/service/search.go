package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safebites/safebites-api/internal/geo"
	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/internal/store"
	"github.com/safebites/safebites-api/pkg/places"
)

// SearchRequest is one discovery query. At least one locator (Location,
// Address, or the coordinate pair) must be present.
type SearchRequest struct {
	Query    string
	Location string
	Address  string
	UserLat  *float64
	UserLng  *float64
}

// SearchResult is one merged, score-annotated search hit.
type SearchResult struct {
	PlaceID        string
	Name           string
	Address        string
	City           string
	Latitude       float64
	Longitude      float64
	Rating         float64
	Hours          []string
	Types          []string
	PriceLevel     string
	OpenNow        *bool
	WiseBitesScore *float64
	CommunityCount int
	DedicatedGF    bool
	// DistanceMiles is unrounded; presentation rounding happens at the
	// HTTP layer. Nil when either side lacks coordinates.
	DistanceMiles *float64
	Cached        bool
	State         Freshness
}

// Search resolves the requested location, queries place search and the
// record store in parallel, and merges the two populations deduplicated by
// place identifier. Live hits are annotated with any cached score;
// store-resident places inside the search radius that the live search
// missed are appended as cached results.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if s.places == nil || s.store == nil {
		return nil, ErrUnavailable
	}
	if req.Query == "" {
		return nil, eris.Wrap(ErrInvalidInput, "query is required")
	}

	lat, lng, hasCoords, locLabel := s.resolveLocator(ctx, req)
	if !hasCoords && locLabel == "" {
		return nil, eris.Wrap(ErrInvalidInput, "a location, address, or coordinate pair is required")
	}

	var (
		live   []places.Place
		nearby []store.NearbyRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		live = s.searchPlaces(gctx, places.SearchRequest{
			Query:    req.Query,
			Location: locLabel,
			Lat:      lat,
			Lng:      lng,
			HasBias:  hasCoords,
		})
		return nil
	})
	if hasCoords {
		g.Go(func() error {
			got, err := s.store.QueryNearby(gctx, lat, lng, s.radiusMiles)
			if err != nil {
				zap.L().Warn("service: nearby lookup failed", zap.Error(err))
				return nil
			}
			nearby = got
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	records := s.lookupRecords(ctx, live)
	results := s.merge(live, nearby, records, lat, lng, hasCoords, locLabel)
	rank(results, hasCoords)
	return results, nil
}

// resolveLocator picks coordinates and a location label from the request.
// Without explicit coordinates it geocodes the address, or failing that the
// location phrase, so that a "city, state" request still gets the nearby
// merge and distance annotations.
func (s *Service) resolveLocator(ctx context.Context, req SearchRequest) (lat, lng float64, hasCoords bool, locLabel string) {
	locLabel = req.Location

	if req.UserLat != nil && req.UserLng != nil {
		return *req.UserLat, *req.UserLng, true, locLabel
	}

	if s.resolver != nil {
		target := req.Address
		if target == "" {
			target = req.Location
		}
		if target != "" {
			if loc, ok := s.resolver.Resolve(ctx, target); ok {
				if locLabel == "" {
					locLabel = loc.City
				}
				return loc.Latitude, loc.Longitude, true, locLabel
			}
		}
	}
	// Unresolvable locator: degrade to text search with the address as the
	// location phrase.
	if locLabel == "" {
		locLabel = req.Address
	}
	return 0, 0, false, locLabel
}

// searchPlaces memoizes live text searches in a bounded LRU. Transport
// failures degrade to an empty live set and are not cached.
func (s *Service) searchPlaces(ctx context.Context, req places.SearchRequest) []places.Place {
	key := searchKey(req)
	if cached, ok := s.searchCache.Get(key); ok {
		return cached
	}

	got, err := s.places.TextSearch(ctx, req)
	if err != nil {
		zap.L().Warn("service: place search failed",
			zap.String("query", req.Query),
			zap.Error(err),
		)
		return nil
	}
	s.searchCache.Put(key, got)
	return got
}

func searchKey(req places.SearchRequest) string {
	if req.HasBias {
		return fmt.Sprintf("%s|%.4f,%.4f", req.Query, req.Lat, req.Lng)
	}
	return req.Query + "|" + req.Location
}

// lookupRecords batch-fetches stored records for the live hits. A store
// failure degrades to no cached annotations.
func (s *Service) lookupRecords(ctx context.Context, live []places.Place) map[string]*model.RestaurantRecord {
	if len(live) == 0 {
		return nil
	}
	ids := make([]string, 0, len(live))
	for _, p := range live {
		ids = append(ids, p.ID)
	}
	records, err := s.store.GetMany(ctx, ids)
	if err != nil {
		zap.L().Warn("service: record batch lookup failed", zap.Error(err))
		return nil
	}
	return records
}

func (s *Service) merge(live []places.Place, nearby []store.NearbyRecord, records map[string]*model.RestaurantRecord, lat, lng float64, hasCoords bool, locLabel string) []SearchResult {
	now := s.now()
	results := make([]SearchResult, 0, len(live)+len(nearby))
	seen := make(map[string]bool, len(live))

	for _, p := range live {
		seen[p.ID] = true
		rec := records[p.ID]

		r := SearchResult{
			PlaceID:    p.ID,
			Name:       p.Name,
			Address:    p.Address,
			City:       geo.ExtractCity(p.Address),
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Rating:     p.Rating,
			Hours:      p.Hours,
			Types:      p.Types,
			PriceLevel: p.PriceLevel,
			OpenNow:    p.OpenNow,
			State:      freshnessOf(rec, now, s.window),
		}
		if r.City == "" {
			r.City = locLabel
		}
		if rec != nil {
			r.Cached = true
			r.WiseBitesScore = rec.WiseBitesScore
			r.CommunityCount = rec.CommunityCount
			r.DedicatedGF = rec.DedicatedGF
			s.backfill(p, rec)
		}
		if hasCoords {
			if miles, ok := geo.Distance(lat, lng, p.Latitude, p.Longitude); ok {
				r.DistanceMiles = &miles
			}
		}
		results = append(results, r)
	}

	for _, n := range nearby {
		if seen[n.Record.PlaceID] {
			continue
		}
		rec := n.Record
		miles := n.Miles
		results = append(results, SearchResult{
			PlaceID:        rec.PlaceID,
			Name:           rec.Name,
			Address:        rec.Address,
			City:           rec.City,
			Latitude:       rec.Latitude,
			Longitude:      rec.Longitude,
			Rating:         rec.Rating,
			Hours:          rec.Hours,
			Types:          rec.Types,
			PriceLevel:     rec.PriceLevel,
			WiseBitesScore: rec.WiseBitesScore,
			CommunityCount: rec.CommunityCount,
			DedicatedGF:    rec.DedicatedGF,
			DistanceMiles:  &miles,
			Cached:         true,
			State:          freshnessOf(&rec, now, s.window),
		})
	}
	return results
}

// backfill patches stored-record gaps from a fresher live search result.
// The write is fire-and-forget: it must never block or fail the read path.
func (s *Service) backfill(p places.Place, rec *model.RestaurantRecord) {
	var patch store.FieldPatch
	if !rec.HasCoords() && (p.Latitude != 0 || p.Longitude != 0) {
		lat, lng := p.Latitude, p.Longitude
		patch.Latitude = &lat
		patch.Longitude = &lng
	}
	if len(rec.Hours) == 0 && len(p.Hours) > 0 {
		patch.Hours = p.Hours
	}
	if len(rec.Types) == 0 && len(p.Types) > 0 {
		patch.Types = p.Types
	}
	if rec.PriceLevel == "" && p.PriceLevel != "" {
		level := p.PriceLevel
		patch.PriceLevel = &level
	}
	if rec.Rating == 0 && p.Rating > 0 {
		rating := p.Rating
		patch.Rating = &rating
	}
	if patch.Empty() {
		return
	}

	placeID := rec.PlaceID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backfillTimeout)
		defer cancel()
		if err := s.store.UpdateFields(ctx, placeID, patch); err != nil {
			zap.L().Warn("service: backfill failed",
				zap.String("place_id", placeID),
				zap.Error(err),
			)
		}
	}()
}

// rank orders merged results. With user coordinates: score descending,
// unscored last, ties broken by unrounded distance ascending. Without
// coordinates: public rating descending.
func rank(results []SearchResult, hasCoords bool) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !hasCoords {
			return a.Rating > b.Rating
		}

		switch {
		case a.WiseBitesScore != nil && b.WiseBitesScore == nil:
			return true
		case a.WiseBitesScore == nil && b.WiseBitesScore != nil:
			return false
		case a.WiseBitesScore != nil && b.WiseBitesScore != nil && *a.WiseBitesScore != *b.WiseBitesScore:
			return *a.WiseBitesScore > *b.WiseBitesScore
		}

		switch {
		case a.DistanceMiles != nil && b.DistanceMiles == nil:
			return true
		case a.DistanceMiles == nil && b.DistanceMiles != nil:
			return false
		case a.DistanceMiles != nil && b.DistanceMiles != nil && *a.DistanceMiles != *b.DistanceMiles:
			return *a.DistanceMiles < *b.DistanceMiles
		}
		return a.Rating > b.Rating
	})
}
