package service

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safebites/safebites-api/internal/geo"
	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/internal/review"
	"github.com/safebites/safebites-api/internal/scoring"
)

// Review-detail response provenance.
const (
	SourceCache = "cache"
	SourceLive  = "live"
)

// ReviewDetailRequest identifies the place and carries optional seed fields
// from the caller's search result, used to populate a record created on
// first computation.
type ReviewDetailRequest struct {
	PlaceID      string
	Name         string
	Address      string
	City         string
	Rating       float64
	Hours        []string
	Latitude     float64
	Longitude    float64
	ForceRefresh bool
}

// ReviewDetailResult is the scored review detail for one place.
type ReviewDetailResult struct {
	Reviews         []model.Review
	RelevantCount   int
	AvgSafetyRating float64
	OracleScore     *float64
	OracleSummary   string
	WiseBitesScore  *float64
	CommunityCount  int
	CommunityMean   float64
	DedicatedGF     bool
	Source          string
}

// ReviewDetail serves the scored review detail for a place, recomputing
// when the stored record is absent or stale with a refresh requested. A
// stale record without a refresh request is served as stored, except that
// community-derived counts are refreshed live, since reports arrive outside
// this pipeline.
func (s *Service) ReviewDetail(ctx context.Context, req ReviewDetailRequest) (*ReviewDetailResult, error) {
	if s.store == nil || s.serp == nil || s.oracle == nil {
		return nil, ErrUnavailable
	}
	if req.PlaceID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "place_id is required")
	}

	rec, err := s.store.Get(ctx, req.PlaceID)
	if err != nil {
		// A store read failure degrades to a full recompute; the upsert at
		// the end is best-effort anyway.
		zap.L().Warn("service: record read failed",
			zap.String("place_id", req.PlaceID),
			zap.Error(err),
		)
		rec = nil
	}

	switch freshnessOf(rec, s.now(), s.window) {
	case FreshnessFresh:
		return resultFromRecord(rec, SourceCache), nil
	case FreshnessStale:
		if !req.ForceRefresh {
			return s.staleServe(ctx, rec), nil
		}
	}
	return s.recompute(ctx, req, rec), nil
}

// staleServe returns the stored record with the community count, mean
// rating, and dedicated tag refreshed from live reports. The composite
// score is not recomputed here; that only happens on a refresh cycle.
func (s *Service) staleServe(ctx context.Context, rec *model.RestaurantRecord) *ReviewDetailResult {
	out := resultFromRecord(rec, SourceCache)

	reports, err := s.store.ListCommunityReports(ctx, rec.PlaceID)
	if err != nil {
		zap.L().Warn("service: community refresh failed",
			zap.String("place_id", rec.PlaceID),
			zap.Error(err),
		)
		return out
	}
	out.CommunityCount = len(reports)
	var ratingSum float64
	for _, rep := range reports {
		ratingSum += rep.Rating
		if rep.DedicatedGF {
			out.DedicatedGF = true
		}
	}
	if len(reports) > 0 {
		out.CommunityMean = round1(ratingSum / float64(len(reports)))
	}
	return out
}

// recompute runs the full pipeline: fetch public reviews and community
// reports in parallel, aggregate, invoke the oracle, compute the composite
// score, and upsert. Persistence is best-effort: a failed upsert is logged
// and the computed result is still served.
func (s *Service) recompute(ctx context.Context, req ReviewDetailRequest, prev *model.RestaurantRecord) *ReviewDetailResult {
	var (
		public  []model.Review
		reports []model.CommunityReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		got, err := s.serp.Reviews(gctx, req.PlaceID)
		if err != nil {
			zap.L().Warn("service: public review fetch failed",
				zap.String("place_id", req.PlaceID),
				zap.Error(err),
			)
			return nil
		}
		public = got
		return nil
	})
	g.Go(func() error {
		got, err := s.store.ListCommunityReports(gctx, req.PlaceID)
		if err != nil {
			zap.L().Warn("service: community report fetch failed",
				zap.String("place_id", req.PlaceID),
				zap.Error(err),
			)
			return nil
		}
		reports = got
		return nil
	})
	g.Wait() //nolint:errcheck

	items, tally := review.Aggregate(public, reports)
	assessment := s.oracle.Analyze(ctx, items)

	avgRelevant := relevantAverage(public)
	composite, scored := scoring.Composite(scoring.Inputs{
		OracleScore:         assessment.Score,
		PublicRating:        avgRelevant,
		RelevantPublicCount: tally.PublicRelevant,
		CommunityMean:       tally.CommunityMean,
		SafeStandard:        tally.SafeStandard,
		SafePremium:         tally.SafePremium,
		UnsafeStandard:      tally.UnsafeStandard,
		UnsafePremium:       tally.UnsafePremium,
		DedicatedTag:        tally.DedicatedTag,
	})

	rec := buildRecord(req, prev)
	rec.Reviews = public
	rec.RelevantCount = tally.PublicRelevant
	rec.AvgSafetyRating = avgRelevant
	oracleScore := assessment.Score
	rec.OracleScore = &oracleScore
	rec.OracleSummary = assessment.Summary
	if scored {
		rec.WiseBitesScore = &composite
	} else {
		rec.WiseBitesScore = nil
	}
	rec.CommunityCount = tally.TotalCommunity()
	rec.CommunityMean = round1(tally.CommunityMean)
	rec.DedicatedGF = tally.DedicatedTag > 0
	rec.ScoreVersion = model.ScoreVersion
	rec.LastUpdated = s.now()

	if err := s.store.Upsert(ctx, rec); err != nil {
		zap.L().Error("service: record upsert failed",
			zap.String("place_id", rec.PlaceID),
			zap.Error(err),
		)
	}
	return resultFromRecord(rec, SourceLive)
}

// buildRecord layers request seed fields over the previous record, if any.
// Request values win when present; the previous record fills the rest.
func buildRecord(req ReviewDetailRequest, prev *model.RestaurantRecord) *model.RestaurantRecord {
	rec := &model.RestaurantRecord{PlaceID: req.PlaceID}
	if prev != nil {
		clone := *prev
		rec = &clone
	}

	if req.Name != "" {
		rec.Name = req.Name
	}
	if req.Address != "" {
		rec.Address = req.Address
	}
	if req.City != "" {
		rec.City = req.City
	}
	if req.Rating > 0 {
		rec.Rating = req.Rating
	}
	if len(req.Hours) > 0 {
		rec.Hours = req.Hours
	}
	if req.Latitude != 0 || req.Longitude != 0 {
		rec.Latitude = req.Latitude
		rec.Longitude = req.Longitude
	}

	if rec.Name == "" {
		rec.Name = "Unknown"
	}
	if rec.City == "" && rec.Address != "" {
		rec.City = geo.ExtractCity(rec.Address)
	}
	return rec
}

// relevantAverage is the mean rating over relevance-flagged public reviews,
// rounded to one decimal for serving and persistence.
func relevantAverage(public []model.Review) float64 {
	var sum float64
	var n int
	for _, r := range public {
		if r.Relevant {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func resultFromRecord(rec *model.RestaurantRecord, source string) *ReviewDetailResult {
	return &ReviewDetailResult{
		Reviews:         rec.Reviews,
		RelevantCount:   rec.RelevantCount,
		AvgSafetyRating: rec.AvgSafetyRating,
		OracleScore:     rec.OracleScore,
		OracleSummary:   rec.OracleSummary,
		WiseBitesScore:  rec.WiseBitesScore,
		CommunityCount:  rec.CommunityCount,
		CommunityMean:   rec.CommunityMean,
		DedicatedGF:     rec.DedicatedGF,
		Source:          source,
	}
}
