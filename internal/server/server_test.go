package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/internal/service"
)

type fakeDiscovery struct {
	searchResults []service.SearchResult
	searchErr     error
	detail        *service.ReviewDetailResult
	detailErr     error

	reportErr error

	lastSearch service.SearchRequest
	lastDetail service.ReviewDetailRequest
	lastReport service.AddReportRequest
}

func (f *fakeDiscovery) Search(_ context.Context, req service.SearchRequest) ([]service.SearchResult, error) {
	f.lastSearch = req
	return f.searchResults, f.searchErr
}

func (f *fakeDiscovery) ReviewDetail(_ context.Context, req service.ReviewDetailRequest) (*service.ReviewDetailResult, error) {
	f.lastDetail = req
	return f.detail, f.detailErr
}

func (f *fakeDiscovery) AddReport(_ context.Context, req service.AddReportRequest) (*model.CommunityReport, error) {
	f.lastReport = req
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return &model.CommunityReport{
		ID:          "generated-id",
		PlaceID:     req.PlaceID,
		UserID:      req.UserID,
		Rating:      req.Rating,
		FeltSafe:    req.FeltSafe,
		DedicatedGF: req.DedicatedGF,
		Comment:     req.Comment,
	}, nil
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := New(&fakeDiscovery{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSearch_RoundsDistanceForDisplay(t *testing.T) {
	t.Parallel()

	distance := 1.2388
	score := 8.25
	fake := &fakeDiscovery{searchResults: []service.SearchResult{{
		PlaceID:        "p1",
		Name:           "Via Napoli",
		Rating:         4.5,
		WiseBitesScore: &score,
		DistanceMiles:  &distance,
		Cached:         true,
		State:          service.FreshnessFresh,
	}}}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/search", map[string]any{
		"query":    "pizza",
		"user_lat": 33.749,
		"user_lon": -84.388,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []struct {
			PlaceID       string   `json:"place_id"`
			Distance      *float64 `json:"distance_miles"`
			IsCached      bool     `json:"is_cached"`
			Freshness     string   `json:"freshness"`
			WiseBites     *float64 `json:"wise_bites_score"`
			CommunityCnt  int      `json:"community_count"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)

	got := resp.Results[0]
	require.NotNil(t, got.Distance)
	assert.InDelta(t, 1.24, *got.Distance, 1e-9, "distance is rounded to two decimals for display")
	assert.True(t, got.IsCached)
	assert.Equal(t, "fresh", got.Freshness)
	require.NotNil(t, got.WiseBites)
	assert.InDelta(t, 8.25, *got.WiseBites, 1e-9)

	require.NotNil(t, fake.lastSearch.UserLat)
	assert.InDelta(t, 33.749, *fake.lastSearch.UserLat, 1e-9)
}

func TestSearch_InvalidInputIs400(t *testing.T) {
	t.Parallel()

	fake := &fakeDiscovery{searchErr: eris.Wrap(service.ErrInvalidInput, "query is required")}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/search", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_MalformedBodyIs400(t *testing.T) {
	t.Parallel()

	srv := New(&fakeDiscovery{})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_UnconfiguredIs503(t *testing.T) {
	t.Parallel()

	fake := &fakeDiscovery{searchErr: service.ErrUnavailable}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/search", map[string]any{"query": "pizza", "location": "Atlanta"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearch_UnexpectedErrorIs500(t *testing.T) {
	t.Parallel()

	fake := &fakeDiscovery{searchErr: eris.New("boom")}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/search", map[string]any{"query": "pizza", "location": "Atlanta"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom", "internal details stay out of responses")
}

func TestReviews_ProjectsDetail(t *testing.T) {
	t.Parallel()

	oracleScore := 8.0
	wise := 7.8
	fake := &fakeDiscovery{detail: &service.ReviewDetailResult{
		Reviews: []model.Review{
			{Source: "Google (via SerpApi)", Text: "celiac safe", Rating: 5, Author: "A", Relevant: true},
		},
		RelevantCount:   1,
		AvgSafetyRating: 5.0,
		OracleScore:     &oracleScore,
		OracleSummary:   "Generally positive signals.",
		WiseBitesScore:  &wise,
		CommunityCount:  2,
		CommunityMean:   4.5,
		DedicatedGF:     true,
		Source:          service.SourceLive,
	}}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/reviews", map[string]any{
		"place_id":      "p1",
		"name":          "Via Napoli",
		"force_refresh": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Reviews         []map[string]any `json:"reviews"`
		RelevantCount   int              `json:"relevant_count"`
		AISafetyScore   *float64         `json:"ai_safety_score"`
		AISummary       string           `json:"ai_summary"`
		WiseBitesScore  *float64         `json:"wise_bites_score"`
		CommunityCount  int              `json:"community_count"`
		CommunityMean   float64          `json:"community_mean"`
		DedicatedGF     bool             `json:"dedicated_gf"`
		Source          string           `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Reviews, 1)
	assert.Equal(t, "celiac safe", resp.Reviews[0]["text"])
	require.NotNil(t, resp.AISafetyScore)
	assert.InDelta(t, 8.0, *resp.AISafetyScore, 1e-9)
	require.NotNil(t, resp.WiseBitesScore)
	assert.InDelta(t, 7.8, *resp.WiseBitesScore, 1e-9)
	assert.Equal(t, 2, resp.CommunityCount)
	assert.InDelta(t, 4.5, resp.CommunityMean, 1e-9)
	assert.Equal(t, "live", resp.Source)
	assert.True(t, resp.DedicatedGF)

	assert.True(t, fake.lastDetail.ForceRefresh)
	assert.Equal(t, "p1", fake.lastDetail.PlaceID)
}

func TestAddReport_Created(t *testing.T) {
	t.Parallel()

	fake := &fakeDiscovery{}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/reports", map[string]any{
		"place_id":     "p1",
		"user_id":      "u1",
		"rating":       5,
		"felt_safe":    true,
		"dedicated_gf": true,
		"comment":      "dedicated fryer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID      string  `json:"id"`
		PlaceID string  `json:"place_id"`
		Rating  float64 `json:"rating"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generated-id", resp.ID)
	assert.Equal(t, "p1", resp.PlaceID)
	assert.InDelta(t, 5.0, resp.Rating, 1e-9)
	assert.Equal(t, "u1", fake.lastReport.UserID)
}

func TestAddReport_InvalidIs400(t *testing.T) {
	t.Parallel()

	fake := &fakeDiscovery{reportErr: eris.Wrap(service.ErrInvalidInput, "rating must be between 1 and 5")}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/reports", map[string]any{"place_id": "p1", "user_id": "u1", "rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviews_EmptyReviewListSerializesAsArray(t *testing.T) {
	t.Parallel()

	fake := &fakeDiscovery{detail: &service.ReviewDetailResult{Source: service.SourceCache}}
	srv := New(fake)

	rec := postJSON(t, srv, "/api/reviews", map[string]any{"place_id": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reviews":[]`)
}
