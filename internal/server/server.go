// Package server exposes the discovery pipeline over HTTP: search, review
// detail, and a health probe. Handlers validate input, map service errors
// to status codes, and shape records into response projections.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/safebites/safebites-api/internal/geo"
	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/internal/service"
)

// Discovery is the service surface the handlers consume.
type Discovery interface {
	Search(ctx context.Context, req service.SearchRequest) ([]service.SearchResult, error)
	ReviewDetail(ctx context.Context, req service.ReviewDetailRequest) (*service.ReviewDetailResult, error)
	AddReport(ctx context.Context, req service.AddReportRequest) (*model.CommunityReport, error)
}

// Server is the HTTP front of the discovery service.
type Server struct {
	svc    Discovery
	router chi.Router
}

// New builds the router.
func New(svc Discovery) *Server {
	s := &Server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/search", s.handleSearch)
	r.Post("/api/reviews", s.handleReviews)
	r.Post("/api/reports", s.handleAddReport)

	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query    string   `json:"query"`
	Location string   `json:"location,omitempty"`
	Address  string   `json:"address,omitempty"`
	UserLat  *float64 `json:"user_lat,omitempty"`
	UserLon  *float64 `json:"user_lon,omitempty"`
}

type searchResult struct {
	PlaceID        string   `json:"place_id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	City           string   `json:"city,omitempty"`
	Latitude       float64  `json:"latitude,omitempty"`
	Longitude      float64  `json:"longitude,omitempty"`
	Rating         float64  `json:"rating"`
	Hours          []string `json:"hours_schedule,omitempty"`
	Types          []string `json:"types,omitempty"`
	PriceLevel     string   `json:"price_level,omitempty"`
	IsOpenNow      *bool    `json:"is_open_now,omitempty"`
	WiseBitesScore *float64 `json:"wise_bites_score,omitempty"`
	CommunityCount int      `json:"community_count"`
	DedicatedGF    bool     `json:"dedicated_gf"`
	DistanceMiles  *float64 `json:"distance_miles,omitempty"`
	IsCached       bool     `json:"is_cached"`
	Freshness      string   `json:"freshness"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.svc.Search(r.Context(), service.SearchRequest{
		Query:    req.Query,
		Location: req.Location,
		Address:  req.Address,
		UserLat:  req.UserLat,
		UserLng:  req.UserLon,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := searchResponse{Results: make([]searchResult, 0, len(results))}
	for _, res := range results {
		out.Results = append(out.Results, projectResult(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func projectResult(res service.SearchResult) searchResult {
	var distance *float64
	if res.DistanceMiles != nil {
		rounded := geo.RoundMiles(*res.DistanceMiles)
		distance = &rounded
	}
	return searchResult{
		PlaceID:        res.PlaceID,
		Name:           res.Name,
		Address:        res.Address,
		City:           res.City,
		Latitude:       res.Latitude,
		Longitude:      res.Longitude,
		Rating:         res.Rating,
		Hours:          res.Hours,
		Types:          res.Types,
		PriceLevel:     res.PriceLevel,
		IsOpenNow:      res.OpenNow,
		WiseBitesScore: res.WiseBitesScore,
		CommunityCount: res.CommunityCount,
		DedicatedGF:    res.DedicatedGF,
		DistanceMiles:  distance,
		IsCached:       res.Cached,
		Freshness:      res.State.String(),
	}
}

type reviewsRequest struct {
	PlaceID      string   `json:"place_id"`
	Name         string   `json:"name,omitempty"`
	Address      string   `json:"address,omitempty"`
	City         string   `json:"city,omitempty"`
	Rating       float64  `json:"rating,omitempty"`
	Hours        []string `json:"hours_schedule,omitempty"`
	Lat          float64  `json:"lat,omitempty"`
	Lng          float64  `json:"lng,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

type reviewsResponse struct {
	Reviews         []reviewItem `json:"reviews"`
	RelevantCount   int          `json:"relevant_count"`
	AvgSafetyRating float64      `json:"average_safety_rating"`
	OracleScore     *float64     `json:"ai_safety_score,omitempty"`
	OracleSummary   string       `json:"ai_summary,omitempty"`
	WiseBitesScore  *float64     `json:"wise_bites_score,omitempty"`
	CommunityCount  int          `json:"community_count"`
	CommunityMean   float64      `json:"community_mean"`
	DedicatedGF     bool         `json:"dedicated_gf"`
	Source          string       `json:"source"`
}

type reviewItem struct {
	Source   string  `json:"source"`
	Text     string  `json:"text"`
	Rating   float64 `json:"rating"`
	Author   string  `json:"author"`
	Date     string  `json:"date,omitempty"`
	Relevant bool    `json:"relevant"`
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	var req reviewsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	detail, err := s.svc.ReviewDetail(r.Context(), service.ReviewDetailRequest{
		PlaceID:      req.PlaceID,
		Name:         req.Name,
		Address:      req.Address,
		City:         req.City,
		Rating:       req.Rating,
		Hours:        req.Hours,
		Latitude:     req.Lat,
		Longitude:    req.Lng,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := reviewsResponse{
		Reviews:         make([]reviewItem, 0, len(detail.Reviews)),
		RelevantCount:   detail.RelevantCount,
		AvgSafetyRating: detail.AvgSafetyRating,
		OracleScore:     detail.OracleScore,
		OracleSummary:   detail.OracleSummary,
		WiseBitesScore:  detail.WiseBitesScore,
		CommunityCount:  detail.CommunityCount,
		CommunityMean:   detail.CommunityMean,
		DedicatedGF:     detail.DedicatedGF,
		Source:          detail.Source,
	}
	for _, rev := range detail.Reviews {
		out.Reviews = append(out.Reviews, reviewItem{
			Source:   rev.Source,
			Text:     rev.Text,
			Rating:   rev.Rating,
			Author:   rev.Author,
			Date:     rev.Date,
			Relevant: rev.Relevant,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type addReportRequest struct {
	PlaceID     string  `json:"place_id"`
	UserID      string  `json:"user_id"`
	Rating      float64 `json:"rating"`
	FeltSafe    bool    `json:"felt_safe"`
	DedicatedGF bool    `json:"dedicated_gf"`
	Comment     string  `json:"comment,omitempty"`
}

func (s *Server) handleAddReport(w http.ResponseWriter, r *http.Request) {
	var req addReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rep, err := s.svc.AddReport(r.Context(), service.AddReportRequest{
		PlaceID:     req.PlaceID,
		UserID:      req.UserID,
		Rating:      req.Rating,
		FeltSafe:    req.FeltSafe,
		DedicatedGF: req.DedicatedGF,
		Comment:     req.Comment,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// writeServiceError maps service sentinels onto status codes. Anything
// unrecognized is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "required collaborator is not configured")
	default:
		zap.L().Error("server: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: response encode failed", zap.Error(err))
	}
}
