package service

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/safebites/safebites-api/internal/model"
)

// AddReportRequest is a community safety report submission.
type AddReportRequest struct {
	PlaceID     string
	UserID      string
	Rating      float64
	FeltSafe    bool
	DedicatedGF bool
	Comment     string
}

// AddReport validates and persists a community report. Unlike the read
// paths, a store failure here is a real error: the submission would
// otherwise be silently lost.
func (s *Service) AddReport(ctx context.Context, req AddReportRequest) (*model.CommunityReport, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if req.PlaceID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "place_id is required")
	}
	if req.UserID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "user_id is required")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, eris.Wrap(ErrInvalidInput, "rating must be between 1 and 5")
	}

	rep := &model.CommunityReport{
		PlaceID:     req.PlaceID,
		UserID:      req.UserID,
		Rating:      req.Rating,
		FeltSafe:    req.FeltSafe,
		DedicatedGF: req.DedicatedGF,
		Comment:     req.Comment,
	}
	if err := s.store.AddCommunityReport(ctx, rep); err != nil {
		return nil, eris.Wrap(err, "service: add report")
	}
	return rep, nil
}
