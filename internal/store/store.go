// Package store persists restaurant records and community reports behind a
// driver-switched interface (postgres for production, sqlite for local
// development).
package store

import (
	"context"

	"github.com/safebites/safebites-api/internal/model"
)

// FieldPatch is a partial backfill of a stored record: only non-nil /
// non-empty fields are written. It exists so a richer place-search result
// can fill gaps in an older record without a full recompute.
type FieldPatch struct {
	Latitude   *float64
	Longitude  *float64
	Hours      []string
	Types      []string
	PriceLevel *string
	Rating     *float64
}

// Empty reports whether the patch would write nothing.
func (p FieldPatch) Empty() bool {
	return p.Latitude == nil && p.Longitude == nil && len(p.Hours) == 0 &&
		len(p.Types) == 0 && p.PriceLevel == nil && p.Rating == nil
}

// Store is the persistence interface for the discovery pipeline.
type Store interface {
	// Get returns the record for a place identifier, or (nil, nil) when
	// absent.
	Get(ctx context.Context, placeID string) (*model.RestaurantRecord, error)
	// GetMany returns the records present for the given identifiers,
	// keyed by place identifier. Missing identifiers are simply absent
	// from the map.
	GetMany(ctx context.Context, placeIDs []string) (map[string]*model.RestaurantRecord, error)
	// Upsert inserts or fully replaces a record.
	Upsert(ctx context.Context, rec *model.RestaurantRecord) error
	// UpdateFields applies a partial backfill to an existing record.
	UpdateFields(ctx context.Context, placeID string, patch FieldPatch) error
	// QueryNearby returns stored records within radiusMiles of the given
	// point, with unrounded distance attached.
	QueryNearby(ctx context.Context, lat, lng, radiusMiles float64) ([]NearbyRecord, error)
	// ListCommunityReports returns a place's community reports with the
	// reporter's trust tier and sensitivity label joined in.
	ListCommunityReports(ctx context.Context, placeID string) ([]model.CommunityReport, error)
	// AddCommunityReport persists a new report, filling in its generated
	// identifier and creation time.
	AddCommunityReport(ctx context.Context, rep *model.CommunityReport) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// NearbyRecord pairs a stored record with its distance from the query
// point.
type NearbyRecord struct {
	Record model.RestaurantRecord
	Miles  float64
}
