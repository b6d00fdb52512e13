package service

import (
	"time"

	"github.com/safebites/safebites-api/internal/model"
)

// DefaultFreshnessWindow is how long a computed record is served without
// recomputation.
const DefaultFreshnessWindow = 30 * 24 * time.Hour

// Freshness is the per-record cache state.
type Freshness int

const (
	// FreshnessAbsent means no record exists for the place identifier.
	FreshnessAbsent Freshness = iota
	// FreshnessFresh means the record is within the freshness window.
	FreshnessFresh
	// FreshnessStale means the record exists but has aged out.
	FreshnessStale
)

func (f Freshness) String() string {
	switch f {
	case FreshnessFresh:
		return "fresh"
	case FreshnessStale:
		return "stale"
	default:
		return "absent"
	}
}

// freshnessOf classifies a record against the window. Transition to Fresh
// happens only via a successful recompute and upsert, which stamps
// LastUpdated.
func freshnessOf(rec *model.RestaurantRecord, now time.Time, window time.Duration) Freshness {
	if rec == nil {
		return FreshnessAbsent
	}
	if now.Sub(rec.LastUpdated) < window {
		return FreshnessFresh
	}
	return FreshnessStale
}
