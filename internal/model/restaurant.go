package model

import "time"

// ScoreVersion tags stored records with the composite-scoring formula version
// that produced them. Bump when the formula changes so stale scores can be
// distinguished from scores computed under the current semantics.
const ScoreVersion = 2

// Review is one public review snippet attached to a restaurant record.
type Review struct {
	Source   string  `json:"source"`
	Text     string  `json:"text"`
	Rating   float64 `json:"rating"`
	Author   string  `json:"author"`
	Date     string  `json:"date"`
	Relevant bool    `json:"relevant"`
}

// RestaurantRecord is the persisted per-restaurant document, keyed by the
// stable place identifier. Records are created on first review-detail
// computation and upserted on every recomputation; they are never deleted.
// Staleness is logical, via LastUpdated.
type RestaurantRecord struct {
	PlaceID         string    `json:"place_id"`
	Name            string    `json:"name"`
	Address         string    `json:"address"`
	City            string    `json:"city,omitempty"`
	Latitude        float64   `json:"latitude,omitempty"`
	Longitude       float64   `json:"longitude,omitempty"`
	Hours           []string  `json:"hours_schedule,omitempty"`
	Types           []string  `json:"types,omitempty"`
	PriceLevel      string    `json:"price_level,omitempty"`
	Rating          float64   `json:"rating"`
	Reviews         []Review  `json:"reviews,omitempty"`
	RelevantCount   int       `json:"relevant_count"`
	AvgSafetyRating float64   `json:"average_safety_rating"`
	OracleScore     *float64  `json:"ai_safety_score,omitempty"`
	OracleSummary   string    `json:"ai_summary,omitempty"`
	WiseBitesScore  *float64  `json:"wise_bites_score,omitempty"`
	CommunityCount  int       `json:"community_count"`
	CommunityMean   float64   `json:"community_mean"`
	DedicatedGF     bool      `json:"dedicated_gf"`
	ScoreVersion    int       `json:"score_version"`
	LastUpdated     time.Time `json:"last_updated"`
}

// HasCoords reports whether the record carries a usable coordinate pair.
// Exact (0,0) is treated as absent.
func (r *RestaurantRecord) HasCoords() bool {
	return r.Latitude != 0 || r.Longitude != 0
}
