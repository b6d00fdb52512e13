package model

import "time"

// TrustTier classifies a community reporter. The tier lives on the reporter's
// profile and is joined onto reports at read time, never stored on the report.
type TrustTier string

const (
	TierStandard TrustTier = "standard"
	TierPremium  TrustTier = "premium"
)

// CommunityReport is a purpose-specific gluten-safety report submitted by a
// community member for one restaurant. Reports are immutable once created.
// Tier and Sensitivity live on the reporter's profile and are joined in at
// read time.
type CommunityReport struct {
	ID          string    `json:"id"`
	PlaceID     string    `json:"place_id"`
	UserID      string    `json:"user_id,omitempty"`
	Rating      float64   `json:"rating"`
	FeltSafe    bool      `json:"felt_safe"`
	DedicatedGF bool      `json:"dedicated_gf"`
	Comment     string    `json:"comment,omitempty"`
	Tier        TrustTier `json:"tier"`
	Sensitivity string    `json:"sensitivity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SourceClass labels where a scored review item came from, in ascending
// order of trust: public review, standard community report, premium
// community report.
type SourceClass string

const (
	SourcePublic            SourceClass = "public"
	SourceCommunityStandard SourceClass = "community_standard"
	SourceCommunityPremium  SourceClass = "community_premium"
)

// Label returns the trust label used to prefix review text in the oracle
// prompt.
func (s SourceClass) Label() string {
	switch s {
	case SourceCommunityPremium:
		return "community/premium"
	case SourceCommunityStandard:
		return "community/standard"
	default:
		return "public"
	}
}

// ScoredReviewItem is the ephemeral unit of text handed to the safety
// oracle: a review body plus its source classification and an optional
// dietary-sensitivity label. It is never persisted.
type ScoredReviewItem struct {
	Text        string
	Source      SourceClass
	Sensitivity string
	Relevant    bool
}
