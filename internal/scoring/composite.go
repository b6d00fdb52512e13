// Package scoring implements the WiseBites composite safety score: a
// deterministic blend of the oracle safety score, aggregate public ratings,
// and tiered community report counts.
package scoring

import "math"

// Inputs are the signals the composite formula consumes. OracleScore is
// 0-10 where 0 means the analysis failed or had nothing to read; ratings
// are on the public 0-5 scale.
type Inputs struct {
	OracleScore         float64
	PublicRating        float64
	RelevantPublicCount int
	CommunityMean       float64
	SafeStandard        int
	SafePremium         int
	UnsafeStandard      int
	UnsafePremium       int
	DedicatedTag        int
}

// TotalCommunity returns the community report count across all four
// safe/unsafe tiers.
func (in Inputs) TotalCommunity() int {
	return in.SafeStandard + in.SafePremium + in.UnsafeStandard + in.UnsafePremium
}

// Composite computes the WiseBites score in [1.0, 10.0], rounded to one
// decimal. The second return value is false when there is no basis for
// scoring at all (no community reports and no relevant public reviews);
// "insufficient data" is distinct from a low score.
//
// With any community signal present (verified mode) the community terms
// dominate: they are purpose-specific gluten-safety evidence, unlike the
// general-satisfaction public rating. A single premium-tier unsafe report
// carries a 25-point penalty against a maximum 5-point single bonus; a
// celiac reaction missed is far more costly than a mediocre meal
// recommended.
func Composite(in Inputs) (float64, bool) {
	community := in.TotalCommunity()
	if community == 0 && in.RelevantPublicCount == 0 {
		return 0, false
	}

	var raw float64
	if community > 0 {
		// Verified mode.
		base := in.OracleScore*7 + in.CommunityMean*6
		bonuses := float64(in.SafeStandard)*2 + float64(in.SafePremium)*5 + float64(in.DedicatedTag)*5
		penalties := float64(in.UnsafeStandard)*15 + float64(in.UnsafePremium)*25
		raw = (base + bonuses - penalties) / 10
	} else {
		// Cold-start mode: public reviews only. Trust the public rating
		// more once a handful of relevant reviews back it.
		confidence := 2.0
		if in.RelevantPublicCount > 3 {
			confidence = 4.0
		}
		raw = in.OracleScore*8/10 + in.PublicRating*confidence/10
	}

	if raw < 1 {
		raw = 1
	}
	if raw > 10 {
		raw = 10
	}
	return math.Round(raw*10) / 10, true
}
