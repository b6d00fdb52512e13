// Package review merges public reviews and tiered community reports into
// the single ranked sequence handed to the safety oracle, and computes the
// per-tier tallies the composite score engine consumes.
package review

import (
	"sort"
	"strings"

	"github.com/safebites/safebites-api/internal/model"
)

// MaxItems bounds the ranked sequence sent to the oracle.
const MaxItems = 50

// Tier weights rank community premium above community standard above
// public; the keyword bonus lets an on-topic public review outrank an
// off-topic community comment of the tier below it.
const (
	weightPublic            = 1
	weightCommunityStandard = 3
	weightCommunityPremium  = 5
	keywordBonus            = 4
)

// relevanceKeywords mark text as gluten-safety specific.
var relevanceKeywords = []string{
	"gluten",
	"celiac",
	"coeliac",
	"cross-contamination",
	"dedicated fryer",
	"dedicated",
}

// Tally carries the side outputs of aggregation: per-tier counts and the
// mean community rating. These feed the composite score engine
// independently of the truncated text sequence.
type Tally struct {
	PublicRelevant int
	SafeStandard   int
	SafePremium    int
	UnsafeStandard int
	UnsafePremium  int
	DedicatedTag   int
	CommunityMean  float64
}

// TotalCommunity returns the total number of community reports seen.
func (t Tally) TotalCommunity() int {
	return t.SafeStandard + t.SafePremium + t.UnsafeStandard + t.UnsafePremium
}

// Aggregate merges one restaurant's public reviews and community reports
// into a ranked, source-labeled sequence truncated to MaxItems, plus the
// tier tallies. Ordering is stable with respect to input order on weight
// ties; community reports are appended after public reviews before ranking.
func Aggregate(public []model.Review, reports []model.CommunityReport) ([]model.ScoredReviewItem, Tally) {
	var tally Tally

	type ranked struct {
		item   model.ScoredReviewItem
		weight int
	}
	items := make([]ranked, 0, len(public)+len(reports))

	for _, r := range public {
		// Empty-bodied reviews carry no evidence; they neither rank nor
		// count as relevant.
		if r.Text == "" {
			continue
		}
		if r.Relevant {
			tally.PublicRelevant++
		}
		items = append(items, ranked{
			item: model.ScoredReviewItem{
				Text:     r.Text,
				Source:   model.SourcePublic,
				Relevant: r.Relevant,
			},
			weight: weightPublic + bonus(r.Text),
		})
	}

	var ratingSum float64
	for _, rep := range reports {
		ratingSum += rep.Rating

		source := model.SourceCommunityStandard
		weight := weightCommunityStandard
		if rep.Tier == model.TierPremium {
			source = model.SourceCommunityPremium
			weight = weightCommunityPremium
		}

		switch {
		case rep.FeltSafe && rep.Tier == model.TierPremium:
			tally.SafePremium++
		case rep.FeltSafe:
			tally.SafeStandard++
		case rep.Tier == model.TierPremium:
			tally.UnsafePremium++
		default:
			tally.UnsafeStandard++
		}
		if rep.DedicatedGF {
			tally.DedicatedTag++
		}

		if rep.Comment == "" {
			continue
		}
		items = append(items, ranked{
			item: model.ScoredReviewItem{
				Text:        rep.Comment,
				Source:      source,
				Sensitivity: rep.Sensitivity,
				Relevant:    true,
			},
			weight: weight + bonus(rep.Comment),
		})
	}

	if len(reports) > 0 {
		tally.CommunityMean = ratingSum / float64(len(reports))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].weight > items[j].weight
	})

	n := len(items)
	if n > MaxItems {
		n = MaxItems
	}
	out := make([]model.ScoredReviewItem, n)
	for i := 0; i < n; i++ {
		out[i] = items[i].item
	}
	return out, tally
}

// bonus returns the keyword-relevance bonus for a review body.
func bonus(text string) int {
	lower := strings.ToLower(text)
	for _, kw := range relevanceKeywords {
		if strings.Contains(lower, kw) {
			return keywordBonus
		}
	}
	return 0
}
