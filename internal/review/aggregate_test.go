package review

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safebites/safebites-api/internal/model"
)

func publicReview(text string) model.Review {
	return model.Review{Text: text, Rating: 4, Relevant: text != ""}
}

func communityReport(comment string, tier model.TrustTier, safe bool) model.CommunityReport {
	return model.CommunityReport{
		Comment:  comment,
		Tier:     tier,
		FeltSafe: safe,
		Rating:   4,
	}
}

func TestAggregate_OrdersByTierAndKeyword(t *testing.T) {
	t.Parallel()

	public := []model.Review{
		publicReview("great pasta"),
		publicReview("they have a dedicated fryer for fries"),
	}
	reports := []model.CommunityReport{
		communityReport("nice spot", model.TierStandard, true),
		communityReport("fully celiac safe kitchen", model.TierPremium, true),
	}

	items, _ := Aggregate(public, reports)
	require.Len(t, items, 4)

	// Premium + keyword first, off-topic public last.
	assert.Equal(t, model.SourceCommunityPremium, items[0].Source)
	assert.Equal(t, "fully celiac safe kitchen", items[0].Text)
	assert.Equal(t, "great pasta", items[3].Text)

	// Keyworded public review outranks off-topic standard community report.
	assert.Equal(t, "they have a dedicated fryer for fries", items[1].Text)
	assert.Equal(t, "nice spot", items[2].Text)
}

func TestAggregate_TruncatesToMaxItems(t *testing.T) {
	t.Parallel()

	var public []model.Review
	for i := 0; i < 80; i++ {
		public = append(public, publicReview(fmt.Sprintf("gluten free review %d", i)))
	}

	items, tally := Aggregate(public, nil)
	assert.Len(t, items, MaxItems)
	// Counts are computed before truncation.
	assert.Equal(t, 80, tally.PublicRelevant)
}

func TestAggregate_StableOnTies(t *testing.T) {
	t.Parallel()

	public := []model.Review{
		publicReview("first"),
		publicReview("second"),
		publicReview("third"),
	}

	items, _ := Aggregate(public, nil)
	require.Len(t, items, 3)
	assert.Equal(t, "first", items[0].Text)
	assert.Equal(t, "second", items[1].Text)
	assert.Equal(t, "third", items[2].Text)
}

func TestAggregate_Tallies(t *testing.T) {
	t.Parallel()

	reports := []model.CommunityReport{
		{Tier: model.TierStandard, FeltSafe: true, Rating: 5},
		{Tier: model.TierPremium, FeltSafe: true, Rating: 4, DedicatedGF: true},
		{Tier: model.TierStandard, FeltSafe: false, Rating: 2},
		{Tier: model.TierPremium, FeltSafe: false, Rating: 1},
	}

	_, tally := Aggregate(nil, reports)
	assert.Equal(t, 1, tally.SafeStandard)
	assert.Equal(t, 1, tally.SafePremium)
	assert.Equal(t, 1, tally.UnsafeStandard)
	assert.Equal(t, 1, tally.UnsafePremium)
	assert.Equal(t, 1, tally.DedicatedTag)
	assert.Equal(t, 4, tally.TotalCommunity())
	assert.InDelta(t, 3.0, tally.CommunityMean, 1e-9)
}

func TestAggregate_EmptyCommentStillCounted(t *testing.T) {
	t.Parallel()

	reports := []model.CommunityReport{
		{Tier: model.TierPremium, FeltSafe: true, Rating: 5, Comment: ""},
	}

	items, tally := Aggregate(nil, reports)
	assert.Empty(t, items, "reports without text produce no oracle input")
	assert.Equal(t, 1, tally.SafePremium)
	assert.InDelta(t, 5.0, tally.CommunityMean, 1e-9)
}

func TestAggregate_EmptyPublicReviewNotCountedRelevant(t *testing.T) {
	t.Parallel()

	public := []model.Review{
		{Text: "", Rating: 5, Relevant: true},
		{Text: "gluten free pasta", Rating: 4, Relevant: true},
	}

	items, tally := Aggregate(public, nil)
	require.Len(t, items, 1)
	assert.Equal(t, 1, tally.PublicRelevant, "an empty-bodied review must not inflate the relevant count")
}

func TestAggregate_SensitivityCarriedThrough(t *testing.T) {
	t.Parallel()

	reports := []model.CommunityReport{
		{Tier: model.TierPremium, FeltSafe: true, Rating: 5, Comment: "safe", Sensitivity: "celiac"},
	}

	items, _ := Aggregate(nil, reports)
	require.Len(t, items, 1)
	assert.Equal(t, "celiac", items[0].Sensitivity)
}
