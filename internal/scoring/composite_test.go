package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposite_VerifiedMode(t *testing.T) {
	t.Parallel()

	// base = 8*7 + 4.5*6 = 83; bonuses = 3*2 + 1*5 = 11; raw = 94/10.
	score, ok := Composite(Inputs{
		OracleScore:   8,
		CommunityMean: 4.5,
		SafeStandard:  3,
		SafePremium:   1,
	})
	require.True(t, ok)
	assert.Equal(t, 9.4, score)
}

func TestComposite_PremiumUnsafeDominates(t *testing.T) {
	t.Parallel()

	// base = 9*7 + 5*6 = 93; bonuses = 10; penalty = 25; raw = 78/10.
	score, ok := Composite(Inputs{
		OracleScore:   9,
		CommunityMean: 5,
		SafeStandard:  5,
		UnsafePremium: 1,
	})
	require.True(t, ok)
	assert.Equal(t, 7.8, score)
}

func TestComposite_ColdStartFewReviews(t *testing.T) {
	t.Parallel()

	// raw = 7*8/10 + 4.0*2/10 = 5.6 + 0.8.
	score, ok := Composite(Inputs{
		OracleScore:         7,
		PublicRating:        4.0,
		RelevantPublicCount: 2,
	})
	require.True(t, ok)
	assert.Equal(t, 6.4, score)
}

func TestComposite_ColdStartManyReviews(t *testing.T) {
	t.Parallel()

	// More than 3 relevant reviews doubles the public-rating weight:
	// raw = 7*8/10 + 4.0*4/10 = 5.6 + 1.6.
	score, ok := Composite(Inputs{
		OracleScore:         7,
		PublicRating:        4.0,
		RelevantPublicCount: 4,
	})
	require.True(t, ok)
	assert.Equal(t, 7.2, score)
}

func TestComposite_NoDataIsAbsent(t *testing.T) {
	t.Parallel()

	_, ok := Composite(Inputs{OracleScore: 9, PublicRating: 5})
	assert.False(t, ok, "no reports and no relevant reviews must be absent, not low")
}

func TestComposite_ClampedToBounds(t *testing.T) {
	t.Parallel()

	// Heavy penalties clamp at the floor, not below.
	low, ok := Composite(Inputs{
		OracleScore:   2,
		CommunityMean: 1,
		UnsafePremium: 4,
	})
	require.True(t, ok)
	assert.Equal(t, 1.0, low)

	// Stacked bonuses clamp at the ceiling.
	high, ok := Composite(Inputs{
		OracleScore:   10,
		CommunityMean: 5,
		SafePremium:   10,
		DedicatedTag:  5,
	})
	require.True(t, ok)
	assert.Equal(t, 10.0, high)
}

func TestComposite_MonotonicInUnsafePremium(t *testing.T) {
	t.Parallel()

	base := Inputs{
		OracleScore:   8,
		CommunityMean: 4,
		SafeStandard:  3,
		SafePremium:   2,
	}

	prev := 11.0
	for unsafe := 0; unsafe <= 5; unsafe++ {
		in := base
		in.UnsafePremium = unsafe
		score, ok := Composite(in)
		require.True(t, ok)
		assert.LessOrEqual(t, score, prev, "unsafe=%d", unsafe)
		prev = score
	}
}

func TestComposite_MonotonicInSafePremium(t *testing.T) {
	t.Parallel()

	base := Inputs{
		OracleScore:    6,
		CommunityMean:  3.5,
		UnsafeStandard: 1,
	}

	prev := 0.0
	for safe := 1; safe <= 6; safe++ {
		in := base
		in.SafePremium = safe
		score, ok := Composite(in)
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, prev, "safe=%d", safe)
		prev = score
	}
}

func TestComposite_ZeroOracleStillScoresVerified(t *testing.T) {
	t.Parallel()

	// A failed oracle analysis leaves community evidence standing:
	// base = 0 + 4.5*6 = 27; bonuses = 2*2 = 4; raw = 3.1.
	score, ok := Composite(Inputs{
		CommunityMean: 4.5,
		SafeStandard:  2,
	})
	require.True(t, ok)
	assert.Equal(t, 3.1, score)
}
