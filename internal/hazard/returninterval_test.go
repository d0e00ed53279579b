package hazard

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateReturnIntervals_Scenario(t *testing.T) {
	obs := []Observation{
		{Period: 1960, Value: 1.0},
		{Period: 1961, Value: 5.0},
		{Period: 1962, Value: 2.0},
		{Period: 1963, Value: 8.0},
	}

	ranked, err := EstimateReturnIntervals(obs, TieAverage)
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	wantRanks := []float64{4, 2, 3, 1}
	wantRI := []float64{1.0, 2.0, 4.0 / 3.0, 4.0}
	for i, r := range ranked {
		assert.Equal(t, obs[i], r.Observation, "input order preserved")
		assert.Equal(t, wantRanks[i], r.Rank)
		assert.InDelta(t, wantRI[i], r.ReturnInterval, 1e-12)
	}
}

func TestEstimateReturnIntervals_FormulaExact(t *testing.T) {
	// 11 periods give record_span = 10.
	obs := make([]Observation, 11)
	for i := range obs {
		obs[i] = Observation{Period: 2000 + i, Value: float64(100 - i)}
	}

	ranked, err := EstimateReturnIntervals(obs, TieAverage)
	require.NoError(t, err)

	assert.Equal(t, 1.0, ranked[0].Rank)
	assert.Equal(t, 11.0, ranked[0].ReturnInterval)
	assert.Equal(t, 5.0, ranked[4].Rank)
	assert.InDelta(t, 2.2, ranked[4].ReturnInterval, 1e-12)
}

func TestEstimateReturnIntervals_RanksArePermutation(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 20; trial++ {
		n := 2 + rng.IntN(60)
		obs := make([]Observation, n)
		for i := range obs {
			// Distinct values: a shuffled ladder with a random offset.
			obs[i] = Observation{Period: 1950 + i, Value: float64(i)*1.5 + rng.Float64()}
		}
		rng.Shuffle(n, func(i, j int) { obs[i], obs[j] = obs[j], obs[i] })

		ranked, err := EstimateReturnIntervals(obs, TieAverage)
		require.NoError(t, err)

		ranks := make([]int, n)
		for i, r := range ranked {
			ranks[i] = int(r.Rank)
			assert.Equal(t, float64(ranks[i]), r.Rank, "distinct values get integer ranks")
		}
		slices.Sort(ranks)
		for i, r := range ranks {
			assert.Equal(t, i+1, r)
		}
	}
}

func TestEstimateReturnIntervals_ValueAndIntervalOrderAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	obs := make([]Observation, 40)
	for i := range obs {
		obs[i] = Observation{Period: 1960 + i, Value: float64(rng.IntN(1_000_000)) + float64(i)/100}
	}

	ranked, err := EstimateReturnIntervals(obs, TieAverage)
	require.NoError(t, err)

	for i := range ranked {
		for j := range ranked {
			if ranked[i].Value > ranked[j].Value {
				assert.Greater(t, ranked[i].ReturnInterval, ranked[j].ReturnInterval,
					"larger loss must have the longer return interval")
			}
		}
	}
}

func TestEstimateReturnIntervals_Ties(t *testing.T) {
	obs := []Observation{
		{Period: 2001, Value: 5},
		{Period: 2002, Value: 3},
		{Period: 2003, Value: 3},
		{Period: 2004, Value: 1},
	}

	t.Run("average", func(t *testing.T) {
		ranked, err := EstimateReturnIntervals(obs, TieAverage)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2.5, 2.5, 4}, ranksOf(ranked))
		assert.InDelta(t, 4/2.5, ranked[1].ReturnInterval, 1e-12)
		assert.Equal(t, ranked[1].ReturnInterval, ranked[2].ReturnInterval)
	})

	t.Run("first seen", func(t *testing.T) {
		ranked, err := EstimateReturnIntervals(obs, TieFirst)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3, 4}, ranksOf(ranked))
	})

	t.Run("all tied", func(t *testing.T) {
		flat := []Observation{{Period: 1, Value: 2}, {Period: 2, Value: 2}, {Period: 3, Value: 2}}
		ranked, err := EstimateReturnIntervals(flat, TieAverage)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 2, 2}, ranksOf(ranked))
	})
}

func TestEstimateReturnIntervals_Errors(t *testing.T) {
	tests := []struct {
		name string
		obs  []Observation
		want error
	}{
		{name: "empty", obs: nil, want: ErrInsufficientData},
		{name: "single observation", obs: []Observation{{Period: 1990, Value: 4}}, want: ErrInsufficientData},
		{name: "single period", obs: []Observation{{Period: 1990, Value: 4}, {Period: 1990, Value: 2}}, want: ErrInsufficientData},
		{name: "negative value", obs: []Observation{{Period: 1990, Value: -1}, {Period: 1991, Value: 2}}, want: ErrInvalidObservation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EstimateReturnIntervals(tt.obs, TieAverage)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEstimateReturnIntervals_DoesNotMutateInput(t *testing.T) {
	obs := []Observation{{Period: 1980, Value: 1}, {Period: 1990, Value: 9}, {Period: 1985, Value: 4}}
	orig := slices.Clone(obs)

	_, err := EstimateReturnIntervals(obs, TieAverage)
	require.NoError(t, err)
	assert.Equal(t, orig, obs)
}

func TestRecordSpan(t *testing.T) {
	assert.Equal(t, 0, RecordSpan(nil))
	assert.Equal(t, 62, RecordSpan([]Observation{{Period: 2022}, {Period: 1960}, {Period: 1991}}))
}

func TestParseTiePolicy(t *testing.T) {
	p, err := ParseTiePolicy("first")
	require.NoError(t, err)
	assert.Equal(t, TieFirst, p)

	p, err = ParseTiePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TieAverage, p)

	_, err = ParseTiePolicy("dense")
	assert.Error(t, err)
}

func ranksOf(ranked []RankedObservation) []float64 {
	out := make([]float64, len(ranked))
	for i, r := range ranked {
		out[i] = r.Rank
	}
	return out
}
