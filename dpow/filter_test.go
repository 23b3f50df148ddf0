package dpow_test

import (
	"testing"

	"dpow-project/dpow"
	"dpow-project/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates() []dpow.Candidate[string] {
	return []dpow.Candidate[string]{
		{Item: "old", Inclusion: minedAt(90)},
		{Item: "mempool"},
		{Item: "recent", Inclusion: minedAt(99)},
		{Item: "tip", Inclusion: minedAt(101)},
		{Item: "older", Inclusion: minedAt(50)},
	}
}

func items(results []dpow.Result[string]) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Item
	}
	return out
}

func TestFilterByMinConfirmations(t *testing.T) {
	t.Run("minconf 0 keeps everything in order", func(t *testing.T) {
		snap := dpow.Snapshot{Tip: tipAt(101)}
		results, err := dpow.FilterByMinConfirmations(candidates(), 0, snap)
		require.NoError(t, err)
		assert.Equal(t, []string{"old", "mempool", "recent", "tip", "older"}, items(results))
		assert.Equal(t, models.ConfirmationResult{}, results[1].Confirmations)
	})

	t.Run("minconf 1 drops mempool", func(t *testing.T) {
		snap := dpow.Snapshot{Tip: tipAt(101)}
		results, err := dpow.FilterByMinConfirmations(candidates(), 1, snap)
		require.NoError(t, err)
		assert.Equal(t, []string{"old", "recent", "tip", "older"}, items(results))
	})

	t.Run("minconf 2 without checkpoint keeps nothing", func(t *testing.T) {
		snap := dpow.Snapshot{Tip: tipAt(101)}
		results, err := dpow.FilterByMinConfirmations(candidates(), 2, snap)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("minconf 2 keeps notarized items with both figures", func(t *testing.T) {
		snap := dpow.Snapshot{Tip: tipAt(101), Checkpoint: &models.Checkpoint{Height: 99, Hash: models.Hash{99}}}
		results, err := dpow.FilterByMinConfirmations(candidates(), 2, snap)
		require.NoError(t, err)
		require.Equal(t, []string{"old", "recent", "older"}, items(results))
		assert.Equal(t, models.ConfirmationResult{DPoW: 12, Raw: 12}, results[0].Confirmations)
		assert.Equal(t, models.ConfirmationResult{DPoW: 3, Raw: 3}, results[1].Confirmations)
	})

	t.Run("threshold matches compute exactly", func(t *testing.T) {
		snap := dpow.Snapshot{Tip: tipAt(101), Checkpoint: &models.Checkpoint{Height: 95, Hash: models.Hash{95}}}
		for m := int64(0); m <= 60; m++ {
			results, err := dpow.FilterByMinConfirmations(candidates(), m, snap)
			require.NoError(t, err)

			var want []string
			for _, c := range candidates() {
				conf, err := snap.Compute(c.Inclusion)
				require.NoError(t, err)
				if conf.DPoW >= m {
					want = append(want, c.Item)
				}
			}
			assert.Equal(t, want, nilIfEmpty(items(results)), "minconf %d", m)
		}
	})

	t.Run("inconsistent candidate fails the query", func(t *testing.T) {
		snap := dpow.Snapshot{Tip: tipAt(100)}
		results, err := dpow.FilterByMinConfirmations(candidates(), 0, snap)
		assert.ErrorIs(t, err, dpow.ErrInconsistentChainView)
		assert.Nil(t, results)
	})
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
