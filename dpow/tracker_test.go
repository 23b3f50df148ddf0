package dpow_test

import (
	"math/rand"
	"sync"
	"testing"

	"dpow-project/dpow"
	"dpow-project/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	saved []models.Checkpoint
	err   error
}

func (m *memStore) PutCheckpoint(cp *models.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, *cp)
	return nil
}

func checkpoint(height int64) models.Checkpoint {
	return models.Checkpoint{Height: height, Hash: models.Hash{byte(height), byte(height >> 8), 0xcc}}
}

func TestTracker_StartsEmpty(t *testing.T) {
	tr := dpow.NewTracker(nil)
	assert.Nil(t, tr.CurrentCheckpoint())

	snap := tr.Snapshot()
	assert.Equal(t, models.EmptyChainHeight, snap.Tip.Height)
	assert.Nil(t, snap.Checkpoint)
}

func TestTracker_ApplyCheckpoint(t *testing.T) {
	store := &memStore{}
	tr := dpow.NewTracker(store)

	applied, err := tr.ApplyCheckpoint(checkpoint(10))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = tr.ApplyCheckpoint(checkpoint(20))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = tr.ApplyCheckpoint(checkpoint(15))
	require.NoError(t, err)
	assert.False(t, applied, "lower height must not regress state")

	require.NotNil(t, tr.CurrentCheckpoint())
	assert.Equal(t, checkpoint(20), *tr.CurrentCheckpoint())
	assert.Equal(t, []models.Checkpoint{checkpoint(10), checkpoint(20)}, store.saved)
}

func TestTracker_IdempotentReplay(t *testing.T) {
	store := &memStore{}
	tr := dpow.NewTracker(store)
	cp := models.Checkpoint{Height: 99, Hash: models.Hash{0xab}}

	applied, err := tr.ApplyCheckpoint(cp)
	require.NoError(t, err)
	require.True(t, applied)
	before := tr.Snapshot()

	applied, err = tr.ApplyCheckpoint(cp)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, before, tr.Snapshot())
	assert.Len(t, store.saved, 1)
}

func TestTracker_ConflictingHashAtSameHeightIgnored(t *testing.T) {
	tr := dpow.NewTracker(nil)
	_, err := tr.ApplyCheckpoint(models.Checkpoint{Height: 5, Hash: models.Hash{1}})
	require.NoError(t, err)

	applied, err := tr.ApplyCheckpoint(models.Checkpoint{Height: 5, Hash: models.Hash{2}})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.Hash{1}, tr.CurrentCheckpoint().Hash)
}

func TestTracker_RejectsInvalidCheckpoint(t *testing.T) {
	tr := dpow.NewTracker(nil)

	_, err := tr.ApplyCheckpoint(models.Checkpoint{Height: -1, Hash: models.Hash{1}})
	assert.ErrorIs(t, err, models.ErrInvalidCheckpoint)

	_, err = tr.ApplyCheckpoint(models.Checkpoint{Height: 3})
	assert.ErrorIs(t, err, models.ErrInvalidCheckpoint)

	assert.Nil(t, tr.CurrentCheckpoint())
}

func TestTracker_PersistFailureKeepsState(t *testing.T) {
	store := &memStore{}
	tr := dpow.NewTracker(store)
	_, err := tr.ApplyCheckpoint(checkpoint(1))
	require.NoError(t, err)

	store.err = errors.New("disk full")
	applied, err := tr.ApplyCheckpoint(checkpoint(2))
	require.Error(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(1), tr.CurrentCheckpoint().Height)
}

func TestTracker_CurrentCheckpointIsACopy(t *testing.T) {
	tr := dpow.NewTracker(nil)
	_, err := tr.ApplyCheckpoint(checkpoint(7))
	require.NoError(t, err)

	cp := tr.CurrentCheckpoint()
	cp.Height = 1000
	assert.Equal(t, int64(7), tr.CurrentCheckpoint().Height)
}

func TestTracker_UpdateTipKeepsCheckpoint(t *testing.T) {
	tr := dpow.NewTracker(nil)
	_, err := tr.ApplyCheckpoint(checkpoint(3))
	require.NoError(t, err)

	tr.UpdateTip(tipAt(10))
	snap := tr.Snapshot()
	assert.Equal(t, tipAt(10), snap.Tip)
	require.NotNil(t, snap.Checkpoint)
	assert.Equal(t, int64(3), snap.Checkpoint.Height)
}

func TestTracker_Restore(t *testing.T) {
	t.Run("valid state", func(t *testing.T) {
		tr := dpow.NewTracker(nil)
		cp := checkpoint(40)
		require.NoError(t, tr.Restore(tipAt(50), &cp))

		snap := tr.Snapshot()
		assert.Equal(t, tipAt(50), snap.Tip)
		assert.Equal(t, cp, *snap.Checkpoint)

		applied, err := tr.ApplyCheckpoint(checkpoint(40))
		require.NoError(t, err)
		assert.False(t, applied, "restored checkpoint is the monotonic floor")
	})

	t.Run("no checkpoint yet", func(t *testing.T) {
		tr := dpow.NewTracker(nil)
		require.NoError(t, tr.Restore(tipAt(5), nil))
		assert.Nil(t, tr.CurrentCheckpoint())
	})

	t.Run("corrupt checkpoint", func(t *testing.T) {
		tr := dpow.NewTracker(nil)
		bad := models.Checkpoint{Height: 4}
		err := tr.Restore(tipAt(5), &bad)
		assert.ErrorIs(t, err, models.ErrInvalidCheckpoint)
	})

	t.Run("checkpoint above tip", func(t *testing.T) {
		tr := dpow.NewTracker(nil)
		far := checkpoint(500)
		err := tr.Restore(tipAt(10), &far)
		assert.ErrorIs(t, err, dpow.ErrCheckpointAboveTip)
		assert.Nil(t, tr.CurrentCheckpoint())

		tr.UpdateTip(tipAt(20))
		conf, err := tr.Snapshot().Compute(minedAt(15))
		require.NoError(t, err)
		assert.Equal(t, models.ConfirmationResult{DPoW: 1, Raw: 6}, conf)
	})
}

func TestTracker_MonotonicUnderReorderingAndDuplication(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		tr := dpow.NewTracker(nil)
		var highest int64 = -1
		for i := 0; i < 40; i++ {
			h := rnd.Int63n(30)
			_, err := tr.ApplyCheckpoint(checkpoint(h))
			require.NoError(t, err)
			highest = max(highest, h)
			assert.Equal(t, highest, tr.CurrentCheckpoint().Height)
		}
	}
}

func TestTracker_ConcurrentApply(t *testing.T) {
	tr := dpow.NewTracker(&memStore{})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(offset int64) {
			defer wg.Done()
			for h := int64(0); h < 200; h++ {
				_, err := tr.ApplyCheckpoint(checkpoint((h*7 + offset) % 500))
				assert.NoError(t, err)
			}
		}(int64(w))
	}

	// readers must never see the checkpoint go backwards
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last int64 = -1
		for i := 0; i < 2000; i++ {
			if cp := tr.Snapshot().Checkpoint; cp != nil {
				assert.GreaterOrEqual(t, cp.Height, last)
				last = cp.Height
			}
		}
	}()
	wg.Wait()

	var want int64
	for w := int64(0); w < 8; w++ {
		for h := int64(0); h < 200; h++ {
			want = max(want, (h*7+w)%500)
		}
	}
	assert.Equal(t, want, tr.CurrentCheckpoint().Height)
}

func TestTracker_ScenarioFlow(t *testing.T) {
	tr := dpow.NewTracker(nil)
	tx := minedAt(99)
	cands := []dpow.Candidate[string]{{Item: "tx", Inclusion: tx}}

	tr.UpdateTip(tipAt(100))
	conf, err := tr.Snapshot().Compute(tx)
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationResult{DPoW: 1, Raw: 2}, conf, "scenario A")

	tr.UpdateTip(tipAt(101))
	conf, err = tr.Snapshot().Compute(tx)
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationResult{DPoW: 1, Raw: 3}, conf, "scenario B")

	results, err := dpow.FilterByMinConfirmations(cands, 2, tr.Snapshot())
	require.NoError(t, err)
	assert.Empty(t, results, "scenario D before notarization")

	_, err = tr.ApplyCheckpoint(models.Checkpoint{Height: 99, Hash: tx.BlockHash})
	require.NoError(t, err)
	conf, err = tr.Snapshot().Compute(tx)
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationResult{DPoW: 3, Raw: 3}, conf, "scenario C")

	results, err = dpow.FilterByMinConfirmations(cands, 2, tr.Snapshot())
	require.NoError(t, err)
	require.Len(t, results, 1, "scenario D after notarization")
	assert.Equal(t, int64(3), results[0].Confirmations.DPoW)
}
