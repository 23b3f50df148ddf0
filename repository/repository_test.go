package repository_test

import (
	"testing"

	"dpow-project/db"
	"dpow-project/models"
	"dpow-project/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRepo(t *testing.T) *repository.Repository {
	t.Helper()
	ldb, err := db.NewLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })
	return repository.NewRepository(ldb)
}

func TestRepository_EmptyState(t *testing.T) {
	repo := openRepo(t)

	tip, err := repo.GetTip()
	require.NoError(t, err)
	assert.Nil(t, tip)

	cp, err := repo.GetLatestCheckpoint()
	require.NoError(t, err)
	assert.Nil(t, cp)

	_, err = repo.GetBlockByHeight(0)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetTxInclusion(models.Hash{1})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRepository_ConnectBlock(t *testing.T) {
	repo := openRepo(t)
	txid := models.Hash{0x77}

	require.NoError(t, repo.PutOutput(&models.Output{TxID: txid, Vout: 0, Address: "RA", Amount: 5}))
	require.NoError(t, repo.PutOutput(&models.Output{TxID: txid, Vout: 1, Address: "RB", Amount: 6}))
	require.NoError(t, repo.PutOutput(&models.Output{TxID: models.Hash{0x78}, Vout: 0, Address: "RC", Amount: 7}))

	block := &models.Block{Hash: models.Hash{0xb0}, Height: 0, TxIDs: []models.Hash{txid}}
	has, err := repo.HasBlock(block.Hash)
	require.NoError(t, err)
	assert.False(t, has)
	require.NoError(t, repo.ConnectBlock(block))

	has, err = repo.HasBlock(block.Hash)
	require.NoError(t, err)
	assert.True(t, has)

	tip, err := repo.GetTip()
	require.NoError(t, err)
	assert.Equal(t, models.BlockRef{Height: 0, Hash: models.Hash{0xb0}}, *tip)

	byHash, err := repo.GetBlockByHash(models.Hash{0xb0})
	require.NoError(t, err)
	assert.Equal(t, int64(0), byHash.Height)
	assert.Equal(t, []models.Hash{txid}, byHash.TxIDs)

	inc, err := repo.GetTxInclusion(txid)
	require.NoError(t, err)
	assert.Equal(t, models.TxInclusion{Height: 0, BlockHash: models.Hash{0xb0}}, *inc)

	outs, err := repo.GetOutputsByTx(txid)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, out := range outs {
		require.NotNil(t, out.Inclusion)
		assert.Equal(t, int64(0), out.Inclusion.Height)
	}

	other, err := repo.GetOutputsByTx(models.Hash{0x78})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Nil(t, other[0].Inclusion)
}

func TestRepository_OutputsOrdered(t *testing.T) {
	repo := openRepo(t)
	for _, vout := range []uint32{10, 2, 1} {
		require.NoError(t, repo.PutOutput(&models.Output{TxID: models.Hash{0x02}, Vout: vout, Address: "RB"}))
	}
	require.NoError(t, repo.PutOutput(&models.Output{TxID: models.Hash{0x01}, Vout: 3, Address: "RA"}))

	all, err := repo.GetAllOutputs()
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, models.Hash{0x01}, all[0].TxID)
	assert.Equal(t, []uint32{1, 2, 10}, []uint32{all[1].Vout, all[2].Vout, all[3].Vout})
}

func TestRepository_LatestCheckpointIsHighest(t *testing.T) {
	repo := openRepo(t)
	for _, h := range []int64{9, 120, 15, 1000, 2} {
		require.NoError(t, repo.PutCheckpoint(&models.Checkpoint{Height: h, Hash: models.Hash{byte(h)}}))
	}

	cp, err := repo.GetLatestCheckpoint()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(1000), cp.Height)
}
