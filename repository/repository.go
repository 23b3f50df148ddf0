package repository

import (
	"encoding/json"
	"fmt"

	"dpow-project/db"
	"dpow-project/models"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const (
	tipKey           = "chain:tip"
	blockHeightPfx   = "block:height:"
	blockHashPfx     = "block:hash:"
	checkpointPrefix = "checkpoint:"
	txPrefix         = "tx:"
	outputPrefix     = "output:"
)

// ChainRepositoryInterface persists the connected chain.
type ChainRepositoryInterface interface {
	// ConnectBlock stores block as the new tip and marks every stored
	// output of the block's transactions as included, atomically.
	ConnectBlock(block *models.Block) error
	GetBlockByHeight(height int64) (*models.Block, error)
	GetBlockByHash(hash models.Hash) (*models.Block, error)
	HasBlock(hash models.Hash) (bool, error)
	// GetTip returns nil without error when no block has been connected.
	GetTip() (*models.BlockRef, error)
	// GetTxInclusion returns where txid was mined, or ErrNotFound.
	GetTxInclusion(txid models.Hash) (*models.TxInclusion, error)
}

// CheckpointRepositoryInterface persists accepted notarization checkpoints.
type CheckpointRepositoryInterface interface {
	PutCheckpoint(cp *models.Checkpoint) error
	// GetLatestCheckpoint returns nil without error before the first notarization.
	GetLatestCheckpoint() (*models.Checkpoint, error)
}

// OutputRepositoryInterface persists wallet outputs.
type OutputRepositoryInterface interface {
	PutOutput(out *models.Output) error
	GetOutputsByTx(txid models.Hash) ([]*models.Output, error)
	GetAllOutputs() ([]*models.Output, error)
}

// RepositoryInterface is everything the node keeps on disk.
type RepositoryInterface interface {
	ChainRepositoryInterface
	CheckpointRepositoryInterface
	OutputRepositoryInterface
}

// Repository implements RepositoryInterface using LevelDB as the storage backend
type Repository struct {
	db *db.LevelDB
}

// NewRepository creates and returns a new Repository instance
func NewRepository(db *db.LevelDB) *Repository {
	return &Repository{db: db}
}

func blockHeightKey(height int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockHeightPfx, height))
}

func blockHashKey(hash models.Hash) []byte {
	return []byte(blockHashPfx + hash.String())
}

func checkpointKey(height int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", checkpointPrefix, height))
}

func txKey(txid models.Hash) []byte {
	return []byte(txPrefix + txid.String())
}

func outputTxPrefix(txid models.Hash) []byte {
	return []byte(outputPrefix + txid.String() + ":")
}

func outputKey(txid models.Hash, vout uint32) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", outputPrefix, txid, vout))
}

// ConnectBlock writes the block under both its height and hash, moves the
// tip and records the inclusion of the block's wallet transactions.
func (r *Repository) ConnectBlock(block *models.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}
	tip, err := json.Marshal(block.Ref())
	if err != nil {
		return err
	}

	batch := new(db.Batch)
	batch.Put(blockHeightKey(block.Height), data)
	batch.Put(blockHashKey(block.Hash), []byte(fmt.Sprintf("%d", block.Height)))
	batch.Put([]byte(tipKey), tip)

	inclusion := &models.TxInclusion{Height: block.Height, BlockHash: block.Hash}
	incData, err := json.Marshal(inclusion)
	if err != nil {
		return err
	}
	for _, txid := range block.TxIDs {
		batch.Put(txKey(txid), incData)

		outs, err := r.GetOutputsByTx(txid)
		if err != nil {
			return err
		}
		for _, out := range outs {
			out.Inclusion = inclusion
			value, err := json.Marshal(out)
			if err != nil {
				return err
			}
			batch.Put(outputKey(out.TxID, out.Vout), value)
		}
	}

	return errors.Wrapf(r.db.Write(batch), "connect block %s at height %d", block.Hash, block.Height)
}

// GetBlockByHeight retrieves the block connected at height
func (r *Repository) GetBlockByHeight(height int64) (*models.Block, error) {
	data, err := r.db.Get(blockHeightKey(height))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "block at height %d", height)
		}
		return nil, err
	}
	var block models.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockByHash retrieves a connected block by its hash
func (r *Repository) GetBlockByHash(hash models.Hash) (*models.Block, error) {
	data, err := r.db.Get(blockHashKey(hash))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "block %s", hash)
		}
		return nil, err
	}
	var height int64
	if _, err := fmt.Sscanf(string(data), "%d", &height); err != nil {
		return nil, errors.Wrapf(err, "corrupt height index for block %s", hash)
	}
	return r.GetBlockByHeight(height)
}

// HasBlock reports whether a block with hash has been connected
func (r *Repository) HasBlock(hash models.Hash) (bool, error) {
	return r.db.Has(blockHashKey(hash))
}

// GetTip returns the current best block
func (r *Repository) GetTip() (*models.BlockRef, error) {
	data, err := r.db.Get([]byte(tipKey))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var tip models.BlockRef
	if err := json.Unmarshal(data, &tip); err != nil {
		return nil, err
	}
	return &tip, nil
}

// GetTxInclusion retrieves the block a transaction was mined in
func (r *Repository) GetTxInclusion(txid models.Hash) (*models.TxInclusion, error) {
	data, err := r.db.Get(txKey(txid))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "tx %s", txid)
		}
		return nil, err
	}
	var inc models.TxInclusion
	if err := json.Unmarshal(data, &inc); err != nil {
		return nil, err
	}
	return &inc, nil
}

// PutCheckpoint records an accepted checkpoint. Earlier checkpoints are kept
// as history; the highest one is the live checkpoint.
func (r *Repository) PutCheckpoint(cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return r.db.Put(checkpointKey(cp.Height), data)
}

// GetLatestCheckpoint retrieves the highest stored checkpoint
func (r *Repository) GetLatestCheckpoint() (*models.Checkpoint, error) {
	iter := r.db.NewPrefixIterator([]byte(checkpointPrefix))
	defer iter.Release()

	if !iter.Last() {
		return nil, iter.Error()
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(iter.Value(), &cp); err != nil {
		return nil, err
	}
	return &cp, iter.Error()
}

// PutOutput stores or replaces a wallet output
func (r *Repository) PutOutput(out *models.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return r.db.Put(outputKey(out.TxID, out.Vout), data)
}

// GetOutputsByTx returns the stored outputs of txid ordered by vout
func (r *Repository) GetOutputsByTx(txid models.Hash) ([]*models.Output, error) {
	return r.scanOutputs(outputTxPrefix(txid))
}

// GetAllOutputs returns every stored output ordered by txid then vout
func (r *Repository) GetAllOutputs() ([]*models.Output, error) {
	return r.scanOutputs([]byte(outputPrefix))
}

func (r *Repository) scanOutputs(prefix []byte) ([]*models.Output, error) {
	iter := r.db.NewPrefixIterator(prefix)
	defer iter.Release()

	var outs []*models.Output
	for iter.Next() {
		var out models.Output
		if err := json.Unmarshal(iter.Value(), &out); err != nil {
			return nil, err
		}
		outs = append(outs, &out)
	}
	return outs, iter.Error()
}
