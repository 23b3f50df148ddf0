package chain

import (
	"sync"
	"time"

	"dpow-project/dpow"
	"dpow-project/logger"
	"dpow-project/models"
	"dpow-project/repository"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrBlockExists   = errors.New("block already connected")
	ErrOrphanBlock   = errors.New("block does not extend the tip")
	ErrUnknownHeight = errors.New("no block at height")
	ErrHashMismatch  = errors.New("hash does not match block at height")
)

// Chain is the local view of the best chain. It connects blocks delivered by
// the consensus collaborator and validates notarizations before handing
// them to the tracker.
type Chain struct {
	repo    repository.ChainRepositoryInterface
	tracker *dpow.Tracker
	mux     sync.Mutex
	tip     models.BlockRef
}

func NewChain(repo repository.ChainRepositoryInterface, tracker *dpow.Tracker) *Chain {
	return &Chain{
		repo:    repo,
		tracker: tracker,
		tip:     models.BlockRef{Height: models.EmptyChainHeight},
	}
}

// Load restores the tip from the repository and publishes it to the tracker.
func (c *Chain) Load() error {
	c.mux.Lock()
	defer c.mux.Unlock()

	tip, err := c.repo.GetTip()
	if err != nil {
		return errors.Wrap(err, "load chain tip")
	}
	if tip != nil {
		c.tip = *tip
	}
	c.tracker.UpdateTip(c.tip)
	return nil
}

// RestoreCheckpoint feeds a checkpoint loaded from disk to the tracker after
// checking it names a block on the loaded chain. Call it after Load.
func (c *Chain) RestoreCheckpoint(cp *models.Checkpoint) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if cp != nil {
		if err := cp.Validate(); err != nil {
			return errors.Wrap(err, "restore checkpoint")
		}
		if cp.Height > c.tip.Height {
			return errors.Wrapf(dpow.ErrCheckpointAboveTip, "checkpoint %d, tip %d", cp.Height, c.tip.Height)
		}
		block, err := c.repo.GetBlockByHeight(cp.Height)
		if err != nil {
			return errors.Wrap(err, "restore checkpoint")
		}
		if block.Hash != cp.Hash {
			return errors.Wrapf(ErrHashMismatch, "stored checkpoint names %s, height %d has %s",
				cp.Hash, cp.Height, block.Hash)
		}
	}
	return c.tracker.Restore(c.tip, cp)
}

// ConnectBlock appends block to the chain. Genesis must have a zero previous
// hash; every other block must extend the current tip.
func (c *Chain) ConnectBlock(block *models.Block) (models.BlockRef, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if block.Hash.IsZero() {
		return models.BlockRef{}, errors.Wrap(models.ErrInvalidHash, "block hash is zero")
	}

	exists, err := c.repo.HasBlock(block.Hash)
	if err != nil {
		return models.BlockRef{}, err
	}
	if exists {
		return models.BlockRef{}, errors.Wrapf(ErrBlockExists, "%s", block.Hash)
	}

	if c.tip.Height == models.EmptyChainHeight {
		if !block.PrevHash.IsZero() {
			return models.BlockRef{}, errors.Wrap(ErrOrphanBlock, "genesis must not reference a parent")
		}
	} else if block.PrevHash != c.tip.Hash {
		return models.BlockRef{}, errors.Wrapf(ErrOrphanBlock, "parent %s, tip %s", block.PrevHash, c.tip.Hash)
	}

	block.Height = c.tip.Height + 1
	if block.Time == 0 {
		block.Time = nowMillis()
	}
	if err := c.repo.ConnectBlock(block); err != nil {
		return models.BlockRef{}, err
	}

	c.tip = block.Ref()
	c.tracker.UpdateTip(c.tip)

	logger.Logger.Debug("Connected block",
		zap.Int64("height", block.Height),
		zap.Stringer("hash", block.Hash),
		zap.Int("txs", len(block.TxIDs)))
	return c.tip, nil
}

// Tip returns the current best block.
func (c *Chain) Tip() models.BlockRef {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.tip
}

// HeightExists reports whether height is on the current chain.
func (c *Chain) HeightExists(height int64) bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	return height >= 0 && height <= c.tip.Height
}

// BlockAt returns the block connected at height.
func (c *Chain) BlockAt(height int64) (*models.Block, error) {
	if !c.HeightExists(height) {
		return nil, errors.Wrapf(ErrUnknownHeight, "%d", height)
	}
	return c.repo.GetBlockByHeight(height)
}

// TxInclusion returns where txid was mined, or nil if no connected block
// contains it.
func (c *Chain) TxInclusion(txid models.Hash) (*models.TxInclusion, error) {
	inc, err := c.repo.GetTxInclusion(txid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return inc, err
}

// WithSnapshot runs fn while no block can be connected, so whatever fn reads
// from the repository agrees with the snapshot's tip.
func (c *Chain) WithSnapshot(fn func(snap dpow.Snapshot) error) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	return fn(c.tracker.Snapshot())
}

// SubmitNotarization checks that cp names a block on the current chain and
// applies it to the tracker. It reports whether the checkpoint advanced.
func (c *Chain) SubmitNotarization(cp models.Checkpoint) (bool, error) {
	if err := cp.Validate(); err != nil {
		return false, err
	}

	block, err := c.BlockAt(cp.Height)
	if err != nil {
		return false, err
	}
	if block.Hash != cp.Hash {
		return false, errors.Wrapf(ErrHashMismatch, "height %d has %s, notarization names %s",
			cp.Height, block.Hash, cp.Hash)
	}

	return c.tracker.ApplyCheckpoint(cp)
}

// nowMillis returns current time in milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
