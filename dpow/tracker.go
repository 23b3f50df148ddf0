package dpow

import (
	"sync"
	"sync/atomic"

	"dpow-project/logger"
	"dpow-project/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrCheckpointAboveTip is returned when a stored checkpoint names a height
// the restored chain does not reach.
var ErrCheckpointAboveTip = errors.New("checkpoint above chain tip")

// CheckpointStore persists accepted checkpoints.
type CheckpointStore interface {
	PutCheckpoint(cp *models.Checkpoint) error
}

// Snapshot is an immutable tip/checkpoint pair. Every query reads exactly
// one snapshot so it never mixes a new checkpoint with a stale tip.
type Snapshot struct {
	Tip        models.BlockRef
	Checkpoint *models.Checkpoint // nil before the first notarization
}

// Compute derives the confirmation pair of tx against this snapshot.
func (s Snapshot) Compute(tx *models.TxInclusion) (models.ConfirmationResult, error) {
	return Compute(tx, s.Tip, s.Checkpoint)
}

// Tracker holds the latest accepted notarization checkpoint together with
// the chain tip. Writers are serialized; readers load the published
// snapshot without locking.
type Tracker struct {
	store CheckpointStore
	mux   sync.Mutex
	state atomic.Pointer[Snapshot]
}

// NewTracker returns a tracker on an empty chain with no checkpoint. store
// may be nil, in which case checkpoints live in memory only.
func NewTracker(store CheckpointStore) *Tracker {
	t := &Tracker{store: store}
	t.state.Store(&Snapshot{Tip: models.BlockRef{Height: models.EmptyChainHeight}})
	return t
}

// Restore seeds the tracker from durable state at startup. The loaded
// checkpoint must satisfy the checkpoint invariants and lie on the chain
// ending at tip. Callers are expected to have matched its hash against the
// block stored at that height.
func (t *Tracker) Restore(tip models.BlockRef, cp *models.Checkpoint) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	next := &Snapshot{Tip: tip}
	if cp != nil {
		if err := cp.Validate(); err != nil {
			return errors.Wrap(err, "restore checkpoint")
		}
		if cp.Height > tip.Height {
			return errors.Wrapf(ErrCheckpointAboveTip, "checkpoint %d, tip %d", cp.Height, tip.Height)
		}
		c := *cp
		next.Checkpoint = &c
	}
	t.state.Store(next)
	return nil
}

// ApplyCheckpoint merges a candidate checkpoint, keeping the highest one.
// It reports whether the candidate replaced the current checkpoint. Stale
// and duplicate candidates are ignored without error.
func (t *Tracker) ApplyCheckpoint(candidate models.Checkpoint) (bool, error) {
	if err := candidate.Validate(); err != nil {
		return false, err
	}

	t.mux.Lock()
	defer t.mux.Unlock()

	cur := t.state.Load()
	if cur.Checkpoint != nil && candidate.Height <= cur.Checkpoint.Height {
		if candidate.Height == cur.Checkpoint.Height && candidate.Hash != cur.Checkpoint.Hash {
			logger.Logger.Warn("Conflicting notarization ignored",
				zap.Int64("height", candidate.Height),
				zap.Stringer("current_hash", cur.Checkpoint.Hash),
				zap.Stringer("candidate_hash", candidate.Hash))
		}
		return false, nil
	}

	if t.store != nil {
		if err := t.store.PutCheckpoint(&candidate); err != nil {
			return false, errors.Wrapf(err, "persist checkpoint at height %d", candidate.Height)
		}
	}

	t.state.Store(&Snapshot{Tip: cur.Tip, Checkpoint: &candidate})
	logger.Logger.Info("Notarization checkpoint advanced",
		zap.Int64("height", candidate.Height), zap.Stringer("hash", candidate.Hash))
	return true, nil
}

// UpdateTip publishes a new chain tip, keeping the current checkpoint.
func (t *Tracker) UpdateTip(tip models.BlockRef) {
	t.mux.Lock()
	defer t.mux.Unlock()

	cur := t.state.Load()
	t.state.Store(&Snapshot{Tip: tip, Checkpoint: cur.Checkpoint})
}

// CurrentCheckpoint returns a copy of the latest accepted checkpoint, or nil
// before any notarization.
func (t *Tracker) CurrentCheckpoint() *models.Checkpoint {
	cp := t.state.Load().Checkpoint
	if cp == nil {
		return nil
	}
	c := *cp
	return &c
}

// Snapshot returns the current tip/checkpoint pair.
func (t *Tracker) Snapshot() Snapshot {
	return *t.state.Load()
}
