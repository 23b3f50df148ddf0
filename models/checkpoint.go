package models

import "github.com/pkg/errors"

// ErrInvalidCheckpoint is returned for a checkpoint that can never be valid,
// regardless of the local chain.
var ErrInvalidCheckpoint = errors.New("invalid checkpoint")

// Checkpoint is the highest block known to be notarized into the notary
// chain. Only the latest accepted checkpoint is live; older ones are
// superseded, never deleted.
type Checkpoint struct {
	Height int64 `json:"height"`
	Hash   Hash  `json:"hash"`
}

// Validate checks the invariants every checkpoint must satisfy before it is
// fed to a tracker, including checkpoints loaded from disk.
func (c Checkpoint) Validate() error {
	if c.Height < 0 {
		return errors.Wrapf(ErrInvalidCheckpoint, "negative height %d", c.Height)
	}
	if c.Hash.IsZero() {
		return errors.Wrapf(ErrInvalidCheckpoint, "zero hash at height %d", c.Height)
	}
	return nil
}

// Covers reports whether a block at height is anchored by c.
func (c *Checkpoint) Covers(height int64) bool {
	return c != nil && height <= c.Height
}
