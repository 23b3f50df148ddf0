package dpow

import (
	"dpow-project/models"

	"github.com/pkg/errors"
)

// ErrInconsistentChainView means a mined transaction computed to fewer than
// one confirmation, i.e. the tip is below the block that includes it.
var ErrInconsistentChainView = errors.New("inconsistent chain view")

// Compute returns raw and dPoW confirmations for tx at the given tip.
//
// A nil tx is a mempool transaction and has no confirmations. A mined
// transaction whose block is not covered by cp reports at most one dPoW
// confirmation however deep it is; once covered, dPoW equals raw depth.
func Compute(tx *models.TxInclusion, tip models.BlockRef, cp *models.Checkpoint) (models.ConfirmationResult, error) {
	if tx == nil {
		return models.ConfirmationResult{}, nil
	}

	raw := tip.Height - tx.Height + 1
	if raw < 1 {
		return models.ConfirmationResult{}, errors.Wrapf(ErrInconsistentChainView,
			"tx in block %s at height %d is above tip %d", tx.BlockHash, tx.Height, tip.Height)
	}

	if !cp.Covers(tx.Height) {
		return models.ConfirmationResult{Raw: raw, DPoW: 1}, nil
	}
	return models.ConfirmationResult{Raw: raw, DPoW: raw}, nil
}
