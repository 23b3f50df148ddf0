package wallet

import (
	"sort"

	"dpow-project/dpow"
	"dpow-project/logger"
	"dpow-project/models"
	"dpow-project/repository"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrTxNotFound    = errors.New("transaction not found")
	ErrInvalidOutput = errors.New("invalid output")
)

// ChainView gives the wallet a consistent read of the chain.
type ChainView interface {
	// WithSnapshot runs fn with the chain held still at snap.Tip.
	WithSnapshot(fn func(snap dpow.Snapshot) error) error
	// TxInclusion returns nil when txid is not in a connected block.
	TxInclusion(txid models.Hash) (*models.TxInclusion, error)
}

// UnspentEntry is one row of ListUnspent.
type UnspentEntry struct {
	TxID      models.Hash `json:"txid"`
	Vout      uint32      `json:"vout"`
	Address   string      `json:"address"`
	Amount    int64       `json:"amount"`
	Generated bool        `json:"generated"`
	models.ConfirmationResult
}

// ReceivedEntry is one row of ListReceivedByAddress. Confirmations are those
// of the least confirmed output that counted towards Amount.
type ReceivedEntry struct {
	Address string        `json:"address"`
	Amount  int64         `json:"amount"`
	TxIDs   []models.Hash `json:"txids"`
	models.ConfirmationResult
}

// TxDetail is the result of GetTransaction.
type TxDetail struct {
	TxID      models.Hash      `json:"txid"`
	BlockHash *models.Hash     `json:"blockhash,omitempty"`
	Height    *int64           `json:"height,omitempty"`
	Outputs   []*models.Output `json:"outputs"`
	models.ConfirmationResult
}

// Info is the node summary returned by GetInfo. The notarization fields are
// omitted until the first checkpoint is accepted.
type Info struct {
	Blocks        int64        `json:"blocks"`
	BestBlockHash models.Hash  `json:"bestblockhash"`
	Notarized     *int64       `json:"notarized,omitempty"`
	NotarizedHash *models.Hash `json:"notarizedhash,omitempty"`
}

// Service answers balance and history queries with dPoW confirmations.
type Service struct {
	repo    repository.OutputRepositoryInterface
	chain   ChainView
	tracker *dpow.Tracker
}

func NewService(repo repository.OutputRepositoryInterface, chain ChainView, tracker *dpow.Tracker) *Service {
	return &Service{repo: repo, chain: chain, tracker: tracker}
}

// RecordOutput stores a wallet output. If its transaction is already in a
// connected block the inclusion is filled in; otherwise it stays in the
// mempool until a block containing the txid is connected.
func (s *Service) RecordOutput(out *models.Output) error {
	if out.TxID.IsZero() {
		return errors.Wrap(ErrInvalidOutput, "missing txid")
	}
	if out.Address == "" {
		return errors.Wrap(ErrInvalidOutput, "missing address")
	}
	if out.Amount < 0 {
		return errors.Wrapf(ErrInvalidOutput, "negative amount %d", out.Amount)
	}

	return s.chain.WithSnapshot(func(dpow.Snapshot) error {
		inc, err := s.chain.TxInclusion(out.TxID)
		if err != nil {
			return err
		}
		out.Inclusion = inc
		if err := s.repo.PutOutput(out); err != nil {
			return errors.Wrapf(err, "store output %s:%d", out.TxID, out.Vout)
		}
		logger.Logger.Debug("Recorded wallet output",
			zap.Stringer("txid", out.TxID),
			zap.Uint32("vout", out.Vout),
			zap.Bool("mined", inc != nil))
		return nil
	})
}

// filterOutputs loads every output and keeps those with at least minConf
// dPoW confirmations, all against one chain snapshot.
func (s *Service) filterOutputs(minConf int64) ([]dpow.Result[*models.Output], error) {
	var results []dpow.Result[*models.Output]
	err := s.chain.WithSnapshot(func(snap dpow.Snapshot) error {
		outs, err := s.repo.GetAllOutputs()
		if err != nil {
			return err
		}
		candidates := make([]dpow.Candidate[*models.Output], len(outs))
		for i, out := range outs {
			candidates[i] = dpow.Candidate[*models.Output]{Item: out, Inclusion: out.Inclusion}
		}
		results, err = dpow.FilterByMinConfirmations(candidates, minConf, snap)
		return err
	})
	if err != nil {
		logger.Logger.Error("Confirmation query failed", zap.Int64("minconf", minConf), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// ListUnspent returns outputs whose dPoW confirmations lie in [minConf, maxConf].
// Spends are not tracked, so every recorded output is listed.
func (s *Service) ListUnspent(minConf, maxConf int64) ([]UnspentEntry, error) {
	results, err := s.filterOutputs(minConf)
	if err != nil {
		return nil, err
	}

	entries := make([]UnspentEntry, 0, len(results))
	for _, r := range results {
		if r.Confirmations.DPoW > maxConf {
			continue
		}
		entries = append(entries, UnspentEntry{
			TxID:               r.Item.TxID,
			Vout:               r.Item.Vout,
			Address:            r.Item.Address,
			Amount:             r.Item.Amount,
			Generated:          r.Item.Generated,
			ConfirmationResult: r.Confirmations,
		})
	}
	return entries, nil
}

// ListReceivedByAddress totals the outputs passing minConf per address,
// ordered by address.
func (s *Service) ListReceivedByAddress(minConf int64) ([]ReceivedEntry, error) {
	results, err := s.filterOutputs(minConf)
	if err != nil {
		return nil, err
	}

	byAddr := make(map[string]*ReceivedEntry)
	seen := make(map[string]map[models.Hash]bool)
	for _, r := range results {
		addr := r.Item.Address
		e, ok := byAddr[addr]
		if !ok {
			e = &ReceivedEntry{Address: addr, ConfirmationResult: r.Confirmations}
			byAddr[addr] = e
			seen[addr] = make(map[models.Hash]bool)
		}
		e.Amount += r.Item.Amount
		if r.Confirmations.DPoW < e.DPoW {
			e.DPoW = r.Confirmations.DPoW
		}
		if r.Confirmations.Raw < e.Raw {
			e.Raw = r.Confirmations.Raw
		}
		if !seen[addr][r.Item.TxID] {
			seen[addr][r.Item.TxID] = true
			e.TxIDs = append(e.TxIDs, r.Item.TxID)
		}
	}

	entries := make([]ReceivedEntry, 0, len(byAddr))
	for _, e := range byAddr {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
	return entries, nil
}

// GetBalance sums the outputs with at least minConf dPoW confirmations.
func (s *Service) GetBalance(minConf int64) (int64, error) {
	results, err := s.filterOutputs(minConf)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, r := range results {
		total += r.Item.Amount
	}
	return total, nil
}

// GetTransaction returns the wallet outputs of txid with its confirmations.
func (s *Service) GetTransaction(txid models.Hash) (*TxDetail, error) {
	var detail *TxDetail
	err := s.chain.WithSnapshot(func(snap dpow.Snapshot) error {
		outs, err := s.repo.GetOutputsByTx(txid)
		if err != nil {
			return err
		}
		if len(outs) == 0 {
			return errors.Wrapf(ErrTxNotFound, "%s", txid)
		}

		inc := outs[0].Inclusion
		conf, err := snap.Compute(inc)
		if err != nil {
			return err
		}
		detail = &TxDetail{TxID: txid, Outputs: outs, ConfirmationResult: conf}
		if inc != nil {
			detail.BlockHash = &inc.BlockHash
			detail.Height = &inc.Height
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// GetInfo reports the tip and the latest notarization.
func (s *Service) GetInfo() Info {
	snap := s.tracker.Snapshot()
	info := Info{Blocks: snap.Tip.Height, BestBlockHash: snap.Tip.Hash}
	if snap.Checkpoint != nil {
		height, hash := snap.Checkpoint.Height, snap.Checkpoint.Hash
		info.Notarized = &height
		info.NotarizedHash = &hash
	}
	return info
}
