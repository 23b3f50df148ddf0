package dpow

import "dpow-project/models"

// Candidate is a query item paired with where its transaction was mined.
type Candidate[T any] struct {
	Item      T
	Inclusion *models.TxInclusion
}

// Result is an item that passed a confirmation filter.
type Result[T any] struct {
	Item          T
	Confirmations models.ConfirmationResult
}

// FilterByMinConfirmations keeps the candidates with at least minConf dPoW
// confirmations, in input order. minConf <= 0 keeps mempool items too.
// Any inconsistency aborts the whole query.
func FilterByMinConfirmations[T any](candidates []Candidate[T], minConf int64, snap Snapshot) ([]Result[T], error) {
	results := make([]Result[T], 0, len(candidates))
	for _, c := range candidates {
		conf, err := snap.Compute(c.Inclusion)
		if err != nil {
			return nil, err
		}
		if conf.DPoW < minConf {
			continue
		}
		results = append(results, Result[T]{Item: c.Item, Confirmations: conf})
	}
	return results, nil
}
