package models

// TxInclusion identifies the block a transaction was mined in. A nil
// *TxInclusion means the transaction is still in the mempool.
type TxInclusion struct {
	Height    int64 `json:"height"`
	BlockHash Hash  `json:"blockhash"`
}

// ConfirmationResult carries both confirmation figures for one transaction.
// DPoW is the authoritative count clients see as "confirmations"; Raw is
// plain chain depth.
type ConfirmationResult struct {
	DPoW int64 `json:"confirmations"`
	Raw  int64 `json:"rawconfirmations"`
}
