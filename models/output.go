package models

// Output is a wallet-relevant transaction output.
type Output struct {
	TxID      Hash         `json:"txid"`
	Vout      uint32       `json:"vout"`
	Address   string       `json:"address"`
	Amount    int64        `json:"amount"`              // in base units
	Generated bool         `json:"generated"`           // coinbase output
	Inclusion *TxInclusion `json:"inclusion,omitempty"` // nil while in mempool
}
