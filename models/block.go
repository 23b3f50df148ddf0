package models

// EmptyChainHeight is the tip height reported before a genesis block is connected.
const EmptyChainHeight int64 = -1

// BlockRef points at a block on the currently recognized chain.
type BlockRef struct {
	Height int64 `json:"height"` // -1 when the chain is empty
	Hash   Hash  `json:"hash"`
}

// Block is a block as delivered by the consensus collaborator. Height is
// assigned by the chain when the block is connected.
type Block struct {
	Hash     Hash   `json:"hash"`
	PrevHash Hash   `json:"prev_hash"`       // zero for genesis
	Height   int64  `json:"height"`          // filled in on connect
	TxIDs    []Hash `json:"txids,omitempty"` // transactions mined in this block
	Time     int64  `json:"time,omitempty"`  // unix timestamp in ms
}

// Ref returns the height/hash pair of b.
func (b *Block) Ref() BlockRef {
	return BlockRef{Height: b.Height, Hash: b.Hash}
}
