package indexer

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// IndexedBlock is the subset of a confirmed block a Subindexer needs: its
// identity and the transactions it contains, already known to be at Height
// with confirmation depth satisfied.
type IndexedBlock struct {
	Hash         chainhash.Hash
	PreviousHash chainhash.Hash
	Height       uint32
	Txs          []*wire.MsgTx
}

func newIndexedBlock(height uint32, block *wire.MsgBlock) *IndexedBlock {
	txs := make([]*wire.MsgTx, len(block.Transactions))
	copy(txs, block.Transactions)

	return &IndexedBlock{
		Hash:         block.BlockHash(),
		PreviousHash: block.Header.PrevBlock,
		Height:       height,
		Txs:          txs,
	}
}

// Subindexer reacts to every confirmed block, in height order, exactly
// once. Implementations must not assume anything about concurrent access:
// the indexer invokes every subindexer for a block sequentially.
type Subindexer interface {
	Index(block *IndexedBlock) error
}
