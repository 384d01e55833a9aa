package indexer

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/yuvprotocol/yuvd/eventbus"
	"github.com/yuvprotocol/yuvd/txcheck"
)

// ConfirmationSubindexer holds locally-submitted transactions until the
// block that mines them reaches the confirmation depth, then releases them
// to the checker over the event bus. Transactions relayed by peers skip
// this stage: peers only gossip what they have already attached, so their
// confirmation depth was enforced on the sending side.
type ConfirmationSubindexer struct {
	bus *eventbus.Bus

	mu      sync.Mutex
	waiting map[chainhash.Hash]*txcheck.YuvTransaction
}

// NewConfirmationSubindexer builds an empty confirmation watcher publishing
// to bus.
func NewConfirmationSubindexer(bus *eventbus.Bus) *ConfirmationSubindexer {
	return &ConfirmationSubindexer{
		bus:     bus,
		waiting: make(map[chainhash.Hash]*txcheck.YuvTransaction),
	}
}

// Observe registers transactions to be released once mined. Re-observing a
// txid replaces the earlier entry.
func (s *ConfirmationSubindexer) Observe(txs []*txcheck.YuvTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		s.waiting[tx.Txid()] = tx
	}
}

// WaitingCount returns how many transactions are still awaiting
// confirmation.
func (s *ConfirmationSubindexer) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}

// Index releases every waiting transaction contained in block to the
// checker.
func (s *ConfirmationSubindexer) Index(block *IndexedBlock) error {
	s.mu.Lock()

	var confirmed []*txcheck.YuvTransaction
	for _, tx := range block.Txs {
		txid := tx.TxHash()
		if yuvTx, ok := s.waiting[txid]; ok {
			confirmed = append(confirmed, yuvTx)
			delete(s.waiting, txid)
		}
	}

	s.mu.Unlock()

	if len(confirmed) > 0 {
		log.Debugf("Block %v at height %d confirmed %d waiting txs",
			block.Hash, block.Height, len(confirmed))
		eventbus.Publish(s.bus, eventbus.ConfirmBatchTx{Txs: confirmed})
	}
	return nil
}
