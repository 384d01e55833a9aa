package controller

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TxState is the pending-state map's value: a transaction is Pending from
// the moment it's handed to the checker until the checker marks it Checked
// and passes it on to the graph builder.
type TxState uint8

const (
	TxStatePending TxState = iota
	TxStateChecked
)

// pendingSet is the compact, in-memory txid -> TxState map the controller
// uses to deduplicate in-flight transactions without touching the
// persistent store, mirroring the index/mutex pairing htlcswitch keeps for
// its own in-memory lookup tables.
type pendingSet struct {
	mu    sync.RWMutex
	state map[chainhash.Hash]TxState
}

func newPendingSet() *pendingSet {
	return &pendingSet{state: make(map[chainhash.Hash]TxState)}
}

// insertIfNotExists records txid as state unless an entry already exists,
// and reports whether it inserted.
func (p *pendingSet) insertIfNotExists(txid chainhash.Hash, state TxState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.state[txid]; ok {
		return false
	}
	p.state[txid] = state
	return true
}

func (p *pendingSet) get(txid chainhash.Hash) (TxState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, ok := p.state[txid]
	return state, ok
}

func (p *pendingSet) setChecked(txid chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.state[txid]; ok {
		p.state[txid] = TxStateChecked
	}
}

func (p *pendingSet) remove(txid chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.state, txid)
}

func (p *pendingSet) removeMany(txids []chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, txid := range txids {
		delete(p.state, txid)
	}
}
