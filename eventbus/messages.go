package eventbus

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/yuvprotocol/yuvd/p2p"
	"github.com/yuvprotocol/yuvd/txcheck"
)

// InvalidTxs reports transactions the checker rejected. If sender is
// non-empty, that peer supplied the transactions and is punished for it.
type InvalidTxs struct {
	TxIDs  []chainhash.Hash
	Sender string
}

// AttachedTxs reports transactions the graph builder just attached.
type AttachedTxs struct {
	TxIDs []chainhash.Hash
}

// CheckedAnnouncement reports that a standalone announcement transaction
// finished its contextual check and no longer needs tracking.
type CheckedAnnouncement struct {
	TxID chainhash.Hash
}

// ConfirmBatchTx is published by the indexer's subindexers: locally
// submitted transactions once their block is indexed, and announcements
// found in indexed blocks. The controller forwards them for checking with
// no P2P sender to punish on failure.
type ConfirmBatchTx struct {
	Txs []*txcheck.YuvTransaction
}

// InboundInv is an Inv message received from a peer.
type InboundInv struct {
	Items  []p2p.Inventory
	Sender string
}

// InboundGetData is a GetData message received from a peer.
type InboundGetData struct {
	Items  []p2p.Inventory
	Sender string
}

// InboundYuvTx is a YuvTx message received from a peer.
type InboundYuvTx struct {
	Txs    []*txcheck.YuvTransaction
	Sender string
}

// TxsToConfirm is published by the controller for the checker to pick up:
// newly-seen transactions, deduplicated against storage and the pending
// set. Sender is the peer that supplied them, or empty for local
// submissions and announcements found by the indexer.
type TxsToConfirm struct {
	Txs    []*txcheck.YuvTransaction
	Sender string
}

// RequestParents asks the controller to fetch missing parent transactions
// from the peer that sent their child.
type RequestParents struct {
	Parents []chainhash.Hash
	Peer    string
}
