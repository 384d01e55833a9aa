// Package txcheck implements the two-stage validation pipeline every
// incoming transaction passes through: an isolated check that only looks at
// the transaction itself, and a contextual check that consults chain state
// (the frozen set, chroma registry, and already-attached parents).
package txcheck

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
)

// TxKind identifies what a YuvTransaction is asserting: new issuance, a
// plain transfer of existing pixels, or a bare announcement with no
// tokenized outputs of its own.
type TxKind uint8

const (
	TxKindIssue TxKind = iota
	TxKindTransfer
	TxKindAnnouncement
)

// ProofMap associates a pixel proof with the input or output index it
// belongs to. Indices not present in the map are assumed untokenized
// (plain satoshis or OP_RETURN outputs).
type ProofMap map[uint32]pixel.Proof

// YuvTransaction pairs a Bitcoin transaction with the YUV-specific metadata
// needed to check and attach it: its kind, the proofs attached to its
// inputs/outputs, and, for announcement transactions, the parsed
// announcement itself.
type YuvTransaction struct {
	BitcoinTx *wire.MsgTx
	Kind      TxKind

	InputProofs  ProofMap
	OutputProofs ProofMap

	IssueAnnouncement *announcement.IssueAnnouncement
	Announcement      announcement.Announcement
}

// Txid returns the underlying Bitcoin transaction's hash.
func (t *YuvTransaction) Txid() [32]byte {
	return t.BitcoinTx.TxHash()
}
