package txcheck

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/store"
)

// ContextualChecker validates transactions against the node's accumulated
// chain state: frozen outpoints, registered chromas, and already-attached
// parent transactions. Unlike the isolated checker its verdict can change
// over time as more transactions are learned and attached.
type ContextualChecker struct {
	db *store.DB
}

// NewContextualChecker builds a checker backed by db.
func NewContextualChecker(db *store.DB) *ContextualChecker {
	return &ContextualChecker{db: db}
}

// CheckContextual validates tx against current chain state. It must only be
// called on transactions that already passed CheckIsolated.
func (c *ContextualChecker) CheckContextual(tx kvdb.RTx, yuvTx *YuvTransaction) error {
	switch yuvTx.Kind {
	case TxKindIssue:
		return c.checkIssueContextual(tx, yuvTx)
	case TxKindTransfer:
		return c.checkTransferContextual(tx, yuvTx)
	case TxKindAnnouncement:
		return c.checkAnnouncementContextual(tx, yuvTx)
	default:
		return ErrNotEnoughProofs
	}
}

func (c *ContextualChecker) checkIssueContextual(tx kvdb.RTx, yuvTx *YuvTransaction) error {
	ann := yuvTx.IssueAnnouncement

	// An Issue needs no prior Chroma announcement: an unregistered chroma
	// has no supply cap and is owned by its own key.
	info, err := c.db.GetChroma(tx, ann.Chroma)
	if err != nil && err != store.ErrChromaNotFound {
		return err
	}

	if err := c.checkChromaOwnerSigns(tx, yuvTx.BitcoinTx, ann.Chroma, info); err != nil {
		return err
	}

	return checkSupplyCap(info, ann.Amount)
}

// checkTransferContextual checks every input's freeze state first, then its
// parent's presence. The freeze lookup needs only the outpoint and the
// proof's chroma, so it must not be skipped just because some other input's
// parent is still unknown: a missing parent leaves the transfer waiting in
// the graph builder, which never re-runs contextual checks once the parent
// attaches.
func (c *ContextualChecker) checkTransferContextual(tx kvdb.RTx, yuvTx *YuvTransaction) error {
	parentsMissing := false

	for vin, proof := range yuvTx.InputProofs {
		if int(vin) >= len(yuvTx.BitcoinTx.TxIn) {
			return ErrProofMappedToMissingIO
		}

		in := yuvTx.BitcoinTx.TxIn[vin]

		// Freeze validity is chroma-scoped: an entry recorded under a
		// different chroma than this input's pixel has no effect.
		entry, frozen, err := c.db.GetFreeze(tx, in.PreviousOutPoint)
		if err != nil {
			return err
		}
		if frozen {
			if entry.Chroma == proof.Pixel().Chroma {
				return ErrParentTransactionFrozen
			}
			log.Debugf("ignoring freeze on %v recorded under chroma %v, "+
				"input carries %v", in.PreviousOutPoint, entry.Chroma,
				proof.Pixel().Chroma)
		}

		parent, err := c.db.GetTransaction(tx, in.PreviousOutPoint.Hash)
		if err != nil {
			parentsMissing = true
			continue
		}
		if int(in.PreviousOutPoint.Index) >= len(parent.Tx.TxOut) {
			return ErrParentUtxoNotFound
		}
	}

	if parentsMissing {
		return ErrParentNotFound
	}
	return nil
}

func (c *ContextualChecker) checkAnnouncementContextual(tx kvdb.RTx, yuvTx *YuvTransaction) error {
	switch ann := yuvTx.Announcement.(type) {
	case *announcement.ChromaAnnouncement:
		// A repeated Chroma announcement replaces the recorded one;
		// SetAnnouncement keeps the supply and owner accumulated so far.
		info, err := c.db.GetChroma(tx, ann.Chroma)
		if err != nil && err != store.ErrChromaNotFound {
			return err
		}

		if err := c.checkChromaOwnerSigns(tx, yuvTx.BitcoinTx, ann.Chroma, info); err != nil {
			return err
		}

		// A registration arriving after supply has already been issued
		// must not set a cap beneath what exists.
		if info != nil && ann.MaxSupply != nil && ann.MaxSupply.Sign() > 0 {
			if info.TotalSupply.BigInt().Cmp(ann.MaxSupply) > 0 {
				return ErrSupplyCapExceeded
			}
		}
		return nil

	case *announcement.IssueAnnouncement:
		// A standalone announcement arriving after the full Issue
		// transaction with the same txid has attached is rejected.
		stored, err := c.db.GetTransaction(tx, yuvTx.BitcoinTx.TxHash())
		if err == nil && !stored.AnnouncementOnly {
			return ErrIssueAlreadyAttached
		}

		info, err := c.db.GetChroma(tx, ann.Chroma)
		if err != nil && err != store.ErrChromaNotFound {
			return err
		}

		if err := c.checkChromaOwnerSigns(tx, yuvTx.BitcoinTx, ann.Chroma, info); err != nil {
			return err
		}
		return checkSupplyCap(info, ann.Amount)

	case *announcement.FreezeAnnouncement:
		info, err := c.db.GetChroma(tx, ann.Chroma)
		if err != nil && err != store.ErrChromaNotFound {
			return err
		}

		// Freezability defaults to true for chromas that never
		// published a Chroma announcement.
		if info != nil && info.Announcement != nil && !info.Announcement.IsFreezable {
			return ErrChromaNotFreezable
		}

		return c.checkChromaOwnerSigns(tx, yuvTx.BitcoinTx, ann.Chroma, info)

	case *announcement.TransferOwnershipAnnouncement:
		info, err := c.db.GetChroma(tx, ann.Chroma)
		if err != nil && err != store.ErrChromaNotFound {
			return err
		}

		return c.checkChromaOwnerSigns(tx, yuvTx.BitcoinTx, ann.Chroma, info)

	default:
		return nil
	}
}

// checkSupplyCap rejects issuance that would push total supply past the
// chroma's announced cap. A missing record, missing announcement, or zero
// cap means unlimited supply.
func checkSupplyCap(info *store.ChromaInfo, amount pixel.Luma) error {
	if info == nil || info.Announcement == nil {
		return nil
	}

	maxSupply := info.Announcement.MaxSupply
	if maxSupply == nil || maxSupply.Sign() == 0 {
		return nil
	}

	after := info.TotalSupply.Add(amount)
	if after.BigInt().Cmp(maxSupply) > 0 {
		return ErrSupplyCapExceeded
	}
	return nil
}

// checkChromaOwnerSigns verifies that one of the transaction's inputs is
// signed by the chroma's current owner: either the owner script recorded in
// ChromaInfo, or, if none has been recorded yet (no TransferOwnership has
// ever applied), a P2WPKH input spending the issuer's own tweaked or
// untweaked key. info may be nil for a chroma the node has never seen.
func (c *ContextualChecker) checkChromaOwnerSigns(tx kvdb.RTx, bitcoinTx *wire.MsgTx, chroma pixel.Chroma, info *store.ChromaInfo) error {
	var ownerScript []byte
	if info != nil {
		ownerScript = info.OwnerScript
	}

	for _, in := range bitcoinTx.TxIn {
		if ownerScript != nil {
			prevScript, ok := c.previousOutputScript(tx, in.PreviousOutPoint)
			if ok && bytesEqual(prevScript, ownerScript) {
				return nil
			}
			continue
		}

		if matchesIssuerWitness(in, chroma) {
			return nil
		}
	}

	return ErrNotChromaOwner
}

func (c *ContextualChecker) previousOutputScript(tx kvdb.RTx, op wire.OutPoint) ([]byte, bool) {
	parent, err := c.db.GetTransaction(tx, op.Hash)
	if err != nil || int(op.Index) >= len(parent.Tx.TxOut) {
		return nil, false
	}
	return parent.Tx.TxOut[op.Index].PkScript, true
}

// matchesIssuerWitness reports whether in's P2WPKH witness reveals a public
// key equal to the chroma's own key or to the chroma key tweaked by the
// empty pixel, mirroring the two ways an issuer's UTXO can appear once the
// node has started tweaking change outputs.
func matchesIssuerWitness(in *wire.TxIn, chroma pixel.Chroma) bool {
	if len(in.Witness) != 2 {
		return false
	}

	witnessPubKey, err := btcec.ParsePubKey(in.Witness[1])
	if err != nil {
		return false
	}

	chromaKey, err := chroma.PublicKey()
	if err != nil {
		return false
	}
	if witnessPubKey.IsEqual(chromaKey) {
		return true
	}

	pixelKey, err := pixel.NewPixelKey(pixel.Empty(), chromaKey)
	if err != nil {
		return false
	}

	return witnessPubKey.IsEqual(pixelKey.Key)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ApplyAnnouncement folds an announcement's effect into storage once its
// carrying transaction is attached: registering a chroma, crediting issued
// supply, freezing an outpoint, or replacing an owner script. txid is the
// hash of the transaction carrying the announcement.
func ApplyAnnouncement(tx kvdb.RwTx, db *store.DB, a announcement.Announcement, txid chainhash.Hash) error {
	switch ann := a.(type) {
	case *announcement.ChromaAnnouncement:
		return db.SetAnnouncement(tx, ann)

	case *announcement.IssueAnnouncement:
		return db.AddSupply(tx, ann.Chroma, ann.Amount)

	case *announcement.FreezeAnnouncement:
		return db.Freeze(tx, ann.Outpoint, txid, ann.Chroma)

	case *announcement.TransferOwnershipAnnouncement:
		return db.SetOwner(tx, ann.Chroma, ann.NewOwnerScript)

	default:
		return nil
	}
}
