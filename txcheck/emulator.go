package txcheck

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/yuvprotocol/yuvd/store"
)

// EmulateResult is the outcome of a dry-run check. Invalid transactions
// carry the reason instead of an error so RPC clients can simulate a
// submission and inspect why it would fail.
type EmulateResult struct {
	Valid  bool
	Reason string
}

// Emulator runs the full checking pipeline against current state without
// persisting anything, so a wallet can ask "would this transaction be
// accepted right now?" before broadcasting it.
type Emulator struct {
	db         *store.DB
	contextual *ContextualChecker
	params     *chaincfg.Params
}

// NewEmulator builds an Emulator sharing db with the live checker.
func NewEmulator(db *store.DB, params *chaincfg.Params) *Emulator {
	return &Emulator{
		db:         db,
		contextual: NewContextualChecker(db),
		params:     params,
	}
}

// Emulate runs yuvTx through the isolated checker, the parent-resolution
// walk, and the contextual checker. It only errors on storage failures;
// every checker verdict is folded into the result.
func (e *Emulator) Emulate(yuvTx *YuvTransaction) (*EmulateResult, error) {
	if err := CheckIsolated(yuvTx, e.params); err != nil {
		return &EmulateResult{Reason: err.Error()}, nil
	}

	var verdict error
	err := e.db.View(func(tx kvdb.RTx) error {
		// The explicit parent walk distinguishes a parent the node has
		// never seen from a parent that exists but lacks the referenced
		// output, before the contextual checker collapses both paths.
		if yuvTx.Kind == TxKindTransfer {
			if verdict = e.resolveParents(tx, yuvTx); verdict != nil {
				return nil
			}
		}

		verdict = e.contextual.CheckContextual(tx, yuvTx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if verdict != nil {
		return &EmulateResult{Reason: verdict.Error()}, nil
	}
	return &EmulateResult{Valid: true}, nil
}

// resolveParents checks every input proof's outpoint against storage:
// freeze state for every input first (it needs only the outpoint and
// chroma), then parent presence, so a frozen spend is reported even when
// another input's parent is unknown.
func (e *Emulator) resolveParents(tx kvdb.RTx, yuvTx *YuvTransaction) error {
	parentsMissing := false

	for vin, proof := range yuvTx.InputProofs {
		if int(vin) >= len(yuvTx.BitcoinTx.TxIn) {
			return ErrProofMappedToMissingIO
		}

		op := yuvTx.BitcoinTx.TxIn[vin].PreviousOutPoint

		entry, frozen, err := e.db.GetFreeze(tx, op)
		if err != nil {
			return err
		}
		if frozen && entry.Chroma == proof.Pixel().Chroma {
			return ErrParentTransactionFrozen
		}

		parent, err := e.db.GetTransaction(tx, op.Hash)
		if err != nil {
			parentsMissing = true
			continue
		}
		if int(op.Index) >= len(parent.Tx.TxOut) {
			return ErrParentUtxoNotFound
		}
	}

	if parentsMissing {
		return ErrParentNotFound
	}
	return nil
}
