package txcheck

import (
	"encoding/hex"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()

	backend, err := kvdb.Create(
		kvdb.BoltBackendName, filepath.Join(t.TempDir(), "yuv.db"),
		true, kvdb.DefaultDBTimeout,
	)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	db, err := store.Open(backend)
	require.NoError(t, err)
	return db
}

func randKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func TestCheckIsolatedTransferConservation(t *testing.T) {
	priv := randKey(t)
	p := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(priv.PubKey()), Luma: pixel.NewLuma(1000)}

	pixelKey, err := pixel.NewPixelKey(p, priv.PubKey())
	require.NoError(t, err)
	script, err := pixelKey.ToP2WPKH(&chaincfg.RegressionNetParams)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0},
		Witness: wire.TxWitness{
			make([]byte, 64),
			pixelKey.Key.SerializeCompressed(),
		},
	})
	tx.AddTxOut(&wire.TxOut{PkScript: script, Value: 1000})

	yuvTx := &YuvTransaction{
		BitcoinTx: tx,
		Kind:      TxKindTransfer,
		InputProofs: ProofMap{
			0: pixel.NewSigPixelProof(p, priv.PubKey()),
		},
		OutputProofs: ProofMap{
			0: pixel.NewSigPixelProof(p, priv.PubKey()),
		},
	}

	err = CheckIsolated(yuvTx, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
}

func TestCheckIsolatedTransferConservationViolation(t *testing.T) {
	priv := randKey(t)
	p1 := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(priv.PubKey()), Luma: pixel.NewLuma(1000)}
	p2 := pixel.Pixel{Chroma: p1.Chroma, Luma: pixel.NewLuma(500)}

	inKey, err := pixel.NewPixelKey(p1, priv.PubKey())
	require.NoError(t, err)
	pixelKey, err := pixel.NewPixelKey(p2, priv.PubKey())
	require.NoError(t, err)
	script, err := pixelKey.ToP2WPKH(&chaincfg.RegressionNetParams)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0},
		Witness: wire.TxWitness{
			make([]byte, 64),
			inKey.Key.SerializeCompressed(),
		},
	})
	tx.AddTxOut(&wire.TxOut{PkScript: script, Value: 500})

	yuvTx := &YuvTransaction{
		BitcoinTx: tx,
		Kind:      TxKindTransfer,
		InputProofs: ProofMap{
			0: pixel.NewSigPixelProof(p1, priv.PubKey()),
		},
		OutputProofs: ProofMap{
			0: pixel.NewSigPixelProof(p2, priv.PubKey()),
		},
	}

	err = CheckIsolated(yuvTx, &chaincfg.RegressionNetParams)
	require.ErrorIs(t, err, ErrConservationRulesViolated)
}

func TestContextualCheckerRejectsUnauthorizedIssue(t *testing.T) {
	db := newTestDB(t)
	checker := NewContextualChecker(db)

	priv := randKey(t)
	chroma := pixel.ChromaFromPublicKey(priv.PubKey())

	// No input spends the chroma key, so the issuer authorization fails
	// even though an unregistered chroma itself is fine to issue under.
	tx := wire.NewMsgTx(wire.TxVersion)
	yuvTx := &YuvTransaction{
		BitcoinTx:         tx,
		Kind:              TxKindIssue,
		IssueAnnouncement: announcement.NewIssueAnnouncement(chroma, pixel.NewLuma(100)),
	}

	err := db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, yuvTx)
	})
	require.ErrorIs(t, err, ErrNotChromaOwner)
}

// issuerSignedTx builds a transaction whose sole input carries a P2WPKH
// witness revealing the chroma's own key, the default owner authorization.
func issuerSignedTx(t *testing.T, chroma pixel.Chroma) *wire.MsgTx {
	t.Helper()

	chromaKey, err := chroma.PublicKey()
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0},
		Witness: wire.TxWitness{
			make([]byte, 64),
			chromaKey.SerializeCompressed(),
		},
	})
	return tx
}

func TestContextualCheckerEnforcesSupplyCap(t *testing.T) {
	db := newTestDB(t)
	checker := NewContextualChecker(db)

	priv := randKey(t)
	chroma := pixel.ChromaFromPublicKey(priv.PubKey())

	ann, err := announcement.NewChromaAnnouncement(
		chroma, "Capped", "CAP", 0, big.NewInt(1000), false,
	)
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return ApplyAnnouncement(dbTx, db, ann, chainhash.Hash{})
	})
	require.NoError(t, err)

	// First issuance of the full cap passes contextual checking.
	first := &YuvTransaction{
		BitcoinTx:         issuerSignedTx(t, chroma),
		Kind:              TxKindIssue,
		IssueAnnouncement: announcement.NewIssueAnnouncement(chroma, pixel.NewLuma(1000)),
	}
	err = db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, first)
	})
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.AddSupply(dbTx, chroma, pixel.NewLuma(1000))
	})
	require.NoError(t, err)

	// One more unit pushes past the cap.
	second := &YuvTransaction{
		BitcoinTx:         issuerSignedTx(t, chroma),
		Kind:              TxKindIssue,
		IssueAnnouncement: announcement.NewIssueAnnouncement(chroma, pixel.NewLuma(1)),
	}
	err = db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, second)
	})
	require.ErrorIs(t, err, ErrSupplyCapExceeded)
}

func TestContextualCheckerRejectsFreezeOnUnfreezableChroma(t *testing.T) {
	db := newTestDB(t)
	checker := NewContextualChecker(db)

	priv := randKey(t)
	chroma := pixel.ChromaFromPublicKey(priv.PubKey())

	ann, err := announcement.NewChromaAnnouncement(
		chroma, "Solid", "SLD", 0, big.NewInt(0), false,
	)
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return ApplyAnnouncement(dbTx, db, ann, chainhash.Hash{})
	})
	require.NoError(t, err)

	freeze := &YuvTransaction{
		BitcoinTx: issuerSignedTx(t, chroma),
		Kind:      TxKindAnnouncement,
		Announcement: announcement.NewFreezeAnnouncement(
			chroma, wire.OutPoint{Index: 1},
		),
	}
	err = db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, freeze)
	})
	require.ErrorIs(t, err, ErrChromaNotFreezable)
}

func TestContextualCheckerAcceptsRepeatedChromaAnnouncement(t *testing.T) {
	db := newTestDB(t)
	checker := NewContextualChecker(db)

	priv := randKey(t)
	chroma := pixel.ChromaFromPublicKey(priv.PubKey())
	ann, err := announcement.NewChromaAnnouncement(chroma, "Satoshi", "SAT", 8, big.NewInt(21_000_000), true)
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return ApplyAnnouncement(dbTx, db, ann, chainhash.Hash{})
	})
	require.NoError(t, err)

	// A second Chroma announcement authorized by the owner replaces the
	// recorded one instead of being rejected.
	yuvTx := &YuvTransaction{
		BitcoinTx:    issuerSignedTx(t, chroma),
		Kind:         TxKindAnnouncement,
		Announcement: ann,
	}

	err = db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, yuvTx)
	})
	require.NoError(t, err)
}

func TestContextualCheckerRejectsFrozenParent(t *testing.T) {
	db := newTestDB(t)
	checker := NewContextualChecker(db)

	parentTx := wire.NewMsgTx(wire.TxVersion)
	parentTx.AddTxOut(&wire.TxOut{Value: 1000})
	parentTxid := parentTx.TxHash()

	op := wire.OutPoint{Hash: parentTxid, Index: 0}

	err := db.Update(func(dbTx kvdb.RwTx) error {
		if err := db.PutTransaction(dbTx, parentTx, store.TxStatusAttached); err != nil {
			return err
		}
		return db.Freeze(dbTx, op, chainhash.Hash{}, pixel.Chroma{})
	})
	require.NoError(t, err)

	childTx := wire.NewMsgTx(wire.TxVersion)
	childTx.AddTxIn(&wire.TxIn{PreviousOutPoint: op})

	yuvTx := &YuvTransaction{
		BitcoinTx:   childTx,
		Kind:        TxKindTransfer,
		InputProofs: ProofMap{0: pixel.NewSigPixelProof(pixel.Empty(), nil)},
	}

	err = db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, yuvTx)
	})
	require.ErrorIs(t, err, ErrParentTransactionFrozen)
}

func TestEmulatorDistinguishesParentFailures(t *testing.T) {
	db := newTestDB(t)
	emulator := NewEmulator(db, &chaincfg.RegressionNetParams)

	priv := randKey(t)
	p := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(priv.PubKey()), Luma: pixel.NewLuma(10)}

	pixelKey, err := pixel.NewPixelKey(p, priv.PubKey())
	require.NoError(t, err)
	script, err := pixelKey.ToP2WPKH(&chaincfg.RegressionNetParams)
	require.NoError(t, err)

	buildTransfer := func(op wire.OutPoint) *YuvTransaction {
		tx := wire.NewMsgTx(wire.TxVersion)
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: op,
			Witness: wire.TxWitness{
				make([]byte, 64),
				pixelKey.Key.SerializeCompressed(),
			},
		})
		tx.AddTxOut(&wire.TxOut{PkScript: script, Value: 1000})
		return &YuvTransaction{
			BitcoinTx:    tx,
			Kind:         TxKindTransfer,
			InputProofs:  ProofMap{0: pixel.NewSigPixelProof(p, priv.PubKey())},
			OutputProofs: ProofMap{0: pixel.NewSigPixelProof(p, priv.PubKey())},
		}
	}

	// Unknown parent transaction.
	var unknown chainhash.Hash
	unknown[0] = 0x11
	result, err := emulator.Emulate(buildTransfer(wire.OutPoint{Hash: unknown}))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, ErrParentNotFound.Error(), result.Reason)

	// Known parent, missing output index.
	parentTx := wire.NewMsgTx(wire.TxVersion)
	parentTx.AddTxOut(&wire.TxOut{Value: 1, PkScript: script})
	parentTxid := parentTx.TxHash()
	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.PutTransaction(dbTx, parentTx, store.TxStatusAttached)
	})
	require.NoError(t, err)

	result, err = emulator.Emulate(buildTransfer(wire.OutPoint{Hash: parentTxid, Index: 5}))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, ErrParentUtxoNotFound.Error(), result.Reason)

	// Frozen parent outpoint under the transfer's chroma.
	op := wire.OutPoint{Hash: parentTxid, Index: 0}
	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.Freeze(dbTx, op, chainhash.Hash{}, p.Chroma)
	})
	require.NoError(t, err)

	result, err = emulator.Emulate(buildTransfer(op))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, ErrParentTransactionFrozen.Error(), result.Reason)

	// Unfreezing makes the same transfer valid.
	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.Unfreeze(dbTx, op)
	})
	require.NoError(t, err)

	result, err = emulator.Emulate(buildTransfer(op))
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestBulletproofConservationRejectsMixedProofs(t *testing.T) {
	priv := randKey(t)
	p := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(priv.PubKey()), Luma: pixel.NewLuma(1)}

	mixed := ProofMap{0: pixel.NewSigPixelProof(p, priv.PubKey())}

	err := checkBulletproofConservation(mixed, ProofMap{})
	require.ErrorIs(t, err, ErrMixedConfidentialProofs)

	// A confidential transfer with no input proofs has nothing to balance
	// against and is rejected.
	err = checkBulletproofConservation(ProofMap{}, ProofMap{})
	require.ErrorIs(t, err, ErrConservationRulesViolated)
}

func TestContextualCheckerFreezeAfterOwnershipTransfer(t *testing.T) {
	db := newTestDB(t)
	checker := NewContextualChecker(db)

	priv := randKey(t)
	chroma := pixel.ChromaFromPublicKey(priv.PubKey())

	ownerScript := []byte("16-byte-owner-sc")
	err := db.Update(func(dbTx kvdb.RwTx) error {
		return db.SetOwner(dbTx, chroma, ownerScript)
	})
	require.NoError(t, err)

	freezeAnn := announcement.NewFreezeAnnouncement(chroma, wire.OutPoint{Index: 3})

	// The old issuer's P2WPKH witness no longer authorizes announcements
	// once an owner script is recorded.
	stale := &YuvTransaction{
		BitcoinTx:    issuerSignedTx(t, chroma),
		Kind:         TxKindAnnouncement,
		Announcement: freezeAnn,
	}
	err = db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, stale)
	})
	require.ErrorIs(t, err, ErrNotChromaOwner)

	// Spending an output locked to the recorded owner script does.
	parent := wire.NewMsgTx(wire.TxVersion)
	parent.AddTxOut(&wire.TxOut{Value: 1000, PkScript: ownerScript})
	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.PutTransaction(dbTx, parent, store.TxStatusAttached)
	})
	require.NoError(t, err)

	authorized := wire.NewMsgTx(wire.TxVersion)
	authorized.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: parent.TxHash(), Index: 0},
	})

	fresh := &YuvTransaction{
		BitcoinTx:    authorized,
		Kind:         TxKindAnnouncement,
		Announcement: freezeAnn,
	}
	err = db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, fresh)
	})
	require.NoError(t, err)
}

// burnPubKey returns the canonical burn point, whose appearance as a
// proof's tweaked inner key marks the output as burnt.
func burnPubKey(t *testing.T) *btcec.PublicKey {
	t.Helper()

	raw, err := hex.DecodeString(
		"0250929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0",
	)
	require.NoError(t, err)

	key, err := btcec.ParsePubKey(raw)
	require.NoError(t, err)
	return key
}

func TestCheckIsolatedRejectsBurntInput(t *testing.T) {
	burn := burnPubKey(t)
	p := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(burn), Luma: pixel.NewLuma(10)}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})

	yuvTx := &YuvTransaction{
		BitcoinTx:   tx,
		Kind:        TxKindTransfer,
		InputProofs: ProofMap{0: pixel.NewSigPixelProof(p, burn)},
	}

	err := CheckIsolated(yuvTx, &chaincfg.RegressionNetParams)
	require.ErrorIs(t, err, ErrBurntTokensSpending)
}

// frozenAndMissingParentTransfer builds a two-input transfer: input 0
// spends a known, frozen parent outpoint and input 1 references a parent
// the node has never seen. The freeze must be reported regardless of which
// input the (unordered) proof map yields first.
func frozenAndMissingParentTransfer(t *testing.T, db *store.DB) *YuvTransaction {
	t.Helper()

	priv := randKey(t)
	p := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(priv.PubKey()), Luma: pixel.NewLuma(10)}

	parentTx := wire.NewMsgTx(wire.TxVersion)
	parentTx.AddTxOut(&wire.TxOut{Value: 1000})
	frozenOp := wire.OutPoint{Hash: parentTx.TxHash(), Index: 0}

	err := db.Update(func(dbTx kvdb.RwTx) error {
		if err := db.PutTransaction(dbTx, parentTx, store.TxStatusAttached); err != nil {
			return err
		}
		return db.Freeze(dbTx, frozenOp, chainhash.Hash{0xfc}, p.Chroma)
	})
	require.NoError(t, err)

	var unknownParent chainhash.Hash
	unknownParent[0] = 0x44

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: frozenOp})
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: unknownParent, Index: 0}})

	return &YuvTransaction{
		BitcoinTx: tx,
		Kind:      TxKindTransfer,
		InputProofs: ProofMap{
			0: pixel.NewSigPixelProof(p, priv.PubKey()),
			1: pixel.NewSigPixelProof(p, priv.PubKey()),
		},
	}
}

func TestContextualCheckerReportsFreezeDespiteMissingParent(t *testing.T) {
	db := newTestDB(t)
	checker := NewContextualChecker(db)

	yuvTx := frozenAndMissingParentTransfer(t, db)

	err := db.View(func(dbTx kvdb.RTx) error {
		return checker.CheckContextual(dbTx, yuvTx)
	})
	require.ErrorIs(t, err, ErrParentTransactionFrozen)
}

func TestEmulatorReportsFreezeDespiteMissingParent(t *testing.T) {
	db := newTestDB(t)
	emulator := NewEmulator(db, &chaincfg.RegressionNetParams)

	yuvTx := frozenAndMissingParentTransfer(t, db)

	var verdict error
	err := db.View(func(dbTx kvdb.RTx) error {
		verdict = emulator.resolveParents(dbTx, yuvTx)
		return nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, verdict, ErrParentTransactionFrozen)
}
