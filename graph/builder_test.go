package graph

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
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

func TestAttachTxsWaitsOnMissingParent(t *testing.T) {
	db := newTestDB(t)
	builder := NewBuilder(db)

	parent := wire.NewMsgTx(wire.TxVersion)
	parent.AddTxOut(&wire.TxOut{Value: 100})
	parentTxid := parent.TxHash()

	child := wire.NewMsgTx(wire.TxVersion)
	child.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: parentTxid, Index: 0}})

	childYuv := &txcheck.YuvTransaction{
		BitcoinTx:   child,
		Kind:        txcheck.TxKindTransfer,
		InputProofs: txcheck.ProofMap{0: pixel.NewSigPixelProof(pixel.Empty(), nil)},
	}

	attached, err := builder.AttachTxs([]*txcheck.YuvTransaction{childYuv})
	require.NoError(t, err)
	require.Empty(t, attached)

	parentYuv := &txcheck.YuvTransaction{
		BitcoinTx: parent,
		Kind:      txcheck.TxKindIssue,
	}

	attached, err = builder.AttachTxs([]*txcheck.YuvTransaction{parentYuv})
	require.NoError(t, err)
	require.ElementsMatch(t, []chainhash.Hash{parentTxid, child.TxHash()}, attached)
}

func TestCleanupPrunesOutdatedAndDescendants(t *testing.T) {
	db := newTestDB(t)
	builder := NewBuilder(db).WithOutdatedDuration(time.Millisecond)

	parent := wire.NewMsgTx(wire.TxVersion)
	parent.AddTxOut(&wire.TxOut{Value: 1})
	parentTxid := parent.TxHash()

	child := wire.NewMsgTx(wire.TxVersion)
	child.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: parentTxid, Index: 0}})

	childYuv := &txcheck.YuvTransaction{
		BitcoinTx:   child,
		Kind:        txcheck.TxKindTransfer,
		InputProofs: txcheck.ProofMap{0: pixel.NewSigPixelProof(pixel.Empty(), nil)},
	}

	_, err := builder.AttachTxs([]*txcheck.YuvTransaction{childYuv})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	removed := builder.Cleanup(time.Now())
	require.Len(t, removed, 1)
	require.Equal(t, child.TxHash(), removed[0])
}
