package pipeline

import (
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
	"github.com/yuvprotocol/yuvd/eventbus"
	"github.com/yuvprotocol/yuvd/graph"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

func newTestService(t *testing.T) (*Service, *eventbus.Bus) {
	t.Helper()

	backend, err := kvdb.Create(
		kvdb.BoltBackendName, filepath.Join(t.TempDir(), "yuv.db"),
		true, kvdb.DefaultDBTimeout,
	)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	db, err := store.Open(backend)
	require.NoError(t, err)

	bus := eventbus.New()
	contextual := txcheck.NewContextualChecker(db)
	builder := graph.NewBuilder(db)

	svc := New(db, contextual, builder, bus, &chaincfg.RegressionNetParams)
	return svc, bus
}

func TestPipelinePublishesCheckedAnnouncement(t *testing.T) {
	svc, bus := newTestService(t)

	announceCh := eventbus.Subscribe[eventbus.CheckedAnnouncement](bus)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	chroma := pixel.ChromaFromPublicKey(priv.PubKey())

	ann, err := announcement.NewChromaAnnouncement(chroma, "Satoshi", "SAT", 8, big.NewInt(21_000_000), false)
	require.NoError(t, err)

	script, err := announcement.ToScript(ann)
	require.NoError(t, err)

	chromaKey, err := chroma.PublicKey()
	require.NoError(t, err)

	// The sole input reveals the chroma's own key, authorizing the
	// announcement under the default owner rule.
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0},
		Witness: wire.TxWitness{
			make([]byte, 64),
			chromaKey.SerializeCompressed(),
		},
	})
	tx.AddTxOut(&wire.TxOut{PkScript: script})

	yuvTx := &txcheck.YuvTransaction{
		BitcoinTx:    tx,
		Kind:         txcheck.TxKindAnnouncement,
		Announcement: ann,
	}

	svc.handleBatch([]*txcheck.YuvTransaction{yuvTx}, "")

	got := <-announceCh
	require.Equal(t, tx.TxHash(), got.TxID)
}

func TestPipelinePublishesInvalidOnFailedIsolatedCheck(t *testing.T) {
	svc, bus := newTestService(t)

	invalidCh := eventbus.Subscribe[eventbus.InvalidTxs](bus)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	// Output script doesn't match what the proof expects, so the isolated
	// checker must reject the transfer.
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x00, 0x14}})

	yuvTx := &txcheck.YuvTransaction{
		BitcoinTx: tx,
		Kind:      txcheck.TxKindTransfer,
		OutputProofs: txcheck.ProofMap{
			0: pixel.NewSigPixelProof(pixel.Pixel{Chroma: pixel.Chroma{9}, Luma: pixel.NewLuma(1)}, priv.PubKey()),
		},
	}

	svc.handleBatch([]*txcheck.YuvTransaction{yuvTx}, "peer.example:8333")

	got := <-invalidCh
	require.Equal(t, tx.TxHash(), got.TxIDs[0])
	require.Equal(t, "peer.example:8333", got.Sender)
}

func TestPipelineRequestsMissingParents(t *testing.T) {
	svc, bus := newTestService(t)

	requestCh := eventbus.Subscribe[eventbus.RequestParents](bus)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	p := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(priv.PubKey()), Luma: pixel.NewLuma(10)}

	pixelKey, err := pixel.NewPixelKey(p, priv.PubKey())
	require.NoError(t, err)
	script, err := pixelKey.ToP2WPKH(&chaincfg.RegressionNetParams)
	require.NoError(t, err)

	var parentTxid chainhash.Hash
	parentTxid[0] = 0x77

	// The input spends an unknown parent; its witness reveals the tweaked
	// key so the isolated check passes and only the parent lookup fails.
	tweakedKey := pixelKey.Key.SerializeCompressed()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: parentTxid, Index: 0},
		Witness:          wire.TxWitness{make([]byte, 64), tweakedKey},
	})
	tx.AddTxOut(&wire.TxOut{PkScript: script, Value: 1000})

	yuvTx := &txcheck.YuvTransaction{
		BitcoinTx:    tx,
		Kind:         txcheck.TxKindTransfer,
		InputProofs:  txcheck.ProofMap{0: pixel.NewSigPixelProof(p, priv.PubKey())},
		OutputProofs: txcheck.ProofMap{0: pixel.NewSigPixelProof(p, priv.PubKey())},
	}

	svc.handleBatch([]*txcheck.YuvTransaction{yuvTx}, "peer.example:8333")

	got := <-requestCh
	require.Equal(t, []chainhash.Hash{parentTxid}, got.Parents)
	require.Equal(t, "peer.example:8333", got.Peer)
}
