package controller

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"

	"github.com/yuvprotocol/yuvd/eventbus"
	"github.com/yuvprotocol/yuvd/p2p"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

type fakeP2P struct {
	sentInv     []p2p.Inventory
	getDataReqs map[string][]p2p.Inventory
	banned      []string
}

func newFakeP2P() *fakeP2P {
	return &fakeP2P{getDataReqs: make(map[string][]p2p.Inventory)}
}

func (f *fakeP2P) SendInv(_ context.Context, inv []p2p.Inventory) error {
	f.sentInv = inv
	return nil
}

func (f *fakeP2P) SendGetData(_ context.Context, inv []p2p.Inventory, peer string) error {
	f.getDataReqs[peer] = inv
	return nil
}

func (f *fakeP2P) SendYuvTxs(_ context.Context, _ []*txcheck.YuvTransaction, _ string) error {
	return nil
}

func (f *fakeP2P) BanPeer(_ context.Context, peer string) error {
	f.banned = append(f.banned, peer)
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeP2P) {
	t.Helper()

	backend, err := kvdb.Create(
		kvdb.BoltBackendName, filepath.Join(t.TempDir(), "yuv.db"),
		true, kvdb.DefaultDBTimeout,
	)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	db, err := store.Open(backend)
	require.NoError(t, err)

	fake := newFakeP2P()
	c := New(db, eventbus.New(), fake)
	return c, fake
}

func randTx(t *testing.T) *wire.MsgTx {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	p := pixel.Pixel{Chroma: pixel.ChromaFromPublicKey(priv.PubKey()), Luma: pixel.NewLuma(1)}
	key, err := pixel.NewPixelKey(p, priv.PubKey())
	require.NoError(t, err)

	script, err := key.ToP2WPKH(&chaincfg.RegressionNetParams)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 1, PkScript: script})
	return tx
}

func TestHandleNewYuvTxsPublishesFreshOnly(t *testing.T) {
	c, _ := newTestController(t)

	ch := eventbus.Subscribe[eventbus.TxsToConfirm](c.bus)

	tx1 := randTx(t)
	yuvTx1 := &txcheck.YuvTransaction{BitcoinTx: tx1, Kind: txcheck.TxKindIssue}

	c.handleNewYuvTxs([]*txcheck.YuvTransaction{yuvTx1}, "")

	batch := <-ch
	require.Len(t, batch.Txs, 1)

	// Resubmitting the same tx is now a duplicate and must not republish.
	c.handleNewYuvTxs([]*txcheck.YuvTransaction{yuvTx1}, "")

	select {
	case <-ch:
		t.Fatal("duplicate tx should not have been republished")
	default:
	}
}

func TestHandleAttachedTxsUpdatesInventoryAndPending(t *testing.T) {
	c, _ := newTestController(t)

	tx := randTx(t)
	txid := tx.TxHash()
	c.pending.insertIfNotExists(txid, TxStatePending)

	err := c.handleAttachedTxs([]chainhash.Hash{txid})
	require.NoError(t, err)

	_, stillPending := c.pending.get(txid)
	require.False(t, stillPending)

	err = c.db.View(func(dbTx kvdb.RTx) error {
		inv, err := c.db.GetInventoryList(dbTx)
		require.NoError(t, err)
		require.Equal(t, []chainhash.Hash{txid}, inv)
		return nil
	})
	require.NoError(t, err)
}

func TestHandleInvalidTxsBansNamedSender(t *testing.T) {
	c, fake := newTestController(t)

	txid := randTx(t).TxHash()
	c.pending.insertIfNotExists(txid, TxStatePending)

	c.handleInvalidTxs([]chainhash.Hash{txid}, "203.0.113.1:8333")

	_, ok := c.pending.get(txid)
	require.False(t, ok)
	require.Equal(t, []string{"203.0.113.1:8333"}, fake.banned)
}

func TestHandleInvRequestsOnlyMissing(t *testing.T) {
	c, fake := newTestController(t)

	known := randTx(t)
	err := c.db.Update(func(dbTx kvdb.RwTx) error {
		return c.db.PutTransaction(dbTx, known, store.TxStatusAttached)
	})
	require.NoError(t, err)

	missing := p2p.Inventory{Txid: chainhash.Hash{9, 9, 9}}

	err = c.handleInv(context.Background(), []p2p.Inventory{
		{Txid: known.TxHash()},
		missing,
	}, "peer1")
	require.NoError(t, err)

	require.Equal(t, []p2p.Inventory{missing}, fake.getDataReqs["peer1"])
}
