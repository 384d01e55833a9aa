package store

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	backend, err := kvdb.Create(
		kvdb.BoltBackendName, filepath.Join(t.TempDir(), "yuv.db"),
		true, kvdb.DefaultDBTimeout,
	)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	db, err := Open(backend)
	require.NoError(t, err)

	return db
}

func TestTransactionLifecycle(t *testing.T) {
	db := newTestDB(t)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})
	txid := tx.TxHash()

	err := db.Update(func(dbTx kvdb.RwTx) error {
		return db.PutTransaction(dbTx, tx, TxStatusPending)
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		require.True(t, db.HasTransaction(dbTx, txid))

		stored, err := db.GetTransaction(dbTx, txid)
		require.NoError(t, err)
		require.Equal(t, TxStatusPending, stored.Status)
		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.SetTransactionStatus(dbTx, txid, TxStatusAttached)
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		stored, err := db.GetTransaction(dbTx, txid)
		require.NoError(t, err)
		require.Equal(t, TxStatusAttached, stored.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestFrozenSetIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	op := wire.OutPoint{Index: 4}
	chroma := pixel.Chroma{9}
	var freezeTxid chainhash.Hash
	freezeTxid[0] = 0xf0

	err := db.Update(func(dbTx kvdb.RwTx) error {
		require.NoError(t, db.Freeze(dbTx, op, freezeTxid, chroma))
		require.NoError(t, db.Freeze(dbTx, op, freezeTxid, chroma))
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		require.True(t, db.IsFrozen(dbTx, op))

		entry, frozen, err := db.GetFreeze(dbTx, op)
		require.NoError(t, err)
		require.True(t, frozen)
		require.Equal(t, freezeTxid, entry.FreezeTxid)
		require.Equal(t, chroma, entry.Chroma)
		return nil
	})
	require.NoError(t, err)
}

func TestChromaSupplyAndOwnerUpdates(t *testing.T) {
	db := newTestDB(t)

	chroma := pixel.Chroma{1, 2, 3}
	ann, err := announcement.NewChromaAnnouncement(
		chroma, "Satoshi", "SAT", 8, big.NewInt(21_000_000), true,
	)
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.PutChroma(dbTx, &ChromaInfo{
			Announcement: ann,
			TotalSupply:  pixel.NewLuma(0),
			OwnerScript:  []byte("owner-script-bytes"),
		})
	})
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.AddSupply(dbTx, chroma, pixel.NewLuma(500))
	})
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.SetOwner(dbTx, chroma, []byte("new-owner-script"))
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		info, err := db.GetChroma(dbTx, chroma)
		require.NoError(t, err)
		require.Equal(t, 0, info.TotalSupply.Cmp(pixel.NewLuma(500)))
		require.Equal(t, []byte("new-owner-script"), info.OwnerScript)
		return nil
	})
	require.NoError(t, err)
}

func TestPageAppendAndFetch(t *testing.T) {
	db := newTestDB(t)

	var a, b chainhash.Hash
	a[0] = 0xaa
	b[0] = 0xbb

	err := db.Update(func(dbTx kvdb.RwTx) error {
		require.NoError(t, db.AppendToPage(dbTx, 0, a))
		require.NoError(t, db.AppendToPage(dbTx, 0, b))
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		txids, err := db.GetPage(dbTx, 0)
		require.NoError(t, err)
		require.Equal(t, []chainhash.Hash{a, b}, txids)
		return nil
	})
	require.NoError(t, err)
}

func TestIndexerBookkeeping(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(func(dbTx kvdb.RwTx) error {
		require.False(t, db.WasReindexed(dbTx))
		require.NoError(t, db.SetLastIndexedHeight(dbTx, 100))
		require.NoError(t, db.SetReindexed(dbTx))
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		height, err := db.LastIndexedHeight(dbTx)
		require.NoError(t, err)
		require.Equal(t, uint32(100), height)
		require.True(t, db.WasReindexed(dbTx))
		return nil
	})
	require.NoError(t, err)
}

func TestCurrentPageRollsOver(t *testing.T) {
	db := newTestDB(t)

	err := db.View(func(dbTx kvdb.RTx) error {
		page, entries, err := db.CurrentPage(dbTx)
		require.NoError(t, err)
		require.Equal(t, uint32(0), page)
		require.Equal(t, 0, entries)
		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		var txid chainhash.Hash
		for i := 0; i < PageSize; i++ {
			txid[0] = byte(i)
			txid[1] = byte(i >> 8)
			require.NoError(t, db.AppendToPage(dbTx, 0, txid))
		}
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		page, entries, err := db.CurrentPage(dbTx)
		require.NoError(t, err)
		require.Equal(t, uint32(0), page)
		require.Equal(t, PageSize, entries)
		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(dbTx kvdb.RwTx) error {
		return db.AppendToPage(dbTx, 1, chainhash.Hash{0xff})
	})
	require.NoError(t, err)

	err = db.View(func(dbTx kvdb.RTx) error {
		page, entries, err := db.CurrentPage(dbTx)
		require.NoError(t, err)
		require.Equal(t, uint32(1), page)
		require.Equal(t, 1, entries)
		return nil
	})
	require.NoError(t, err)
}
