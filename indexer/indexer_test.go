package indexer

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"

	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/eventbus"
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

// fakeChain is an in-memory BitcoinClient serving a linear chain of blocks.
type fakeChain struct {
	blocks []*wire.MsgBlock
}

// newFakeChain builds height+1 blocks (genesis through height), each
// chaining from the previous by header hash.
func newFakeChain(height int) *fakeChain {
	chain := &fakeChain{}

	prev := chainhash.Hash{}
	for i := 0; i <= height; i++ {
		block := &wire.MsgBlock{
			Header: wire.BlockHeader{
				PrevBlock: prev,
				// Vary the merkle root so every hash is distinct.
				MerkleRoot: chainhash.Hash{byte(i), byte(i >> 8)},
			},
		}
		chain.blocks = append(chain.blocks, block)
		prev = block.BlockHash()
	}
	return chain
}

// extend mines one more block on top of the current tip and returns it.
func (f *fakeChain) extend() *wire.MsgBlock {
	tip := f.blocks[len(f.blocks)-1]
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			PrevBlock:  tip.BlockHash(),
			MerkleRoot: chainhash.Hash{byte(len(f.blocks)), 0xff},
		},
	}
	f.blocks = append(f.blocks, block)
	return block
}

func (f *fakeChain) GetBlockCount() (int64, error) {
	return int64(len(f.blocks) - 1), nil
}

func (f *fakeChain) GetBlockHash(height int64) (*chainhash.Hash, error) {
	hash := f.blocks[height].BlockHash()
	return &hash, nil
}

func (f *fakeChain) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	for _, block := range f.blocks {
		if block.BlockHash() == *hash {
			return block, nil
		}
	}
	return nil, errors.New("block not found")
}

// recordingSubindexer remembers the heights it was shown, in order.
type recordingSubindexer struct {
	heights []uint32
}

func (r *recordingSubindexer) Index(block *IndexedBlock) error {
	r.heights = append(r.heights, block.Height)
	return nil
}

func TestInitialSyncIndexesUpToConfirmedTip(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain(20)

	rec := &recordingSubindexer{}
	idx := NewBitcoinIndexer(db, chain, announcement.NetworkRegtest, func() {}).
		WithConfirmations(6)
	idx.AddSubindexer(rec)

	require.NoError(t, idx.initialSync())

	// Best is 20, confirmations 6, so confirmed tip is 14; every height
	// from 0 through 14 must be seen exactly once, in order.
	require.Len(t, rec.heights, 15)
	for i, h := range rec.heights {
		require.Equal(t, uint32(i), h)
	}

	err := db.View(func(tx kvdb.RTx) error {
		height, err := db.LastIndexedHeight(tx)
		require.NoError(t, err)
		require.Equal(t, uint32(14), height)

		hash, ok, err := db.LastIndexedHash(tx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, chain.blocks[14].BlockHash(), hash)

		require.True(t, db.WasReindexed(tx))
		return nil
	})
	require.NoError(t, err)
}

func TestStartingHeightResumesFromStoredProgress(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain(20)

	idx := NewBitcoinIndexer(db, chain, announcement.NetworkRegtest, func() {}).
		WithConfirmations(6)
	require.NoError(t, idx.initialSync())

	// A fresh indexer over the same database resumes after height 14
	// instead of rescanning.
	resumed := NewBitcoinIndexer(db, chain, announcement.NetworkRegtest, func() {}).
		WithConfirmations(6)
	start, err := resumed.startingHeight()
	require.NoError(t, err)
	require.Equal(t, uint32(15), start)

	// --reindex discards progress.
	forced := NewBitcoinIndexer(db, chain, announcement.NetworkRegtest, func() {}).
		WithConfirmations(6).WithReindex()
	start, err = forced.startingHeight()
	require.NoError(t, err)
	require.Equal(t, uint32(0), start)
}

func TestPollAdvancesAsChainGrows(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain(10)

	rec := &recordingSubindexer{}
	idx := NewBitcoinIndexer(db, chain, announcement.NetworkRegtest, func() {}).
		WithConfirmations(6)
	idx.AddSubindexer(rec)

	require.NoError(t, idx.initialSync())
	require.Equal(t, uint32(4), idx.confirmedHeight)

	// Mining two blocks makes two more heights confirmable.
	chain.extend()
	chain.extend()
	require.NoError(t, idx.poll())
	require.Equal(t, uint32(6), idx.confirmedHeight)

	require.Equal(t,
		[]uint32{0, 1, 2, 3, 4, 5, 6}, rec.heights)
}

func TestPollDetectsBrokenChain(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain(10)

	idx := NewBitcoinIndexer(db, chain, announcement.NetworkRegtest, func() {}).
		WithConfirmations(6)
	require.NoError(t, idx.initialSync())

	// Replace the next confirmable block with one that does not chain
	// from the confirmed hash.
	chain.extend()
	chain.blocks[5] = &wire.MsgBlock{
		Header: wire.BlockHeader{
			PrevBlock:  chainhash.Hash{0xde, 0xad},
			MerkleRoot: chainhash.Hash{0xbe, 0xef},
		},
	}

	require.ErrorIs(t, idx.poll(), ErrReorgDetected)
}

func TestConfirmationSubindexerReleasesMinedTxs(t *testing.T) {
	bus := eventbus.New()
	sub := NewConfirmationSubindexer(bus)

	confirmed := eventbus.Subscribe[eventbus.ConfirmBatchTx](bus)

	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 7}})

	sub.Observe([]*txcheck.YuvTransaction{{
		BitcoinTx: msgTx,
		Kind:      txcheck.TxKindTransfer,
	}})
	require.Equal(t, 1, sub.WaitingCount())

	// A block without the transaction releases nothing.
	require.NoError(t, sub.Index(&IndexedBlock{Height: 1}))
	require.Equal(t, 1, sub.WaitingCount())

	// A block containing it does.
	require.NoError(t, sub.Index(&IndexedBlock{
		Height: 2,
		Txs:    []*wire.MsgTx{msgTx},
	}))
	require.Equal(t, 0, sub.WaitingCount())

	select {
	case batch := <-confirmed:
		require.Len(t, batch.Txs, 1)
		require.Equal(t, msgTx.TxHash(), batch.Txs[0].BitcoinTx.TxHash())
	case <-time.After(time.Second):
		t.Fatal("no ConfirmBatchTx published")
	}
}
