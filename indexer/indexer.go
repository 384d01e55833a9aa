// Package indexer follows the Bitcoin chain with a confirmation lag and
// feeds every confirmed block, exactly once and in height order, to a set
// of subindexers (announcement scanning, transaction confirmation).
package indexer

import (
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/kvdb"
	"golang.org/x/sync/errgroup"

	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/store"
)

const (
	// defaultConfirmations is the confirmation count (the block itself plus
	// every block built on it) a block must reach before the indexer treats
	// it as confirmed.
	defaultConfirmations = 6

	// defaultPollInterval is how often the steady-state loop asks the
	// Bitcoin node for its best block count.
	defaultPollInterval = 10 * time.Second

	// defaultChunkSize bounds how many blocks the initial sync fetches per
	// round trip through the block loader.
	defaultChunkSize = 100

	// maxRestartAttempts and restartBackoff bound how long the indexer
	// keeps retrying after a steady-state failure before giving up and
	// cancelling the node.
	maxRestartAttempts = 6
	restartBackoff     = 10 * time.Second
)

// ErrReorgDetected is returned when a freshly fetched block does not chain
// from the last confirmed hash. Under a 6-block confirmation lag this means
// a reorg deeper than the confirmation window, which the indexer treats as
// unrecoverable within a single run.
var ErrReorgDetected = errors.New("block does not extend last confirmed block")

// BitcoinIndexer polls the Bitcoin node and drives its subindexers over
// every block that has reached the required confirmation depth.
type BitcoinIndexer struct {
	started int32
	stopped int32

	db     *store.DB
	client BitcoinClient

	network     announcement.Network
	subindexers []Subindexer

	confirmations uint32
	pollInterval  time.Duration
	startOverride uint32
	forceReindex  bool

	confirmedHeight uint32
	confirmedHash   chainhash.Hash

	// cancel shuts the whole node down; the indexer triggers it when its
	// retry budget is exhausted.
	cancel func()

	quit chan struct{}
	eg   errgroup.Group
}

// NewBitcoinIndexer builds an indexer over client, persisting its progress
// in db. cancel is invoked when the indexer fails terminally.
func NewBitcoinIndexer(db *store.DB, client BitcoinClient,
	network announcement.Network, cancel func()) *BitcoinIndexer {

	return &BitcoinIndexer{
		db:            db,
		client:        client,
		network:       network,
		confirmations: defaultConfirmations,
		pollInterval:  defaultPollInterval,
		cancel:        cancel,
		quit:          make(chan struct{}),
	}
}

// WithConfirmations overrides the confirmation depth.
func (b *BitcoinIndexer) WithConfirmations(n uint32) *BitcoinIndexer {
	b.confirmations = n
	return b
}

// WithPollInterval overrides the steady-state polling period.
func (b *BitcoinIndexer) WithPollInterval(d time.Duration) *BitcoinIndexer {
	b.pollInterval = d
	return b
}

// WithStartHeight sets a config-supplied lower bound on the starting
// height. The indexer still starts later if stored progress is ahead.
func (b *BitcoinIndexer) WithStartHeight(height uint32) *BitcoinIndexer {
	b.startOverride = height
	return b
}

// WithReindex forces the next Start to rescan from genesis, discarding
// stored progress.
func (b *BitcoinIndexer) WithReindex() *BitcoinIndexer {
	b.forceReindex = true
	return b
}

// AddSubindexer registers sub to receive every confirmed block. All
// subindexers must be registered before Start.
func (b *BitcoinIndexer) AddSubindexer(sub Subindexer) {
	b.subindexers = append(b.subindexers, sub)
}

// Start performs the initial sync up to the confirmed tip, then launches
// the steady-state polling loop.
func (b *BitcoinIndexer) Start() error {
	if !atomic.CompareAndSwapInt32(&b.started, 0, 1) {
		return nil
	}

	if err := b.initialSync(); err != nil {
		return err
	}

	b.eg.Go(func() error {
		b.run()
		return nil
	})

	return nil
}

// Stop signals the polling loop to exit and waits for it.
func (b *BitcoinIndexer) Stop() error {
	if !atomic.CompareAndSwapInt32(&b.stopped, 0, 1) {
		return nil
	}

	close(b.quit)
	return b.eg.Wait()
}

// startingHeight picks where the initial sync begins: the network's YUV
// genesis, stored progress plus one, or the config override, whichever is
// highest. A missing reindexed flag (first run, or --reindex) discards
// stored progress and rescans from genesis.
func (b *BitcoinIndexer) startingHeight() (uint32, error) {
	var (
		lastHeight uint32
		reindexed  bool
	)
	err := b.db.View(func(tx kvdb.RTx) error {
		var err error
		lastHeight, err = b.db.LastIndexedHeight(tx)
		if err != nil {
			return err
		}
		reindexed = b.db.WasReindexed(tx)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if b.forceReindex || !reindexed {
		log.Infof("Reindexing from genesis (reindexed flag absent)")
		return max32(announcement.GenesisHeight(b.network), b.startOverride), nil
	}

	start := announcement.GenesisHeight(b.network)
	if lastHeight+1 > start {
		start = lastHeight + 1
	}
	if b.startOverride > start {
		start = b.startOverride
	}
	return start, nil
}

// initialSync fetches blocks in bounded chunks until the confirmed tip is
// reached, indexing each chunk in height order.
func (b *BitcoinIndexer) initialSync() error {
	start, err := b.startingHeight()
	if err != nil {
		return err
	}

	if start > 0 {
		b.confirmedHeight = start - 1
	}

	// When resuming directly after stored progress, the stored hash seeds
	// the chain-continuity check; a config override that jumps ahead
	// leaves it unset, and the first fetched block is accepted as-is.
	err = b.db.View(func(tx kvdb.RTx) error {
		lastHeight, err := b.db.LastIndexedHeight(tx)
		if err != nil {
			return err
		}

		hash, ok, err := b.db.LastIndexedHash(tx)
		if err != nil {
			return err
		}
		if ok && !b.forceReindex && start == lastHeight+1 {
			b.confirmedHash = hash
		}
		return nil
	})
	if err != nil {
		return err
	}

	best, err := b.client.GetBlockCount()
	if err != nil {
		return errors.Errorf("get best block count: %v", err)
	}

	confirmedTip := uint32(0)
	if uint32(best) >= b.confirmations {
		confirmedTip = uint32(best) - b.confirmations
	}

	log.Infof("Initial sync from height %d to confirmed tip %d", start,
		confirmedTip)

	height := start
	for height <= confirmedTip {
		to := height + defaultChunkSize - 1
		if to > confirmedTip {
			to = confirmedTip
		}

		blocks, err := loadBlocks(b.client, height, to)
		if err != nil {
			return err
		}

		for i, block := range blocks {
			if err := b.indexBlock(height+uint32(i), block); err != nil {
				return err
			}
		}

		height = to + 1
	}

	err = b.db.Update(func(tx kvdb.RwTx) error {
		return b.db.SetReindexed(tx)
	})
	if err != nil {
		return err
	}

	log.Infof("Initial sync complete at height %d", b.confirmedHeight)
	return nil
}

// run is the steady-state loop: poll the best block count, and for as long
// as the next height has reached the confirmation depth, fetch it, verify
// it chains from the last confirmed block, and index it. Failures restart
// the loop with backoff; exhausting the retry budget cancels the node.
func (b *BitcoinIndexer) run() {
	attempts := 0

	for {
		err := b.poll()
		switch {
		case err == nil:
			attempts = 0

		default:
			attempts++
			log.Errorf("Indexer poll failed (attempt %d/%d): %v",
				attempts, maxRestartAttempts, err)

			if attempts >= maxRestartAttempts {
				log.Criticalf("Indexer giving up after %d attempts, "+
					"shutting down node", attempts)
				b.cancel()
				return
			}

			select {
			case <-time.After(restartBackoff):
				continue
			case <-b.quit:
				return
			}
		}

		select {
		case <-time.After(b.pollInterval):
		case <-b.quit:
			return
		}
	}
}

// poll advances the confirmed height as far as the current best block count
// allows.
func (b *BitcoinIndexer) poll() error {
	best, err := b.client.GetBlockCount()
	if err != nil {
		return errors.Errorf("get best block count: %v", err)
	}

	for uint64(b.confirmedHeight)+uint64(b.confirmations) <= uint64(best) {
		next := b.confirmedHeight + 1

		hash, err := b.client.GetBlockHash(int64(next))
		if err != nil {
			return errors.Errorf("get block hash %d: %v", next, err)
		}

		block, err := b.client.GetBlock(hash)
		if err != nil {
			return errors.Errorf("get block %v: %v", hash, err)
		}

		if b.confirmedHash != (chainhash.Hash{}) &&
			block.Header.PrevBlock != b.confirmedHash {

			return ErrReorgDetected
		}

		if err := b.indexBlock(next, block); err != nil {
			return err
		}

		select {
		case <-b.quit:
			return nil
		default:
		}
	}

	return nil
}

// indexBlock runs every subindexer over the block, then records it as the
// last indexed block. Subindexers see blocks strictly in height order.
func (b *BitcoinIndexer) indexBlock(height uint32, block *wire.MsgBlock) error {
	indexed := newIndexedBlock(height, block)

	for _, sub := range b.subindexers {
		if err := sub.Index(indexed); err != nil {
			return errors.Errorf("subindexer failed at height %d: %v",
				height, err)
		}
	}

	err := b.db.Update(func(tx kvdb.RwTx) error {
		if err := b.db.SetLastIndexedHeight(tx, height); err != nil {
			return err
		}
		return b.db.SetLastIndexedHash(tx, indexed.Hash)
	})
	if err != nil {
		return err
	}

	b.confirmedHeight = height
	b.confirmedHash = indexed.Hash

	log.Tracef("Indexed block %v at height %d", indexed.Hash, height)
	return nil
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
