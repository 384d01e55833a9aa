// Package graph builds the dependency DAG between pending transactions and
// attaches them once every parent they reference is already attached.
package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

const (
	defaultCleanupPeriod    = time.Hour
	defaultOutdatedDuration = 24 * time.Hour
)

type storedEntry struct {
	tx        *txcheck.YuvTransaction
	createdAt time.Time
}

// Builder tracks which checked transactions are waiting on parents and
// attaches them, transitively, once their whole ancestry is attached.
type Builder struct {
	started int32
	stopped int32

	db *store.DB

	mu sync.Mutex

	// deps[child] is the set of parent txids child is still waiting on.
	deps map[chainhash.Hash]map[chainhash.Hash]struct{}

	// inverseDeps[parent] is the set of children waiting on parent.
	inverseDeps map[chainhash.Hash]map[chainhash.Hash]struct{}

	// storedTxs holds transactions that passed the checker but have not
	// yet been attached, keyed by txid, alongside when they arrived.
	storedTxs map[chainhash.Hash]storedEntry

	cleanupPeriod    time.Duration
	outdatedDuration time.Duration

	cleanupTicker ticker.Ticker

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewBuilder constructs a Builder backed by db.
func NewBuilder(db *store.DB) *Builder {
	return &Builder{
		db:               db,
		deps:             make(map[chainhash.Hash]map[chainhash.Hash]struct{}),
		inverseDeps:      make(map[chainhash.Hash]map[chainhash.Hash]struct{}),
		storedTxs:        make(map[chainhash.Hash]storedEntry),
		cleanupPeriod:    defaultCleanupPeriod,
		outdatedDuration: defaultOutdatedDuration,
		quit:             make(chan struct{}),
	}
}

// WithCleanupPeriod overrides how often outdated pending transactions are
// pruned.
func (b *Builder) WithCleanupPeriod(period time.Duration) *Builder {
	b.cleanupPeriod = period
	return b
}

// WithOutdatedDuration overrides how long a transaction may sit waiting on
// parents before it is considered outdated and pruned.
func (b *Builder) WithOutdatedDuration(d time.Duration) *Builder {
	b.outdatedDuration = d
	return b
}

// Start launches the builder's background cleanup loop.
func (b *Builder) Start() error {
	if !atomic.CompareAndSwapInt32(&b.started, 0, 1) {
		return nil
	}

	b.cleanupTicker = ticker.New(b.cleanupPeriod)
	b.cleanupTicker.Resume()

	b.wg.Add(1)
	go b.cleanupLoop()

	return nil
}

// Stop signals the cleanup loop to exit and waits for it.
func (b *Builder) Stop() error {
	if !atomic.CompareAndSwapInt32(&b.stopped, 0, 1) {
		return nil
	}

	close(b.quit)
	b.wg.Wait()

	if b.cleanupTicker != nil {
		b.cleanupTicker.Stop()
	}

	return nil
}

func (b *Builder) cleanupLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.cleanupTicker.Ticks():
			removed := b.Cleanup(time.Now())
			if len(removed) > 0 {
				log.Debugf("pruned %d outdated pending transactions", len(removed))
			}

		case <-b.quit:
			return
		}
	}
}

// AttachTxs folds a batch of already-checked transactions into the
// dependency graph and returns the txids that became attached as a result,
// including any previously-pending children unblocked transitively by this
// batch. Attached transactions (and the announcements their effects apply)
// are persisted to db.
func (b *Builder) AttachTxs(checked []*txcheck.YuvTransaction) ([]chainhash.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queued := make(map[chainhash.Hash]struct{})
	var attached []chainhash.Hash

	txByID := make(map[chainhash.Hash]*txcheck.YuvTransaction, len(checked))
	for _, yuvTx := range checked {
		txByID[yuvTx.Txid()] = yuvTx
	}

	for _, yuvTx := range checked {
		childID := yuvTx.Txid()

		switch yuvTx.Kind {
		case txcheck.TxKindIssue, txcheck.TxKindAnnouncement:
			attached = append(attached, childID)

			if ids, ok := b.inverseDeps[childID]; ok {
				for id := range ids {
					queued[id] = struct{}{}
				}
				delete(b.inverseDeps, childID)
			}

		case txcheck.TxKindTransfer:
			b.handleTransfer(yuvTx, childID, queued, &attached)
		}
	}

	for len(queued) > 0 {
		nextQueue := make(map[chainhash.Hash]struct{})

		for txid := range queued {
			empty := b.removeAttachedParents(txid, attached)
			if !empty {
				continue
			}

			entry, ok := b.storedTxs[txid]
			if !ok {
				continue
			}
			delete(b.storedTxs, txid)
			delete(b.deps, txid)

			txByID[txid] = entry.tx
			attached = append(attached, entry.tx.Txid())

			if ids, ok := b.inverseDeps[txid]; ok {
				for id := range ids {
					nextQueue[id] = struct{}{}
				}
				delete(b.inverseDeps, txid)
			}
		}

		queued = nextQueue
	}

	if err := b.persistAttached(attached, txByID); err != nil {
		return nil, err
	}

	return attached, nil
}

func (b *Builder) handleTransfer(yuvTx *txcheck.YuvTransaction, childID chainhash.Hash, queued map[chainhash.Hash]struct{}, attached *[]chainhash.Hash) {
	for vin := range yuvTx.InputProofs {
		if int(vin) >= len(yuvTx.BitcoinTx.TxIn) {
			continue
		}
		parentTxid := yuvTx.BitcoinTx.TxIn[vin].PreviousOutPoint.Hash

		isAttached := containsHash(*attached, parentTxid) || b.isAlreadyAttached(parentTxid)
		if isAttached {
			continue
		}

		if b.inverseDeps[parentTxid] == nil {
			b.inverseDeps[parentTxid] = make(map[chainhash.Hash]struct{})
		}
		b.inverseDeps[parentTxid][childID] = struct{}{}

		if b.deps[childID] == nil {
			b.deps[childID] = make(map[chainhash.Hash]struct{})
		}
		b.deps[childID][parentTxid] = struct{}{}
	}

	if len(b.deps[childID]) == 0 {
		*attached = append(*attached, childID)
		delete(b.deps, childID)

		if ids, ok := b.inverseDeps[childID]; ok {
			for id := range ids {
				queued[id] = struct{}{}
			}
			delete(b.inverseDeps, childID)
		}
		return
	}

	b.storedTxs[childID] = storedEntry{tx: yuvTx, createdAt: time.Now()}
}

// removeAttachedParents drops any of txid's remaining deps that are now
// attached, and reports whether no deps remain.
func (b *Builder) removeAttachedParents(txid chainhash.Hash, attached []chainhash.Hash) bool {
	deps, ok := b.deps[txid]
	if !ok {
		return true
	}

	for parent := range deps {
		if containsHash(attached, parent) || b.isAlreadyAttached(parent) {
			delete(deps, parent)
		}
	}

	return len(deps) == 0
}

func (b *Builder) isAlreadyAttached(txid chainhash.Hash) bool {
	var has bool
	_ = b.db.View(func(tx kvdb.RTx) error {
		has = b.db.HasTransaction(tx, txid)
		return nil
	})
	return has
}

func (b *Builder) persistAttached(attached []chainhash.Hash, txByID map[chainhash.Hash]*txcheck.YuvTransaction) error {
	if len(attached) == 0 {
		return nil
	}

	return b.db.Update(func(tx kvdb.RwTx) error {
		page, pageLen, err := b.db.CurrentPage(tx)
		if err != nil {
			return err
		}

		for _, txid := range attached {
			yuvTx, ok := txByID[txid]
			if !ok {
				continue
			}

			// Page the txid so listyuvtransactions sees attachments in
			// order, rolling to a new page at the size boundary.
			if pageLen >= store.PageSize {
				page++
				pageLen = 0
			}
			if err := b.db.AppendToPage(tx, page, txid); err != nil {
				return err
			}
			pageLen++

			if yuvTx.Kind == txcheck.TxKindAnnouncement && yuvTx.IssueAnnouncement != nil {
				// A standalone issue announcement doesn't count as the real
				// Issue transaction existing yet; let a later full Issue tx
				// with the same txid still be accepted.
				err := b.db.PutAnnouncementOnlyTransaction(tx, yuvTx.BitcoinTx, store.TxStatusAttached)
				if err != nil {
					return err
				}
			} else if err := b.db.PutTransaction(tx, yuvTx.BitcoinTx, store.TxStatusAttached); err != nil {
				return err
			}
			if yuvTx.Kind == txcheck.TxKindAnnouncement {
				err := txcheck.ApplyAnnouncement(
					tx, b.db, yuvTx.Announcement, yuvTx.Txid(),
				)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func containsHash(haystack []chainhash.Hash, needle chainhash.Hash) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// Cleanup removes transactions that have been waiting on parents longer
// than outdatedDuration, along with every transaction transitively
// depending on them, since those descendants can never attach either.
func (b *Builder) Cleanup(now time.Time) []chainhash.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()

	var outdated []chainhash.Hash
	for txid, entry := range b.storedTxs {
		if now.Sub(entry.createdAt) > b.outdatedDuration {
			outdated = append(outdated, txid)
		}
	}

	var removed []chainhash.Hash
	removedSet := make(map[chainhash.Hash]struct{})

	for _, txid := range outdated {
		if _, ok := removedSet[txid]; ok {
			continue
		}
		b.removeOutdatedTx(txid, removedSet, &removed)
	}

	return removed
}

func (b *Builder) removeOutdatedTx(txid chainhash.Hash, removedSet map[chainhash.Hash]struct{}, removed *[]chainhash.Hash) {
	toRemove := []chainhash.Hash{txid}
	removedSet[txid] = struct{}{}

	for len(toRemove) > 0 {
		id := toRemove[0]
		toRemove = toRemove[1:]

		delete(b.storedTxs, id)
		b.removeTxFromDeps(id)
		*removed = append(*removed, id)

		inv, ok := b.inverseDeps[id]
		if !ok {
			continue
		}
		delete(b.inverseDeps, id)

		for child := range inv {
			if _, ok := removedSet[child]; !ok {
				removedSet[child] = struct{}{}
				toRemove = append(toRemove, child)
			}
		}
	}
}

func (b *Builder) removeTxFromDeps(txid chainhash.Hash) {
	deps, ok := b.deps[txid]
	if !ok {
		return
	}
	delete(b.deps, txid)

	for parent := range deps {
		inv, ok := b.inverseDeps[parent]
		if !ok {
			continue
		}
		delete(inv, txid)
		if len(inv) == 0 {
			delete(b.inverseDeps, parent)
		}
	}
}
