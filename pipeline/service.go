// Package pipeline wires the checker and the graph builder together: it
// consumes batches of unconfirmed transactions the controller forwards,
// runs them through the isolated then the contextual checker, hands
// whatever passes to the graph builder, and reports the outcome back to the
// controller over the event bus.
package pipeline

import (
	"errors"
	"sync/atomic"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/yuvprotocol/yuvd/eventbus"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

// Attacher is the subset of the graph builder this service depends on.
type Attacher interface {
	AttachTxs(checked []*txcheck.YuvTransaction) ([]chainhash.Hash, error)
}

// Service runs the check-then-attach pipeline.
type Service struct {
	started int32
	stopped int32

	db         *store.DB
	contextual *txcheck.ContextualChecker
	builder    Attacher
	bus        *eventbus.Bus
	params     *chaincfg.Params

	quit chan struct{}
	done chan struct{}
}

// New builds a Service. contextual and builder are expected to share db.
func New(db *store.DB, contextual *txcheck.ContextualChecker, builder Attacher, bus *eventbus.Bus, params *chaincfg.Params) *Service {
	return &Service{
		db:         db,
		contextual: contextual,
		builder:    builder,
		bus:        bus,
		params:     params,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start subscribes to the event bus and launches the pipeline's run loop.
func (s *Service) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	ch := eventbus.Subscribe[eventbus.TxsToConfirm](s.bus)
	go s.run(ch)

	return nil
}

// Stop signals the run loop to exit and waits for it.
func (s *Service) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return nil
	}
	close(s.quit)
	<-s.done
	return nil
}

func (s *Service) run(ch <-chan eventbus.TxsToConfirm) {
	defer close(s.done)

	for {
		select {
		case batch := <-ch:
			s.handleBatch(batch.Txs, batch.Sender)
		case <-s.quit:
			return
		}
	}
}

// handleBatch checks every transaction in txs and forwards whatever passes
// to the graph builder, reporting invalid and attached outcomes back to the
// controller. An isolated failure names the sending peer so the controller
// can ban it; a contextual failure does not, since the peer may have acted
// on legitimately stale state. A transfer whose parents simply aren't known
// yet is neither: it goes to the graph builder to wait, and the missing
// parents are requested from the sender.
func (s *Service) handleBatch(txs []*txcheck.YuvTransaction, sender string) {
	var (
		checked           []*txcheck.YuvTransaction
		isolatedInvalid   []chainhash.Hash
		contextualInvalid []chainhash.Hash
		missingParents    []chainhash.Hash
	)
	kindByTxid := make(map[chainhash.Hash]txcheck.TxKind, len(txs))

	for _, tx := range txs {
		txid := tx.Txid()
		kindByTxid[txid] = tx.Kind

		if err := txcheck.CheckIsolated(tx, s.params); err != nil {
			log.Debugf("tx %x failed isolated check: %v", txid, err)
			isolatedInvalid = append(isolatedInvalid, txid)
			continue
		}

		err := s.db.View(func(dbTx kvdb.RTx) error {
			return s.contextual.CheckContextual(dbTx, tx)
		})
		switch {
		case err == nil:
			checked = append(checked, tx)

		case errors.Is(err, txcheck.ErrParentNotFound):
			log.Debugf("tx %x waits on unknown parents", txid)
			missingParents = append(missingParents, s.unknownParents(tx)...)
			checked = append(checked, tx)

		default:
			log.Debugf("tx %x failed contextual check: %v", txid, err)
			contextualInvalid = append(contextualInvalid, txid)
		}
	}

	if len(isolatedInvalid) > 0 {
		eventbus.Publish(s.bus, eventbus.InvalidTxs{
			TxIDs:  isolatedInvalid,
			Sender: sender,
		})
	}
	if len(contextualInvalid) > 0 {
		eventbus.Publish(s.bus, eventbus.InvalidTxs{TxIDs: contextualInvalid})
	}
	if sender != "" && len(missingParents) > 0 {
		eventbus.Publish(s.bus, eventbus.RequestParents{
			Parents: missingParents,
			Peer:    sender,
		})
	}
	if len(checked) == 0 {
		return
	}

	attached, err := s.builder.AttachTxs(checked)
	if err != nil {
		log.Errorf("failed to attach checked txs: %v", err)
		return
	}

	var regular []chainhash.Hash
	for _, txid := range attached {
		if kindByTxid[txid] == txcheck.TxKindAnnouncement {
			eventbus.Publish(s.bus, eventbus.CheckedAnnouncement{TxID: txid})
			continue
		}
		regular = append(regular, txid)
	}
	if len(regular) > 0 {
		eventbus.Publish(s.bus, eventbus.AttachedTxs{TxIDs: regular})
	}
}

// unknownParents returns the txids referenced by tx's input proofs that are
// not yet in storage.
func (s *Service) unknownParents(tx *txcheck.YuvTransaction) []chainhash.Hash {
	seen := make(map[chainhash.Hash]struct{})
	var missing []chainhash.Hash

	_ = s.db.View(func(dbTx kvdb.RTx) error {
		for vin := range tx.InputProofs {
			if int(vin) >= len(tx.BitcoinTx.TxIn) {
				continue
			}

			parent := tx.BitcoinTx.TxIn[vin].PreviousOutPoint.Hash
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}

			if !s.db.HasTransaction(dbTx, parent) {
				missing = append(missing, parent)
			}
		}
		return nil
	})

	return missing
}
