// Package controller hosts the message hub coordinating the P2P stack, the
// transaction checker, the graph builder, and storage: it owns the
// Inv/GetData/YuvTx inventory protocol and the pending-transaction dedup
// state that keeps the same transaction from being checked twice.
package controller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/errgroup"

	"github.com/yuvprotocol/yuvd/eventbus"
	"github.com/yuvprotocol/yuvd/p2p"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

const (
	defaultMaxInvSize            = 100
	defaultInvSharingInterval    = 5 * time.Second
	defaultInboundQueueBufferLen = 1000
)

// inboundMsg pairs a decoded P2P message with the address it arrived from,
// queued so that a slow checker never backs up the peer connection itself.
type inboundMsg struct {
	msg    wire.Message
	sender string
}

// Controller is the node's message hub. It has no children of its own;
// every other component learns of its work through the event bus or is
// invoked directly (the graph builder) rather than owning a reference back.
type Controller struct {
	started int32
	stopped int32

	db      *store.DB
	bus     *eventbus.Bus
	p2p     p2p.ClientHandle
	pending *pendingSet

	maxInvSize         int
	invSharingInterval time.Duration
	invTicker          ticker.Ticker

	inbound *queue.ConcurrentQueue

	quit chan struct{}
	eg   errgroup.Group
}

// New builds a Controller backed by db, wired to bus for cross-component
// messages and to p2pHandle for outbound network traffic.
func New(db *store.DB, bus *eventbus.Bus, p2pHandle p2p.ClientHandle) *Controller {
	return &Controller{
		db:                 db,
		bus:                bus,
		p2p:                p2pHandle,
		pending:            newPendingSet(),
		maxInvSize:         defaultMaxInvSize,
		invSharingInterval: defaultInvSharingInterval,
		inbound:            queue.NewConcurrentQueue(defaultInboundQueueBufferLen),
		quit:               make(chan struct{}),
	}
}

// WithMaxInvSize overrides how many txids the controller keeps in its
// gossiped inventory.
func (c *Controller) WithMaxInvSize(n int) *Controller {
	c.maxInvSize = n
	return c
}

// WithInvSharingInterval overrides how often the controller gossips its
// inventory to peers.
func (c *Controller) WithInvSharingInterval(d time.Duration) *Controller {
	c.invSharingInterval = d
	return c
}

// HandleP2PMessage is the entry point callers (the peer connection layer)
// use to hand the controller an inbound YUV message. It never blocks on
// checker work: messages are queued and drained by the controller's own
// run loop.
func (c *Controller) HandleP2PMessage(msg wire.Message, sender string) {
	c.inbound.ChanIn() <- inboundMsg{msg: msg, sender: sender}
}

// Start launches the controller's run loop and inbound message queue.
func (c *Controller) Start() error {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return nil
	}

	c.invTicker = ticker.New(c.invSharingInterval)
	c.invTicker.Resume()
	c.inbound.Start()

	confirmCh := eventbus.Subscribe[eventbus.ConfirmBatchTx](c.bus)
	attachedCh := eventbus.Subscribe[eventbus.AttachedTxs](c.bus)
	invalidCh := eventbus.Subscribe[eventbus.InvalidTxs](c.bus)
	checkedAnnCh := eventbus.Subscribe[eventbus.CheckedAnnouncement](c.bus)
	requestParentsCh := eventbus.Subscribe[eventbus.RequestParents](c.bus)

	c.eg.Go(func() error {
		c.run(confirmCh, attachedCh, invalidCh, checkedAnnCh, requestParentsCh)
		return nil
	})

	return nil
}

// Stop signals the run loop to exit and waits for it.
func (c *Controller) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		return nil
	}

	close(c.quit)
	_ = c.eg.Wait()

	c.inbound.Stop()
	c.invTicker.Stop()

	return nil
}

func (c *Controller) run(
	confirmCh <-chan eventbus.ConfirmBatchTx,
	attachedCh <-chan eventbus.AttachedTxs,
	invalidCh <-chan eventbus.InvalidTxs,
	checkedAnnCh <-chan eventbus.CheckedAnnouncement,
	requestParentsCh <-chan eventbus.RequestParents,
) {
	for {
		select {
		case batch := <-confirmCh:
			c.handleNewYuvTxs(batch.Txs, "")

		case req := <-requestParentsCh:
			if err := c.requestParents(context.Background(), req); err != nil {
				log.Errorf("failed to request parents from %s: %v",
					req.Peer, err)
			}

		case attached := <-attachedCh:
			if err := c.handleAttachedTxs(attached.TxIDs); err != nil {
				log.Errorf("failed to handle attached txs: %v", err)
			}

		case invalid := <-invalidCh:
			c.handleInvalidTxs(invalid.TxIDs, invalid.Sender)

		case ann := <-checkedAnnCh:
			c.pending.remove(ann.TxID)

		case raw := <-c.inbound.ChanOut():
			in := raw.(inboundMsg)
			if err := c.handleP2PMsg(in.msg, in.sender); err != nil {
				log.Errorf("failed to handle p2p message from %s: %v", in.sender, err)
			}

		case <-c.invTicker.Ticks():
			if err := c.shareInv(context.Background()); err != nil {
				log.Errorf("failed to share inventory: %v", err)
			}

		case <-c.quit:
			return
		}
	}
}

func (c *Controller) handleP2PMsg(msg wire.Message, sender string) error {
	switch m := msg.(type) {
	case *p2p.Inv:
		return c.handleInv(context.Background(), m.Items, sender)
	case *p2p.GetData:
		return c.handleGetData(context.Background(), m.Items, sender)
	case *p2p.YuvTxMsg:
		c.handleNewYuvTxs(m.Txs, sender)
		return nil
	default:
		return nil
	}
}

// handleInvalidTxs drops the transactions from the pending set and, if a
// peer supplied them, bans it.
func (c *Controller) handleInvalidTxs(txids []chainhash.Hash, sender string) {
	c.pending.removeMany(txids)

	if sender == "" {
		return
	}
	if err := c.p2p.BanPeer(context.Background(), sender); err != nil {
		log.Errorf("failed to ban peer %s: %v", sender, err)
	}
}

// shareInv gossips the node's current inventory to every connected peer.
func (c *Controller) shareInv(ctx context.Context) error {
	var inv []p2p.Inventory
	err := c.db.View(func(tx kvdb.RTx) error {
		list, err := c.db.GetInventoryList(tx)
		if err != nil {
			return err
		}
		inv = make([]p2p.Inventory, len(list))
		for i, txid := range list {
			inv[i] = p2p.Inventory{Txid: txid}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.p2p.SendInv(ctx, inv)
}

// handleInv requests, via GetData, any txid sender announced that this node
// neither has stored nor is already tracking as pending.
func (c *Controller) handleInv(ctx context.Context, inv []p2p.Inventory, sender string) error {
	var missing []p2p.Inventory

	for _, item := range inv {
		exists, err := c.isTxExist(item.Txid)
		if err != nil {
			return err
		}
		if !exists {
			missing = append(missing, item)
		}
	}

	if len(missing) == 0 {
		return nil
	}
	return c.p2p.SendGetData(ctx, missing, sender)
}

// handleGetData replies with every requested transaction this node knows.
func (c *Controller) handleGetData(ctx context.Context, inv []p2p.Inventory, sender string) error {
	var response []*txcheck.YuvTransaction

	err := c.db.View(func(tx kvdb.RTx) error {
		for _, item := range inv {
			stored, err := c.db.GetTransaction(tx, item.Txid)
			if err == store.ErrTransactionNotFound {
				continue
			}
			if err != nil {
				return err
			}
			response = append(response, &txcheck.YuvTransaction{BitcoinTx: stored.Tx})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(response) == 0 {
		return nil
	}
	return c.p2p.SendYuvTxs(ctx, response, sender)
}

// handleNewYuvTxs admits every transaction this node hasn't already seen
// into the pending set and forwards the fresh ones to the checker.
func (c *Controller) handleNewYuvTxs(yuvTxs []*txcheck.YuvTransaction, sender string) {
	var fresh []*txcheck.YuvTransaction

	for _, yuvTx := range yuvTxs {
		txid := yuvTx.Txid()

		exists, err := c.isTxExist(txid)
		if err != nil {
			log.Errorf("failed to check if tx %v exists: %v", txid, err)
			continue
		}
		if exists {
			continue
		}

		c.pending.insertIfNotExists(txid, TxStatePending)
		fresh = append(fresh, yuvTx)
	}

	if len(fresh) == 0 {
		return
	}

	eventbus.Publish(c.bus, eventbus.TxsToConfirm{Txs: fresh, Sender: sender})
}

// requestParents sends a GetData for parent transactions the checker found
// missing, targeting the peer that supplied their child.
func (c *Controller) requestParents(ctx context.Context, req eventbus.RequestParents) error {
	inv := make([]p2p.Inventory, 0, len(req.Parents))
	for _, txid := range req.Parents {
		inv = append(inv, p2p.Inventory{Txid: txid})
	}
	return c.p2p.SendGetData(ctx, inv, req.Peer)
}

// handleAttachedTxs removes newly attached transactions from the pending
// set and folds them into the node's gossiped inventory, keeping it bounded
// to maxInvSize by dropping the oldest entries first.
func (c *Controller) handleAttachedTxs(txids []chainhash.Hash) error {
	c.pending.removeMany(txids)

	return c.db.Update(func(tx kvdb.RwTx) error {
		inv, err := c.db.GetInventoryList(tx)
		if err != nil {
			return err
		}

		for _, txid := range txids {
			if len(inv) >= c.maxInvSize {
				inv = inv[1:]
			}
			inv = append(inv, txid)
		}

		return c.db.SetInventoryList(tx, inv)
	})
}

// PendingState reports whether txid is currently tracked in-flight, and in
// which state. Used by the RPC surface to answer status queries without
// touching the persistent store.
func (c *Controller) PendingState(txid chainhash.Hash) (TxState, bool) {
	return c.pending.get(txid)
}

// isTxExist reports whether txid is already known: either tracked as
// pending/checked, or already stored. A transaction that only exists as a
// standalone IssueAnnouncement is treated as not-existing, so a later full
// Issue transaction for the same txid can still override it.
func (c *Controller) isTxExist(txid chainhash.Hash) (bool, error) {
	if _, ok := c.pending.get(txid); ok {
		return true, nil
	}

	var exists bool
	err := c.db.View(func(tx kvdb.RTx) error {
		e, err := c.db.IsTxExistForDedup(tx, txid)
		if err != nil {
			return err
		}
		exists = e
		return nil
	})
	if err != nil {
		return false, err
	}

	return exists, nil
}
