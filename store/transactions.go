package store

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"
)

// TxStatus is the YUV-specific lifecycle state of a transaction, tracked
// independently of its Bitcoin confirmation status.
type TxStatus uint8

const (
	// TxStatusPending has been seen (relayed or found in a block) but not
	// yet isolated-checked.
	TxStatusPending TxStatus = iota

	// TxStatusChecked passed the isolated checker but has not yet been
	// attached to the graph (its parents may still be missing).
	TxStatusChecked

	// TxStatusAttached passed the contextual checker and is considered
	// final by the node.
	TxStatusAttached

	// TxStatusRejected failed either checker and will not be
	// reconsidered unless resubmitted.
	TxStatusRejected
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusPending:
		return "pending"
	case TxStatusChecked:
		return "checked"
	case TxStatusAttached:
		return "attached"
	case TxStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// StoredTx is a transaction together with the node's current YUV status for
// it.
type StoredTx struct {
	Tx     *wire.MsgTx
	Status TxStatus

	// AnnouncementOnly marks a record that only represents a standalone
	// issue announcement, not the fully-proved issue transaction itself.
	// A later full Issue transaction sharing the same txid is allowed to
	// overwrite it; see DB.IsTxExistForDedup.
	AnnouncementOnly bool
}

func serializeStoredTx(s *StoredTx) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(s.Status))

	var flags byte
	if s.AnnouncementOnly {
		flags |= 1
	}
	// A transaction without inputs is written without a witness marker,
	// and its zero input count would read back as one; flag such records
	// so they are decoded in the non-witness encoding.
	if len(s.Tx.TxIn) == 0 {
		flags |= 2
	}
	buf.WriteByte(flags)

	if err := s.Tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeStoredTx(raw []byte) (*StoredTx, error) {
	if len(raw) < 2 {
		return nil, ErrCorruptRecord
	}

	status := TxStatus(raw[0])
	announcementOnly := raw[1]&1 != 0

	tx := wire.NewMsgTx(wire.TxVersion)
	decode := tx.Deserialize
	if raw[1]&2 != 0 {
		decode = tx.DeserializeNoWitness
	}
	if err := decode(bytes.NewReader(raw[2:])); err != nil {
		return nil, err
	}

	return &StoredTx{Tx: tx, Status: status, AnnouncementOnly: announcementOnly}, nil
}

// PutTransaction stores tx under its txid with the given status, overwriting
// any previous record.
func (d *DB) PutTransaction(tx kvdb.RwTx, msgTx *wire.MsgTx, status TxStatus) error {
	return d.putTransaction(tx, msgTx, status, false)
}

// PutAnnouncementOnlyTransaction stores tx as a standalone issue
// announcement record: it exists for inventory/lookup purposes, but
// DB.IsTxExistForDedup treats it as not-existing so a later full Issue
// transaction with the same txid is still accepted.
func (d *DB) PutAnnouncementOnlyTransaction(tx kvdb.RwTx, msgTx *wire.MsgTx, status TxStatus) error {
	return d.putTransaction(tx, msgTx, status, true)
}

func (d *DB) putTransaction(tx kvdb.RwTx, msgTx *wire.MsgTx, status TxStatus, announcementOnly bool) error {
	bucket := tx.ReadWriteBucket(txBucket)

	raw, err := serializeStoredTx(&StoredTx{Tx: msgTx, Status: status, AnnouncementOnly: announcementOnly})
	if err != nil {
		return err
	}

	txid := msgTx.TxHash()
	return bucket.Put(txid[:], raw)
}

// IsTxExistForDedup reports whether txid is already stored in a way that
// should block a freshly received transaction with the same id from being
// reconsidered. A record that only represents a standalone issue
// announcement doesn't count, so the real Issue transaction can still land.
func (d *DB) IsTxExistForDedup(tx kvdb.RTx, txid chainhash.Hash) (bool, error) {
	stored, err := d.GetTransaction(tx, txid)
	if err == ErrTransactionNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return !stored.AnnouncementOnly, nil
}

// SetTransactionStatus updates only the status of an already-stored
// transaction.
func (d *DB) SetTransactionStatus(tx kvdb.RwTx, txid chainhash.Hash, status TxStatus) error {
	bucket := tx.ReadWriteBucket(txBucket)

	raw := bucket.Get(txid[:])
	if raw == nil {
		return ErrTransactionNotFound
	}

	stored, err := deserializeStoredTx(raw)
	if err != nil {
		return err
	}
	stored.Status = status

	encoded, err := serializeStoredTx(stored)
	if err != nil {
		return err
	}
	return bucket.Put(txid[:], encoded)
}

// GetTransaction fetches a stored transaction by txid.
func (d *DB) GetTransaction(tx kvdb.RTx, txid chainhash.Hash) (*StoredTx, error) {
	bucket := tx.ReadBucket(txBucket)

	raw := bucket.Get(txid[:])
	if raw == nil {
		return nil, ErrTransactionNotFound
	}

	return deserializeStoredTx(raw)
}

// HasTransaction reports whether txid is already stored, regardless of
// status.
func (d *DB) HasTransaction(tx kvdb.RTx, txid chainhash.Hash) bool {
	bucket := tx.ReadBucket(txBucket)
	return bucket.Get(txid[:]) != nil
}

// DeleteTransaction removes a stored transaction.
func (d *DB) DeleteTransaction(tx kvdb.RwTx, txid chainhash.Hash) error {
	bucket := tx.ReadWriteBucket(txBucket)
	return bucket.Delete(txid[:])
}
