package store

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"
)

// invListKey holds the ordered, size-bounded list of recently attached
// txids the controller gossips as its Inv payload. It lives in invBucket
// alongside the per-txid presence flags PutInventory/HasInventory maintain;
// a fixed short key never collides with a 32-byte txid key.
var invListKey = []byte("inv-list")

// GetInventoryList returns the node's current gossip inventory, oldest
// entry first.
func (d *DB) GetInventoryList(tx kvdb.RTx) ([]chainhash.Hash, error) {
	bucket := tx.ReadBucket(invBucket)

	raw := bucket.Get(invListKey)
	if raw == nil {
		return nil, nil
	}
	if len(raw)%chainhash.HashSize != 0 {
		return nil, ErrCorruptRecord
	}

	list := make([]chainhash.Hash, len(raw)/chainhash.HashSize)
	for i := range list {
		copy(list[i][:], raw[i*chainhash.HashSize:(i+1)*chainhash.HashSize])
	}
	return list, nil
}

// SetInventoryList replaces the node's gossip inventory.
func (d *DB) SetInventoryList(tx kvdb.RwTx, list []chainhash.Hash) error {
	bucket := tx.ReadWriteBucket(invBucket)

	raw := make([]byte, 0, len(list)*chainhash.HashSize)
	for _, txid := range list {
		raw = append(raw, txid[:]...)
	}
	return bucket.Put(invListKey, raw)
}
