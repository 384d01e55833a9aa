package store

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"
)

var (
	lastIndexedHeightKey = []byte("height")
	lastIndexedHashKey   = []byte("hash")
)

// SetLastIndexedHeight records the height of the last block the indexer has
// fully processed, so a restart can resume instead of re-scanning from
// genesis.
func (d *DB) SetLastIndexedHeight(tx kvdb.RwTx, height uint32) error {
	bucket := tx.ReadWriteBucket(lastIndexedBucket)

	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], height)
	return bucket.Put(lastIndexedHeightKey, raw[:])
}

// LastIndexedHeight returns the last fully processed height, or 0 if the
// indexer has never run.
func (d *DB) LastIndexedHeight(tx kvdb.RTx) (uint32, error) {
	bucket := tx.ReadBucket(lastIndexedBucket)

	raw := bucket.Get(lastIndexedHeightKey)
	if raw == nil {
		return 0, nil
	}
	if len(raw) != 4 {
		return 0, ErrCorruptRecord
	}
	return binary.BigEndian.Uint32(raw), nil
}

// SetLastIndexedHash records the hash of the last block the indexer has
// fully processed, used on restart to verify the next block's
// previousblockhash still chains from it.
func (d *DB) SetLastIndexedHash(tx kvdb.RwTx, hash chainhash.Hash) error {
	bucket := tx.ReadWriteBucket(lastIndexedBucket)
	return bucket.Put(lastIndexedHashKey, hash[:])
}

// LastIndexedHash returns the last fully processed block hash, and false if
// the indexer has never run.
func (d *DB) LastIndexedHash(tx kvdb.RTx) (chainhash.Hash, bool, error) {
	bucket := tx.ReadBucket(lastIndexedBucket)

	raw := bucket.Get(lastIndexedHashKey)
	if raw == nil {
		return chainhash.Hash{}, false, nil
	}

	hash, err := chainhash.NewHash(raw)
	if err != nil {
		return chainhash.Hash{}, false, err
	}
	return *hash, true, nil
}

// SetReindexed marks that a full reindex has completed, so future startups
// don't repeat it unless the operator passes --reindex again.
func (d *DB) SetReindexed(tx kvdb.RwTx) error {
	bucket := tx.ReadWriteBucket(metaBucket)
	return bucket.Put(metaKeyIndexedFlag, []byte{1})
}

// WasReindexed reports whether a full reindex has ever completed.
func (d *DB) WasReindexed(tx kvdb.RTx) bool {
	bucket := tx.ReadBucket(metaBucket)
	return bucket.Get(metaKeyIndexedFlag) != nil
}

// ClearReindexedFlag resets the reindex flag. The indexer does not call it:
// --reindex forces a rescan without touching the stored flag.
func (d *DB) ClearReindexedFlag(tx kvdb.RwTx) error {
	bucket := tx.ReadWriteBucket(metaBucket)
	return bucket.Delete(metaKeyIndexedFlag)
}

// PutInventory records that txid is known to the node's inventory. The
// controller's gossip uses the list kept by SetInventoryList, not these
// per-txid flags.
func (d *DB) PutInventory(tx kvdb.RwTx, txid chainhash.Hash) error {
	bucket := tx.ReadWriteBucket(invBucket)
	return bucket.Put(txid[:], []byte{1})
}

// HasInventory reports whether txid is in the node's inventory set.
func (d *DB) HasInventory(tx kvdb.RTx, txid chainhash.Hash) bool {
	bucket := tx.ReadBucket(invBucket)
	return bucket.Get(txid[:]) != nil
}
