package store

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/yuvprotocol/yuvd/pixel"
)

func outpointKey(op wire.OutPoint) []byte {
	key := make([]byte, len(op.Hash), len(op.Hash)+4)
	copy(key, op.Hash[:])

	var idx [4]byte
	idx[0] = byte(op.Index)
	idx[1] = byte(op.Index >> 8)
	idx[2] = byte(op.Index >> 16)
	idx[3] = byte(op.Index >> 24)

	return append(key, idx[:]...)
}

// FreezeEntry records which freeze announcement locked an outpoint, and
// under which chroma. Freezes are chroma-scoped: a freeze recorded under a
// different chroma than the outpoint's pixel has no effect on spends.
type FreezeEntry struct {
	FreezeTxid chainhash.Hash
	Chroma     pixel.Chroma
}

// Freeze marks outpoint as frozen under chroma by the announcement carried
// in freezeTxid. Freezing is a set operation: freezing an already-frozen
// outpoint overwrites the entry, there is no toggle.
func (d *DB) Freeze(tx kvdb.RwTx, op wire.OutPoint, freezeTxid chainhash.Hash, chroma pixel.Chroma) error {
	bucket := tx.ReadWriteBucket(frozenBucket)

	value := make([]byte, 0, chainhash.HashSize+pixel.ChromaSize)
	value = append(value, freezeTxid[:]...)
	value = append(value, chroma[:]...)

	return bucket.Put(outpointKey(op), value)
}

// Unfreeze removes outpoint from the frozen set. The checkers do not call
// it: a freeze recorded under a chroma other than the spent input's is
// ignored by the contextual checker and stays stored.
func (d *DB) Unfreeze(tx kvdb.RwTx, op wire.OutPoint) error {
	bucket := tx.ReadWriteBucket(frozenBucket)
	return bucket.Delete(outpointKey(op))
}

// GetFreeze returns the freeze entry for outpoint, and false if the
// outpoint is not frozen.
func (d *DB) GetFreeze(tx kvdb.RTx, op wire.OutPoint) (*FreezeEntry, bool, error) {
	bucket := tx.ReadBucket(frozenBucket)

	raw := bucket.Get(outpointKey(op))
	if raw == nil {
		return nil, false, nil
	}
	if len(raw) != chainhash.HashSize+pixel.ChromaSize {
		return nil, false, ErrCorruptRecord
	}

	entry := &FreezeEntry{}
	copy(entry.FreezeTxid[:], raw[:chainhash.HashSize])
	copy(entry.Chroma[:], raw[chainhash.HashSize:])

	return entry, true, nil
}

// IsFrozen reports whether outpoint is currently in the frozen set,
// regardless of chroma.
func (d *DB) IsFrozen(tx kvdb.RTx, op wire.OutPoint) bool {
	bucket := tx.ReadBucket(frozenBucket)
	return bucket.Get(outpointKey(op)) != nil
}
