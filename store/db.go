// Package store implements the node's typed key/value views over a kvdb
// backend: confirmed/unconfirmed transactions, frozen outpoints, chroma
// registrations and supply counters, page-indexed transaction listings, and
// the indexer's bookkeeping keys.
package store

import (
	"github.com/lightningnetwork/lnd/kvdb"
)

// Top-level buckets. Each bucket is its own typed view (see
// transactions.go, frozen.go, chroma.go, pages.go, indexer.go) but they all
// share one underlying kvdb.Backend and are created together so a fresh node
// never observes a partially-initialized database.
var (
	txBucket          = []byte("tx")
	frozenBucket      = []byte("frozen")
	chromaBucket      = []byte("chroma")
	pageBucket        = []byte("page")
	invBucket         = []byte("inv")
	lastIndexedBucket = []byte("last-indexed")
	metaBucket        = []byte("meta")
)

var metaKeyIndexedFlag = []byte("indexed-flag")

// DB is the node's primary datastore. It wraps a kvdb.Backend and exposes
// the typed views other components depend on.
type DB struct {
	backend kvdb.Backend
}

// Open wraps an already-opened kvdb.Backend and ensures the top-level
// buckets this node needs exist.
func Open(backend kvdb.Backend) (*DB, error) {
	db := &DB{backend: backend}

	err := kvdb.Update(backend, func(tx kvdb.RwTx) error {
		for _, bucket := range [][]byte{
			txBucket, frozenBucket, chromaBucket, pageBucket,
			invBucket, lastIndexedBucket, metaBucket,
		} {
			if _, err := tx.CreateTopLevelBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	}, func() {})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Close releases the underlying backend.
func (d *DB) Close() error {
	return d.backend.Close()
}

// View runs a read-only transaction against the backend.
func (d *DB) View(fn func(tx kvdb.RTx) error) error {
	return kvdb.View(d.backend, fn, func() {})
}

// Update runs a read-write transaction against the backend.
func (d *DB) Update(fn func(tx kvdb.RwTx) error) error {
	return kvdb.Update(d.backend, fn, func() {})
}
