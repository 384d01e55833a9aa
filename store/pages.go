package store

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"
)

// PageSize is the number of txids stored per page. Clients paginate the
// attached-transaction history page by page rather than requesting the
// whole list at once.
const PageSize = 100

func pageKey(page uint32) []byte {
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], page)
	return key[:]
}

// AppendToPage appends txid to the given page, creating the page if it
// doesn't yet exist. Callers are responsible for tracking which page is
// currently open (see graph.Builder, which reads CurrentPage once per
// attach batch and rolls over at the PageSize boundary).
func (d *DB) AppendToPage(tx kvdb.RwTx, page uint32, txid chainhash.Hash) error {
	bucket := tx.ReadWriteBucket(pageBucket)

	existing := bucket.Get(pageKey(page))
	updated := append(append([]byte{}, existing...), txid[:]...)

	return bucket.Put(pageKey(page), updated)
}

// CurrentPage returns the index of the newest page and how many txids it
// already holds, or (0, 0) when nothing has been paged yet. Callers append
// to this page until it reaches PageSize, then roll over to the next.
func (d *DB) CurrentPage(tx kvdb.RTx) (uint32, int, error) {
	bucket := tx.ReadBucket(pageBucket)

	var (
		found   bool
		page    uint32
		entries int
	)
	err := bucket.ForEach(func(k, v []byte) error {
		if len(k) != 4 {
			return ErrCorruptRecord
		}
		n := binary.BigEndian.Uint32(k)
		if !found || n > page {
			found = true
			page = n
			entries = len(v) / chainhash.HashSize
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return page, entries, nil
}

// GetPage returns the txids stored on the given page, in append order.
func (d *DB) GetPage(tx kvdb.RTx, page uint32) ([]chainhash.Hash, error) {
	bucket := tx.ReadBucket(pageBucket)

	raw := bucket.Get(pageKey(page))
	if raw == nil {
		return nil, ErrPageNotFound
	}
	if len(raw)%chainhash.HashSize != 0 {
		return nil, ErrCorruptRecord
	}

	count := len(raw) / chainhash.HashSize
	out := make([]chainhash.Hash, count)
	for i := 0; i < count; i++ {
		copy(out[i][:], raw[i*chainhash.HashSize:(i+1)*chainhash.HashSize])
	}
	return out, nil
}
