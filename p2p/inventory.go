package p2p

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// maxInvItems bounds how many ids a single Inv or GetData message may carry.
// It is a decoding limit, far above the controller's inventory size.
const maxInvItems = 50_000

// Inventory identifies a single pending or attached transaction by its
// bitcoin txid. The wire format carries no type tag: each item is encoded
// as its bare 32-byte txid.
type Inventory struct {
	Txid chainhash.Hash
}

func writeInventoryList(w io.Writer, items []Inventory) error {
	if len(items) > maxInvItems {
		return fmt.Errorf("inventory list of %d items exceeds maximum of %d",
			len(items), maxInvItems)
	}

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(items)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	for _, item := range items {
		if _, err := w.Write(item.Txid[:]); err != nil {
			return err
		}
	}
	return nil
}

func readInventoryList(r io.Reader) ([]Inventory, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	if count > maxInvItems {
		return nil, fmt.Errorf("announced inventory count %d exceeds maximum of %d",
			count, maxInvItems)
	}

	items := make([]Inventory, count)
	for i := range items {
		if _, err := io.ReadFull(r, items[i].Txid[:]); err != nil {
			return nil, err
		}
	}
	return items, nil
}
