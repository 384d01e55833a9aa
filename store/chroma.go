package store

import (
	"bytes"
	"encoding/binary"

	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
)

// ChromaInfo is the node's running view of a registered chroma: its
// announcement, the total amount issued so far, and its current owner
// script (the issuer's original script, or whatever TransferOwnership most
// recently replaced it with).
type ChromaInfo struct {
	Announcement *announcement.ChromaAnnouncement
	TotalSupply  pixel.Luma
	OwnerScript  []byte
}

func serializeChromaInfo(info *ChromaInfo) ([]byte, error) {
	var buf bytes.Buffer

	// A chroma first seen through an Issue (never registered with a Chroma
	// announcement) carries no announcement; a zero length marks that.
	var annBytes []byte
	if info.Announcement != nil {
		annBytes = announcement.Bytes(info.Announcement)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(annBytes))); err != nil {
		return nil, err
	}
	buf.Write(annBytes)

	buf.Write(info.TotalSupply[:])

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(info.OwnerScript))); err != nil {
		return nil, err
	}
	buf.Write(info.OwnerScript)

	return buf.Bytes(), nil
}

func deserializeChromaInfo(raw []byte) (*ChromaInfo, error) {
	r := bytes.NewReader(raw)

	var annLen uint32
	if err := binary.Read(r, binary.LittleEndian, &annLen); err != nil {
		return nil, ErrCorruptRecord
	}

	var chromaAnn *announcement.ChromaAnnouncement
	if annLen > 0 {
		annBytes := make([]byte, annLen)
		if _, err := r.Read(annBytes); err != nil {
			return nil, ErrCorruptRecord
		}

		ann, err := announcement.FromBytes(annBytes)
		if err != nil {
			return nil, err
		}

		var ok bool
		chromaAnn, ok = ann.(*announcement.ChromaAnnouncement)
		if !ok {
			return nil, ErrCorruptRecord
		}
	}

	var supply pixel.Luma
	if _, err := r.Read(supply[:]); err != nil {
		return nil, ErrCorruptRecord
	}

	var ownerLen uint32
	if err := binary.Read(r, binary.LittleEndian, &ownerLen); err != nil {
		return nil, ErrCorruptRecord
	}

	// A zero length means no TransferOwnership has applied; the owner
	// defaults to the chroma key itself and must stay nil, not empty.
	var owner []byte
	if ownerLen > 0 {
		owner = make([]byte, ownerLen)
		if _, err := r.Read(owner); err != nil {
			return nil, ErrCorruptRecord
		}
	}

	return &ChromaInfo{
		Announcement: chromaAnn,
		TotalSupply:  supply,
		OwnerScript:  owner,
	}, nil
}

// PutChroma registers a new chroma. It fails if the chroma is already
// registered; SetAnnouncement is the call that records a Chroma
// announcement over an existing record.
func (d *DB) PutChroma(tx kvdb.RwTx, info *ChromaInfo) error {
	bucket := tx.ReadWriteBucket(chromaBucket)

	key := info.Announcement.Chroma[:]
	if bucket.Get(key) != nil {
		return ErrChromaAlreadyExists
	}

	raw, err := serializeChromaInfo(info)
	if err != nil {
		return err
	}
	return bucket.Put(key, raw)
}

// GetChroma fetches the current info for a registered chroma.
func (d *DB) GetChroma(tx kvdb.RTx, chroma pixel.Chroma) (*ChromaInfo, error) {
	bucket := tx.ReadBucket(chromaBucket)

	raw := bucket.Get(chroma[:])
	if raw == nil {
		return nil, ErrChromaNotFound
	}
	return deserializeChromaInfo(raw)
}

// SetAnnouncement records chroma's Chroma announcement, keeping any supply
// or owner script accumulated so far. A repeated announcement replaces the
// previously recorded one.
func (d *DB) SetAnnouncement(tx kvdb.RwTx, ann *announcement.ChromaAnnouncement) error {
	info, err := d.getOrCreateChroma(tx, ann.Chroma)
	if err != nil {
		return err
	}

	info.Announcement = ann

	raw, err := serializeChromaInfo(info)
	if err != nil {
		return err
	}

	bucket := tx.ReadWriteBucket(chromaBucket)
	return bucket.Put(ann.Chroma[:], raw)
}

// getOrCreateChroma fetches chroma's record, creating an empty one (no
// announcement, no owner override) the first time a chroma is touched by an
// Issue or TransferOwnership without a prior Chroma announcement.
func (d *DB) getOrCreateChroma(tx kvdb.RTx, chroma pixel.Chroma) (*ChromaInfo, error) {
	info, err := d.GetChroma(tx, chroma)
	if err == ErrChromaNotFound {
		return &ChromaInfo{}, nil
	}
	return info, err
}

// AddSupply increments chroma's total issued supply by amount, as applied
// by a successfully attached Issue announcement. The record is created on
// first use: an Issue does not require a prior Chroma announcement.
func (d *DB) AddSupply(tx kvdb.RwTx, chroma pixel.Chroma, amount pixel.Luma) error {
	info, err := d.getOrCreateChroma(tx, chroma)
	if err != nil {
		return err
	}

	info.TotalSupply = info.TotalSupply.Add(amount)

	raw, err := serializeChromaInfo(info)
	if err != nil {
		return err
	}

	bucket := tx.ReadWriteBucket(chromaBucket)
	return bucket.Put(chroma[:], raw)
}

// SetOwner overwrites chroma's owner script, as applied by a successfully
// attached TransferOwnership announcement. The record is created on first
// use for chromas never registered with a Chroma announcement.
func (d *DB) SetOwner(tx kvdb.RwTx, chroma pixel.Chroma, ownerScript []byte) error {
	info, err := d.getOrCreateChroma(tx, chroma)
	if err != nil {
		return err
	}

	info.OwnerScript = ownerScript

	raw, err := serializeChromaInfo(info)
	if err != nil {
		return err
	}

	bucket := tx.ReadWriteBucket(chromaBucket)
	return bucket.Put(chroma[:], raw)
}
