package announcement

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/yuvprotocol/yuvd/pixel"
)

// FreezeAnnouncement locks a specific tokenized outpoint. Freeze state is a
// set: announcing the same outpoint twice is idempotent, and there is no
// separate "unfreeze" kind.
type FreezeAnnouncement struct {
	Chroma   pixel.Chroma
	Outpoint wire.OutPoint
}

func NewFreezeAnnouncement(chroma pixel.Chroma, outpoint wire.OutPoint) *FreezeAnnouncement {
	return &FreezeAnnouncement{Chroma: chroma, Outpoint: outpoint}
}

func (f *FreezeAnnouncement) Kind() Kind { return KindFreeze }

func (f *FreezeAnnouncement) MinimalBlockHeight(Network) uint32 { return 0 }

func (f *FreezeAnnouncement) encodeData(buf *bytes.Buffer) {
	buf.Write(f.Chroma[:])
	buf.Write(f.Outpoint.Hash[:])

	var indexBytes [4]byte
	binary.LittleEndian.PutUint32(indexBytes[:], f.Outpoint.Index)
	buf.Write(indexBytes[:])
}

func parseFreeze(payload []byte) (*FreezeAnnouncement, error) {
	chroma, rest, err := chroma32(payload)
	if err != nil {
		return nil, err
	}

	if len(rest) < chainhash.HashSize+4 {
		return nil, ErrTruncatedPayload
	}

	var txid chainhash.Hash
	copy(txid[:], rest[:chainhash.HashSize])
	rest = rest[chainhash.HashSize:]

	index := binary.LittleEndian.Uint32(rest[:4])

	return &FreezeAnnouncement{
		Chroma:   chroma,
		Outpoint: wire.OutPoint{Hash: txid, Index: index},
	}, nil
}
