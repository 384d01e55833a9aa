// Package announcement implements the OP_RETURN-encoded control messages
// used to register, issue, freeze, and transfer ownership of a chroma.
package announcement

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/txscript"
	"github.com/yuvprotocol/yuvd/pixel"
)

// Prefix is the magic three bytes ("yuv") that distinguish a YUV
// announcement's OP_RETURN payload from other protocols' use of OP_RETURN.
var Prefix = [3]byte{0x79, 0x75, 0x76}

// KindLength is the length in bytes of the announcement kind discriminant.
const KindLength = 2

// MinimalLength is the minimum total length of an announcement payload:
// prefix + kind.
const MinimalLength = len(Prefix) + KindLength

// Kind is the two-byte discriminant identifying an announcement variant.
type Kind [KindLength]byte

var (
	KindChroma            = Kind{0, 0}
	KindIssue             = Kind{0, 1}
	KindFreeze            = Kind{0, 2}
	KindTransferOwnership = Kind{0, 3}
)

// Errors returned while parsing announcements.
var (
	ErrShortLength         = errors.New("announcement: data shorter than the minimal announcement length")
	ErrInvalidPrefix       = errors.New("announcement: invalid magic prefix")
	ErrUnknownKind         = errors.New("announcement: unknown kind discriminant")
	ErrNotOpReturn         = errors.New("announcement: script is not an OP_RETURN output")
	ErrInvalidNameLength   = errors.New("announcement: chroma name length out of bounds [3,20]")
	ErrInvalidSymbolLength = errors.New("announcement: chroma symbol length out of bounds [3,6]")
	ErrInvalidOwnerScript  = errors.New("announcement: replacement owner script length out of bounds [16,48]")
	ErrTruncatedPayload    = errors.New("announcement: payload truncated before expected field")
)

// Announcement is the common interface implemented by every announcement
// variant.
type Announcement interface {
	// Kind returns the two-byte wire discriminant for this variant.
	Kind() Kind

	// MinimalBlockHeight returns the minimum chain height at which this
	// announcement may be considered, per network.
	MinimalBlockHeight(net Network) uint32

	// encodeData writes the variant-specific payload (excluding prefix
	// and kind) to the buffer.
	encodeData(buf *bytes.Buffer)
}

// Bytes returns the canonical wire encoding: prefix || kind || data.
func Bytes(a Announcement) []byte {
	var buf bytes.Buffer
	buf.Write(Prefix[:])
	k := a.Kind()
	buf.Write(k[:])
	a.encodeData(&buf)
	return buf.Bytes()
}

// ToScript wraps the announcement's byte encoding in an OP_RETURN script.
func ToScript(a Announcement) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(Bytes(a)).
		Script()
}

// FromBytes parses any announcement variant from its raw wire bytes
// (prefix || kind || data), dispatching on the kind discriminant.
func FromBytes(data []byte) (Announcement, error) {
	if len(data) < MinimalLength {
		return nil, ErrShortLength
	}

	if !bytes.Equal(data[:len(Prefix)], Prefix[:]) {
		return nil, ErrInvalidPrefix
	}

	var kind Kind
	copy(kind[:], data[len(Prefix):MinimalLength])
	payload := data[MinimalLength:]

	switch kind {
	case KindChroma:
		return parseChroma(payload)
	case KindIssue:
		return parseIssue(payload)
	case KindFreeze:
		return parseFreeze(payload)
	case KindTransferOwnership:
		return parseTransferOwnership(payload)
	default:
		return nil, ErrUnknownKind
	}
}

// FromScript extracts and parses the announcement carried by an OP_RETURN
// script.
func FromScript(script []byte) (Announcement, error) {
	data, err := extractOpReturnData(script)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// extractOpReturnData tokenizes script and returns the single pushed data
// element following OP_RETURN.
func extractOpReturnData(script []byte) ([]byte, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, ErrNotOpReturn
	}

	if !tokenizer.Next() {
		return nil, ErrNotOpReturn
	}

	return tokenizer.Data(), nil
}

// chroma32 reads the 32-byte chroma at the front of payload.
func chroma32(payload []byte) (pixel.Chroma, []byte, error) {
	if len(payload) < pixel.ChromaSize {
		return pixel.Chroma{}, nil, ErrTruncatedPayload
	}
	var c pixel.Chroma
	copy(c[:], payload[:pixel.ChromaSize])
	return c, payload[pixel.ChromaSize:], nil
}
