// Package pixel implements the token tag carried at a YUV-colored Bitcoin
// output: the (chroma, luma) pair, the public-key tweak that binds it to a
// UTXO, and the proof variants that let a verifier recover and check it.
package pixel

import (
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

const (
	// ChromaSize is the length in bytes of a Chroma: a 32-byte x-only
	// public key.
	ChromaSize = 32

	// LumaSize is the length in bytes of a Luma value on the wire.
	LumaSize = 16

	// PixelSize is the fixed on-wire size of a Pixel: chroma || luma.
	PixelSize = ChromaSize + LumaSize
)

// Chroma identifies a token kind by the x-only public key of its issuer.
type Chroma [ChromaSize]byte

// ChromaFromPublicKey derives the Chroma for the given issuer public key by
// taking its x-only (BIP-340) serialization.
func ChromaFromPublicKey(pub *btcec.PublicKey) Chroma {
	var c Chroma
	copy(c[:], schnorr.SerializePubKey(pub))
	return c
}

// PublicKey lifts the Chroma back to a full (even-y) secp256k1 public key,
// the BIP-340 "lift_x" operation.
func (c Chroma) PublicKey() (*btcec.PublicKey, error) {
	return schnorr.ParsePubKey(c[:])
}

// IsEmpty reports whether this is the all-zero chroma used by the empty
// pixel (satoshi-only, untokenized outputs).
func (c Chroma) IsEmpty() bool {
	return c == Chroma{}
}

func (c Chroma) String() string {
	return hexEncode(c[:])
}

// Luma is the amount field of a pixel. For explicit-amount proof variants it
// is a plain 128-bit unsigned integer written little-endian. For the
// confidential (Bulletproof) variant it instead carries the low 16 bytes of
// SHA256(commitment || range_proof), binding the pixel to a Pedersen
// commitment without revealing the amount.
type Luma [LumaSize]byte

// EmptyLuma is the zero amount used by the empty pixel.
var EmptyLuma = Luma{}

// NewLuma builds a Luma from a uint64 amount.
func NewLuma(amount uint64) Luma {
	var l Luma
	binary.LittleEndian.PutUint64(l[:8], amount)
	return l
}

// LumaFromBigInt builds a Luma from an arbitrary-precision non-negative
// integer, truncated/zero-padded to 128 bits little-endian.
func LumaFromBigInt(amount *big.Int) Luma {
	var l Luma
	b := amount.Bytes() // big-endian, no leading zeros
	for i := 0; i < len(b) && i < LumaSize; i++ {
		l[i] = b[len(b)-1-i]
	}
	return l
}

// LumaFromCommitmentHash truncates a 32-byte commitment/range-proof hash to
// the fixed 16-byte luma width used by the Bulletproof variant.
func LumaFromCommitmentHash(hash [32]byte) Luma {
	var l Luma
	copy(l[:], hash[:LumaSize])
	return l
}

// BigInt returns the Luma as an arbitrary-precision non-negative integer,
// interpreting the bytes as little-endian.
func (l Luma) BigInt() *big.Int {
	be := make([]byte, LumaSize)
	for i := 0; i < LumaSize; i++ {
		be[LumaSize-1-i] = l[i]
	}
	return new(big.Int).SetBytes(be)
}

// IsZero reports whether the luma is the zero amount.
func (l Luma) IsZero() bool {
	return l == Luma{}
}

// Add returns l + other as a new Luma, wrapping at 128 bits is not expected
// to occur for real token supplies but is not explicitly guarded here; overflow
// detection belongs to the caller (see txcheck for supply-cap enforcement).
func (l Luma) Add(other Luma) Luma {
	return LumaFromBigInt(new(big.Int).Add(l.BigInt(), other.BigInt()))
}

// Cmp compares two Luma values as unsigned 128-bit integers.
func (l Luma) Cmp(other Luma) int {
	return l.BigInt().Cmp(other.BigInt())
}

func (l Luma) String() string {
	return l.BigInt().String()
}

// Pixel is the token tag carried at a single Bitcoin output.
type Pixel struct {
	Chroma Chroma
	Luma   Luma
}

// Empty is the degenerate pixel used for untokenized (satoshi-only) outputs,
// such as change outputs in a YUV-aware wallet.
func Empty() Pixel {
	return Pixel{}
}

// IsEmpty reports whether this is the empty pixel.
func (p Pixel) IsEmpty() bool {
	return p.Chroma.IsEmpty() && p.Luma.IsZero()
}

// Bytes returns the canonical 48-byte (chroma || luma) encoding of the
// pixel.
func (p Pixel) Bytes() [PixelSize]byte {
	var out [PixelSize]byte
	copy(out[:ChromaSize], p.Chroma[:])
	copy(out[ChromaSize:], p.Luma[:])
	return out
}

// PixelFromBytes parses a Pixel from its canonical 48-byte encoding.
func PixelFromBytes(b []byte) (Pixel, error) {
	if len(b) != PixelSize {
		return Pixel{}, ErrInvalidPixelLength
	}

	var p Pixel
	copy(p.Chroma[:], b[:ChromaSize])
	copy(p.Luma[:], b[ChromaSize:])

	return p, nil
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
