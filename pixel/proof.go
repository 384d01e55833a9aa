package pixel

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// ProofType is the one-byte discriminant selecting a proof variant, per the
// wire layout of the proof codec.
type ProofType byte

const (
	ProofTypeSig                 ProofType = 0
	ProofTypeMultisig            ProofType = 1
	ProofTypeLightningCommitment ProofType = 2
	ProofTypeLightningHtlc       ProofType = 3
	ProofTypeBulletproof         ProofType = 4
	ProofTypeEmptyPixel          ProofType = 5
)

func (t ProofType) String() string {
	switch t {
	case ProofTypeSig:
		return "Sig"
	case ProofTypeMultisig:
		return "Multisig"
	case ProofTypeLightningCommitment:
		return "LightningCommitment"
	case ProofTypeLightningHtlc:
		return "LightningHtlc"
	case ProofTypeBulletproof:
		return "Bulletproof"
	case ProofTypeEmptyPixel:
		return "EmptyPixel"
	default:
		return "Unknown"
	}
}

// burnKeyBytes is the x-only serialization of the canonical
// "nothing-up-my-sleeve" point used across the Bitcoin ecosystem for
// provably-unspendable commitments (the BIP-341 NUMS point). A proof whose
// first inner key equals this point marks its output as burnt.
var burnKeyBytes = [32]byte{
	0x50, 0x92, 0x9b, 0x74, 0xc1, 0xa0, 0x49, 0x54,
	0xb7, 0x8b, 0x4b, 0x60, 0x35, 0xe9, 0x7a, 0x5e,
	0x07, 0x8a, 0x5a, 0x0f, 0x28, 0xec, 0x96, 0xd5,
	0x47, 0xbf, 0xee, 0x9a, 0xce, 0x80, 0x3a, 0xc0,
}

// IsBurnKey reports whether the given compressed public key's x-only part is
// the well-known burn key.
func IsBurnKey(key *btcec.PublicKey) bool {
	x := key.X().Bytes()
	var xb [32]byte
	copy(xb[32-len(x):], x)
	return xb == burnKeyBytes
}

// CheckableProof is implemented by every proof variant. It reconstructs the
// script/witness an honest holder of the pixel would produce and compares it
// bit-for-bit with what is actually on-chain; cryptographic signature
// verification itself is left to the Bitcoin consensus layer, matching
// §4.1's "structure and key-equality only" contract.
type CheckableProof interface {
	// CheckByOutput verifies the proof against a transaction output.
	CheckByOutput(txout *wire.TxOut, params *chaincfg.Params) error

	// CheckByInput verifies the proof against a transaction input's
	// witness.
	CheckByInput(txin *wire.TxIn) error
}

// Proof is the tagged union of all six proof variants. Implementations
// SHOULD be exhaustively type-switched rather than relying on further
// interface embedding, per the "avoid inheritance hierarchies" design note.
type Proof interface {
	CheckableProof

	// Type returns the variant's wire discriminant.
	Type() ProofType

	// Pixel returns the pixel this proof attests to. EmptyPixelProof
	// returns the empty pixel.
	Pixel() Pixel

	// Encode writes the variant's payload (not including the leading
	// type discriminant) to w.
	Encode(w io.Writer) error
}

// EncodeProof writes the full wire encoding (discriminant || payload) of a
// proof.
func EncodeProof(p Proof) ([]byte, error) {
	var buf bytes.Buffer
	if err := buf.WriteByte(byte(p.Type())); err != nil {
		return nil, err
	}
	if err := p.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeProof reads a proof's type discriminant and dispatches to the
// variant-specific decoder. An unrecognized discriminant is a hard parse
// error, per §4.1.
func DecodeProof(r io.Reader) (Proof, error) {
	var tagByte [1]byte
	if _, err := io.ReadFull(r, tagByte[:]); err != nil {
		return nil, err
	}

	switch ProofType(tagByte[0]) {
	case ProofTypeSig:
		return decodeSigProof(r)
	case ProofTypeMultisig:
		return decodeMultisigProof(r)
	case ProofTypeLightningCommitment:
		return decodeLightningCommitmentProof(r)
	case ProofTypeLightningHtlc:
		return decodeLightningHtlcProof(r)
	case ProofTypeBulletproof:
		return decodeBulletproofProof(r)
	case ProofTypeEmptyPixel:
		return decodeEmptyPixelProof(r)
	default:
		return nil, ErrUnknownProofTag
	}
}

// readPubKey reads a 33-byte compressed public key.
func readPubKey(r io.Reader) (*btcec.PublicKey, error) {
	var raw [33]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, ErrShortProof
	}
	return btcec.ParsePubKey(raw[:])
}

func writePubKey(w io.Writer, key *btcec.PublicKey) error {
	_, err := w.Write(key.SerializeCompressed())
	return err
}

func readPixel(r io.Reader) (Pixel, error) {
	var raw [PixelSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Pixel{}, ErrShortProof
	}
	return PixelFromBytes(raw[:])
}

func writePixel(w io.Writer, p Pixel) error {
	raw := p.Bytes()
	_, err := w.Write(raw[:])
	return err
}

// --- P2WPKH witness parsing shared by Sig, EmptyPixel and Bulletproof. ---

// p2wpkhWitnessData is the parsed [signature, pubkey] witness stack common
// to the Sig, EmptyPixel and Bulletproof variants.
type p2wpkhWitnessData struct {
	signature []byte
	pubkey    *btcec.PublicKey
}

func parseP2WPKHWitness(txin *wire.TxIn) (*p2wpkhWitnessData, error) {
	if len(txin.Witness) != 2 {
		return nil, ErrWitnessStructure
	}

	pubkey, err := btcec.ParsePubKey(txin.Witness[1])
	if err != nil {
		return nil, err
	}

	return &p2wpkhWitnessData{
		signature: txin.Witness[0],
		pubkey:    pubkey,
	}, nil
}

func checkPixelKeyByOutput(p Pixel, innerKey *btcec.PublicKey, txout *wire.TxOut, params *chaincfg.Params) error {
	pixelKey, err := NewPixelKey(p, innerKey)
	if err != nil {
		return err
	}

	expected, err := pixelKey.ToP2WPKH(params)
	if err != nil {
		return err
	}

	if !bytes.Equal(txout.PkScript, expected) {
		return ErrScriptMismatch
	}

	return nil
}

func checkPixelKeyByInput(p Pixel, innerKey *btcec.PublicKey, txin *wire.TxIn) error {
	data, err := parseP2WPKHWitness(txin)
	if err != nil {
		return err
	}

	pixelKey, err := NewPixelKey(p, innerKey)
	if err != nil {
		return err
	}

	if !pixelKey.Key.IsEqual(data.pubkey) {
		return ErrInvalidWitnessPublicKey
	}

	return nil
}

// --- SigPixelProof -----------------------------------------------------

// SigPixelProof is the proof of ownership backed by a single signature over
// a P2WPKH output of the tweaked key.
type SigPixelProof struct {
	PixelValue Pixel
	InnerKey   *btcec.PublicKey
}

func NewSigPixelProof(p Pixel, innerKey *btcec.PublicKey) *SigPixelProof {
	return &SigPixelProof{PixelValue: p, InnerKey: innerKey}
}

func (s *SigPixelProof) Type() ProofType { return ProofTypeSig }
func (s *SigPixelProof) Pixel() Pixel    { return s.PixelValue }

func (s *SigPixelProof) Encode(w io.Writer) error {
	if err := writePixel(w, s.PixelValue); err != nil {
		return err
	}
	return writePubKey(w, s.InnerKey)
}

func decodeSigProof(r io.Reader) (Proof, error) {
	p, err := readPixel(r)
	if err != nil {
		return nil, err
	}
	key, err := readPubKey(r)
	if err != nil {
		return nil, err
	}
	return &SigPixelProof{PixelValue: p, InnerKey: key}, nil
}

func (s *SigPixelProof) CheckByOutput(txout *wire.TxOut, params *chaincfg.Params) error {
	return checkPixelKeyByOutput(s.PixelValue, s.InnerKey, txout, params)
}

func (s *SigPixelProof) CheckByInput(txin *wire.TxIn) error {
	if IsBurnKey(s.InnerKey) {
		return ErrBurntInput
	}
	return checkPixelKeyByInput(s.PixelValue, s.InnerKey, txin)
}

// --- EmptyPixelProof ----------------------------------------------------

// EmptyPixelProof is the proof of ownership of a change/satoshi-only
// output: a P2WPKH of the inner key tweaked with the empty pixel.
type EmptyPixelProof struct {
	InnerKey *btcec.PublicKey
}

func NewEmptyPixelProof(innerKey *btcec.PublicKey) *EmptyPixelProof {
	return &EmptyPixelProof{InnerKey: innerKey}
}

func (e *EmptyPixelProof) Type() ProofType { return ProofTypeEmptyPixel }
func (e *EmptyPixelProof) Pixel() Pixel    { return Empty() }

func (e *EmptyPixelProof) Encode(w io.Writer) error {
	return writePubKey(w, e.InnerKey)
}

func decodeEmptyPixelProof(r io.Reader) (Proof, error) {
	key, err := readPubKey(r)
	if err != nil {
		return nil, err
	}
	return &EmptyPixelProof{InnerKey: key}, nil
}

func (e *EmptyPixelProof) CheckByOutput(txout *wire.TxOut, params *chaincfg.Params) error {
	return checkPixelKeyByOutput(Empty(), e.InnerKey, txout, params)
}

func (e *EmptyPixelProof) CheckByInput(txin *wire.TxIn) error {
	if IsBurnKey(e.InnerKey) {
		return ErrBurntInput
	}
	return checkPixelKeyByInput(Empty(), e.InnerKey, txin)
}

// verifyECDSASignatureFormat performs a structural parse of a DER+sighash
// signature, without checking it cryptographically; matches §4.1's
// "structure ... only" contract for Sig/Multisig witnesses.
func verifyECDSASignatureFormat(sigWithHashType []byte) error {
	if len(sigWithHashType) < 9 {
		return ErrShortProof
	}
	_, err := ecdsa.ParseDERSignature(sigWithHashType[:len(sigWithHashType)-1])
	return err
}
