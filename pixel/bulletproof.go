package pixel

import (
	"crypto/sha256"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// RangeProofOracle is the opaque prove/verify boundary for the confidential
// (Bulletproof) pixel proof. Per §9's design note, the commitment point and
// range proof are treated as opaque byte strings at the codec level; only
// the verification layer calls into a concrete Pedersen/Bulletproof
// implementation, so that implementation can be swapped without touching
// the proof codec or the isolated checker.
type RangeProofOracle interface {
	// VerifyRangeProof reports whether proof is a valid Bulletproof range
	// proof for commitment.
	VerifyRangeProof(commitment, proof []byte) bool
}

// noopOracle rejects every range proof; it exists so the package has a safe
// zero value instead of a nil-pointer panic when no oracle has been wired.
type noopOracle struct{}

func (noopOracle) VerifyRangeProof(_, _ []byte) bool { return false }

// DefaultRangeProofOracle is used by Bulletproof proofs constructed without
// an explicit oracle. Call SetDefaultRangeProofOracle during node start-up
// to wire in the real implementation.
var DefaultRangeProofOracle RangeProofOracle = noopOracle{}

// SetDefaultRangeProofOracle installs the process-wide range-proof oracle.
func SetDefaultRangeProofOracle(oracle RangeProofOracle) {
	DefaultRangeProofOracle = oracle
}

// BulletproofProof is the confidential pixel proof: the luma field is a hash
// of a Pedersen commitment and its range proof rather than a plain integer.
type BulletproofProof struct {
	PixelValue      Pixel
	InnerKey        *btcec.PublicKey
	SenderKey       *btcec.PublicKey
	Commitment      []byte
	RangeProof      []byte
	Signature       *schnorr.Signature
	ChromaSignature *schnorr.Signature
	Oracle          RangeProofOracle
}

func NewBulletproofProof(p Pixel, innerKey, senderKey *btcec.PublicKey, commitment, rangeProof []byte, sig, chromaSig *schnorr.Signature) *BulletproofProof {
	return &BulletproofProof{
		PixelValue:      p,
		InnerKey:        innerKey,
		SenderKey:       senderKey,
		Commitment:      commitment,
		RangeProof:      rangeProof,
		Signature:       sig,
		ChromaSignature: chromaSig,
		Oracle:          DefaultRangeProofOracle,
	}
}

func (b *BulletproofProof) Type() ProofType { return ProofTypeBulletproof }
func (b *BulletproofProof) Pixel() Pixel    { return b.PixelValue }

func (b *BulletproofProof) Encode(w io.Writer) error {
	if err := writePixel(w, b.PixelValue); err != nil {
		return err
	}
	if err := writePubKey(w, b.InnerKey); err != nil {
		return err
	}
	if err := writePubKey(w, b.SenderKey); err != nil {
		return err
	}
	if err := writeLengthPrefixed(w, b.Commitment); err != nil {
		return err
	}
	if err := writeLengthPrefixed(w, b.RangeProof); err != nil {
		return err
	}
	if _, err := w.Write(b.Signature.Serialize()); err != nil {
		return err
	}
	_, err := w.Write(b.ChromaSignature.Serialize())
	return err
}

func decodeBulletproofProof(r io.Reader) (Proof, error) {
	p, err := readPixel(r)
	if err != nil {
		return nil, err
	}
	innerKey, err := readPubKey(r)
	if err != nil {
		return nil, err
	}
	senderKey, err := readPubKey(r)
	if err != nil {
		return nil, err
	}
	commitment, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	rangeProof, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}

	var sigBytes [64]byte
	if _, err := io.ReadFull(r, sigBytes[:]); err != nil {
		return nil, ErrShortProof
	}
	sig, err := schnorr.ParseSignature(sigBytes[:])
	if err != nil {
		return nil, err
	}

	var chromaSigBytes [64]byte
	if _, err := io.ReadFull(r, chromaSigBytes[:]); err != nil {
		return nil, ErrShortProof
	}
	chromaSig, err := schnorr.ParseSignature(chromaSigBytes[:])
	if err != nil {
		return nil, err
	}

	return &BulletproofProof{
		PixelValue:      p,
		InnerKey:        innerKey,
		SenderKey:       senderKey,
		Commitment:      commitment,
		RangeProof:      rangeProof,
		Signature:       sig,
		ChromaSignature: chromaSig,
		Oracle:          DefaultRangeProofOracle,
	}, nil
}

// checkLuma reports whether the pixel's luma is exactly the truncated hash
// of the commitment and range proof, binding the proof to the pixel.
func (b *BulletproofProof) checkLuma() bool {
	h := sha256.Sum256(append(append([]byte{}, b.Commitment...), b.RangeProof...))
	return LumaFromCommitmentHash(h) == b.PixelValue.Luma
}

func (b *BulletproofProof) oracle() RangeProofOracle {
	if b.Oracle != nil {
		return b.Oracle
	}
	return DefaultRangeProofOracle
}

func (b *BulletproofProof) CheckByOutput(txout *wire.TxOut, params *chaincfg.Params) error {
	if err := checkPixelKeyByOutput(b.PixelValue, b.InnerKey, txout, params); err != nil {
		return err
	}

	if !b.checkLuma() {
		return ErrLumaMismatch
	}

	if !b.oracle().VerifyRangeProof(b.Commitment, b.RangeProof) {
		return ErrInvalidRangeProof
	}

	return nil
}

func (b *BulletproofProof) CheckByInput(txin *wire.TxIn) error {
	if IsBurnKey(b.InnerKey) {
		return ErrBurntInput
	}

	if err := checkPixelKeyByInput(b.PixelValue, b.InnerKey, txin); err != nil {
		return err
	}

	if !b.oracle().VerifyRangeProof(b.Commitment, b.RangeProof) {
		return ErrInvalidRangeProof
	}

	return nil
}

func writeLengthPrefixed(w io.Writer, b []byte) error {
	if len(b) > 0xffff {
		return ErrShortProof
	}
	length := []byte{byte(len(b)), byte(len(b) >> 8)}
	if _, err := w.Write(length); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var length [2]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, ErrShortProof
	}
	n := int(length[0]) | int(length[1])<<8

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrShortProof
	}
	return buf, nil
}
