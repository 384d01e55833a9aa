package pixel

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// LightningCommitmentProof proves ownership of a `to_local` output of a
// Lightning commitment transaction: the revocation key, the first key in
// the script, is always the pixel-tweaked one.
type LightningCommitmentProof struct {
	PixelValue         Pixel
	RevocationPubkey   *btcec.PublicKey
	ToSelfDelay        uint16
	LocalDelayedPubkey *btcec.PublicKey
}

func NewLightningCommitmentProof(p Pixel, revocation *btcec.PublicKey, toSelfDelay uint16, localDelayed *btcec.PublicKey) *LightningCommitmentProof {
	return &LightningCommitmentProof{
		PixelValue:         p,
		RevocationPubkey:   revocation,
		ToSelfDelay:        toSelfDelay,
		LocalDelayedPubkey: localDelayed,
	}
}

func (l *LightningCommitmentProof) Type() ProofType { return ProofTypeLightningCommitment }
func (l *LightningCommitmentProof) Pixel() Pixel    { return l.PixelValue }

func (l *LightningCommitmentProof) Encode(w io.Writer) error {
	if err := writePixel(w, l.PixelValue); err != nil {
		return err
	}
	if err := writePubKey(w, l.RevocationPubkey); err != nil {
		return err
	}
	var delay [2]byte
	delay[0] = byte(l.ToSelfDelay)
	delay[1] = byte(l.ToSelfDelay >> 8)
	if _, err := w.Write(delay[:]); err != nil {
		return err
	}
	return writePubKey(w, l.LocalDelayedPubkey)
}

func decodeLightningCommitmentProof(r io.Reader) (Proof, error) {
	p, err := readPixel(r)
	if err != nil {
		return nil, err
	}
	revocation, err := readPubKey(r)
	if err != nil {
		return nil, err
	}
	var delay [2]byte
	if _, err := io.ReadFull(r, delay[:]); err != nil {
		return nil, ErrShortProof
	}
	localDelayed, err := readPubKey(r)
	if err != nil {
		return nil, err
	}
	return &LightningCommitmentProof{
		PixelValue:         p,
		RevocationPubkey:   revocation,
		ToSelfDelay:        uint16(delay[0]) | uint16(delay[1])<<8,
		LocalDelayedPubkey: localDelayed,
	}, nil
}

// redeemScript reconstructs the `to_local` witness script, tweaking the
// revocation key by the pixel.
func (l *LightningCommitmentProof) redeemScript() ([]byte, error) {
	tweakedRevocation, err := NewPixelKey(l.PixelValue, l.RevocationPubkey)
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_IF)
	builder.AddData(tweakedRevocation.Key.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddData(l.LocalDelayedPubkey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddInt64(int64(l.ToSelfDelay))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

func (l *LightningCommitmentProof) CheckByOutput(txout *wire.TxOut, params *chaincfg.Params) error {
	redeem, err := l.redeemScript()
	if err != nil {
		return err
	}

	expected, err := ToV0P2WSH(redeem, params)
	if err != nil {
		return err
	}

	if !bytes.Equal(txout.PkScript, expected) {
		return ErrScriptMismatch
	}

	return nil
}

func (l *LightningCommitmentProof) CheckByInput(txin *wire.TxIn) error {
	// The revocation key is the tweaked one; the burn point marks the
	// output as burnt.
	if IsBurnKey(l.RevocationPubkey) {
		return ErrBurntInput
	}

	// Witness layout: [sig, is_revocation_flag, redeem_script].
	if len(txin.Witness) != 3 {
		return ErrWitnessStructure
	}

	if err := verifyECDSASignatureFormat(txin.Witness[0]); err != nil {
		return err
	}

	redeem, err := l.redeemScript()
	if err != nil {
		return err
	}

	if !bytes.Equal(txin.Witness[2], redeem) {
		return ErrScriptMismatch
	}

	return nil
}
