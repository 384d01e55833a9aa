package pixel

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// HtlcKind distinguishes an offered HTLC (paid by the local party) from a
// received HTLC (paid to the local party); the two differ in which key is
// tweaked by the pixel in the reconstructed script.
type HtlcKind uint8

const (
	HtlcOffered  HtlcKind = 0
	HtlcReceived HtlcKind = 1
)

// LightningHtlcProof proves ownership of a Lightning HTLC output at
// force-close time.
type LightningHtlcProof struct {
	PixelValue        Pixel
	RevocationKeyHash [20]byte
	RemoteHtlcKey     *btcec.PublicKey
	LocalHtlcKey      *btcec.PublicKey
	PaymentHash       [32]byte
	Kind              HtlcKind
}

func NewLightningHtlcProof(p Pixel, revocationKeyHash [20]byte, remoteKey, localKey *btcec.PublicKey, paymentHash [32]byte, kind HtlcKind) *LightningHtlcProof {
	return &LightningHtlcProof{
		PixelValue:        p,
		RevocationKeyHash: revocationKeyHash,
		RemoteHtlcKey:     remoteKey,
		LocalHtlcKey:      localKey,
		PaymentHash:       paymentHash,
		Kind:              kind,
	}
}

func (h *LightningHtlcProof) Type() ProofType { return ProofTypeLightningHtlc }
func (h *LightningHtlcProof) Pixel() Pixel    { return h.PixelValue }

func (h *LightningHtlcProof) Encode(w io.Writer) error {
	if err := writePixel(w, h.PixelValue); err != nil {
		return err
	}
	if _, err := w.Write(h.RevocationKeyHash[:]); err != nil {
		return err
	}
	if err := writePubKey(w, h.RemoteHtlcKey); err != nil {
		return err
	}
	if err := writePubKey(w, h.LocalHtlcKey); err != nil {
		return err
	}
	if _, err := w.Write(h.PaymentHash[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte{byte(h.Kind)})
	return err
}

func decodeLightningHtlcProof(r io.Reader) (Proof, error) {
	p, err := readPixel(r)
	if err != nil {
		return nil, err
	}

	var revocationHash [20]byte
	if _, err := io.ReadFull(r, revocationHash[:]); err != nil {
		return nil, ErrShortProof
	}

	remoteKey, err := readPubKey(r)
	if err != nil {
		return nil, err
	}
	localKey, err := readPubKey(r)
	if err != nil {
		return nil, err
	}

	var paymentHash [32]byte
	if _, err := io.ReadFull(r, paymentHash[:]); err != nil {
		return nil, ErrShortProof
	}

	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return nil, ErrShortProof
	}

	return &LightningHtlcProof{
		PixelValue:        p,
		RevocationKeyHash: revocationHash,
		RemoteHtlcKey:     remoteKey,
		LocalHtlcKey:      localKey,
		PaymentHash:       paymentHash,
		Kind:              HtlcKind(kind[0]),
	}, nil
}

// redeemScript reconstructs the HTLC script, tweaking whichever key is
// authorized to claim the given kind of HTLC by the pixel: the local key for
// an offered HTLC (local party reclaims on timeout) and the remote key for a
// received HTLC (remote party redeems with the preimage).
func (h *LightningHtlcProof) redeemScript() ([]byte, error) {
	var tweakTarget, other *btcec.PublicKey
	if h.Kind == HtlcOffered {
		tweakTarget, other = h.LocalHtlcKey, h.RemoteHtlcKey
	} else {
		tweakTarget, other = h.RemoteHtlcKey, h.LocalHtlcKey
	}

	tweaked, err := NewPixelKey(h.PixelValue, tweakTarget)
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(h.RevocationKeyHash[:])
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddData(other.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(h.PaymentHash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(tweaked.Key.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

func (h *LightningHtlcProof) CheckByOutput(txout *wire.TxOut, params *chaincfg.Params) error {
	redeem, err := h.redeemScript()
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

func (h *LightningHtlcProof) CheckByInput(txin *wire.TxIn) error {
	// Whichever key is tweaked for this HTLC kind is the one the burn
	// point can appear in.
	tweakTarget := h.LocalHtlcKey
	if h.Kind == HtlcReceived {
		tweakTarget = h.RemoteHtlcKey
	}
	if IsBurnKey(tweakTarget) {
		return ErrBurntInput
	}

	if len(txin.Witness) < 2 {
		return ErrWitnessStructure
	}

	redeem := txin.Witness[len(txin.Witness)-1]
	expected, err := h.redeemScript()
	if err != nil {
		return err
	}

	if !bytes.Equal(redeem, expected) {
		return ErrScriptMismatch
	}

	return nil
}
