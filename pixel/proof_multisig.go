package pixel

import (
	"bytes"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// MultisigPixelProof proves ownership of a P2WSH m-of-n multisignature
// output whose first (lexicographically smallest) inner key has been
// tweaked by the pixel.
type MultisigPixelProof struct {
	PixelValue Pixel
	InnerKeys  []*btcec.PublicKey
	M          uint8
}

// NewMultisigPixelProof builds a proof from the participant keys, sorting
// them lexicographically by compressed serialization as required to derive
// a deterministic redeem script.
func NewMultisigPixelProof(p Pixel, innerKeys []*btcec.PublicKey, m uint8) *MultisigPixelProof {
	sorted := make([]*btcec.PublicKey, len(innerKeys))
	copy(sorted, innerKeys)
	sortKeys(sorted)

	return &MultisigPixelProof{PixelValue: p, InnerKeys: sorted, M: m}
}

func sortKeys(keys []*btcec.PublicKey) {
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].SerializeCompressed(), keys[j].SerializeCompressed()) < 0
	})
}

func (m *MultisigPixelProof) Type() ProofType { return ProofTypeMultisig }
func (m *MultisigPixelProof) Pixel() Pixel    { return m.PixelValue }

func (m *MultisigPixelProof) Encode(w io.Writer) error {
	if err := writePixel(w, m.PixelValue); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(len(m.InnerKeys))}); err != nil {
		return err
	}
	for _, k := range m.InnerKeys {
		if err := writePubKey(w, k); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte{m.M})
	return err
}

func decodeMultisigProof(r io.Reader) (Proof, error) {
	p, err := readPixel(r)
	if err != nil {
		return nil, err
	}

	var n [1]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, ErrShortProof
	}

	keys := make([]*btcec.PublicKey, n[0])
	for i := range keys {
		key, err := readPubKey(r)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, ErrShortProof
	}

	return &MultisigPixelProof{PixelValue: p, InnerKeys: keys, M: m[0]}, nil
}

// redeemScript tweaks the first (sorted) key by the pixel and builds the
// m-of-n CHECKMULTISIG redeem script from it and the remaining keys.
func (m *MultisigPixelProof) redeemScript() ([]byte, error) {
	if len(m.InnerKeys) == 0 {
		return nil, ErrNoInnerKeys
	}

	keys := make([]*btcec.PublicKey, len(m.InnerKeys))
	copy(keys, m.InnerKeys)
	sortKeys(keys)

	pixelKey, err := NewPixelKey(m.PixelValue, keys[0])
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(byte(txscript.OP_1 + int(m.M) - 1))
	builder.AddData(pixelKey.Key.SerializeCompressed())
	for _, k := range keys[1:] {
		builder.AddData(k.SerializeCompressed())
	}
	builder.AddOp(byte(txscript.OP_1 + len(keys) - 1))
	builder.AddOp(txscript.OP_CHECKMULTISIG)

	return builder.Script()
}

func (m *MultisigPixelProof) CheckByOutput(txout *wire.TxOut, params *chaincfg.Params) error {
	redeem, err := m.redeemScript()
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

func (m *MultisigPixelProof) CheckByInput(txin *wire.TxIn) error {
	// The first sorted key is the tweaked one; if it is the burn point the
	// output was burnt and must never be spent.
	if len(m.InnerKeys) > 0 {
		keys := make([]*btcec.PublicKey, len(m.InnerKeys))
		copy(keys, m.InnerKeys)
		sortKeys(keys)
		if IsBurnKey(keys[0]) {
			return ErrBurntInput
		}
	}

	// Witness layout: OP_0, sig_1 .. sig_M, redeem_script.
	if len(txin.Witness) != int(m.M)+2 {
		return ErrWitnessStructure
	}

	if len(txin.Witness[0]) != 0 {
		return ErrWitnessStructure
	}

	for _, sig := range txin.Witness[1 : 1+m.M] {
		if err := verifyECDSASignatureFormat(sig); err != nil {
			return ErrInvalidNumberOfSignatures
		}
	}

	witnessRedeem := txin.Witness[len(txin.Witness)-1]

	expectedRedeem, err := m.redeemScript()
	if err != nil {
		return err
	}

	if !bytes.Equal(witnessRedeem, expectedRedeem) {
		return ErrInvalidRedeemScript
	}

	return nil
}
