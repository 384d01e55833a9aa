package pixel

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// PixelKey is the public key obtained by tweaking a base key with a pixel:
// P' = P + H(pixel || P)·G. Every YUV output that is meant to be spendable
// must use a PixelKey, never the bare base key, as its scriptPubKey's
// witness program key. This is what binds a token to a particular UTXO.
type PixelKey struct {
	Pixel Pixel
	Key   *btcec.PublicKey
}

// NewPixelKey tweaks innerKey by pixel and returns the resulting PixelKey.
func NewPixelKey(p Pixel, innerKey *btcec.PublicKey) (*PixelKey, error) {
	tweaked, err := tweakPubKey(innerKey, tweakScalar(p, innerKey))
	if err != nil {
		return nil, err
	}

	return &PixelKey{Pixel: p, Key: tweaked}, nil
}

// tweakScalar computes H(pixel || P), the scalar added to the base point.
// The hash is domain-separated so this tweak can never collide with an
// unrelated use of sha256(pubkey).
func tweakScalar(p Pixel, innerKey *btcec.PublicKey) []byte {
	h := sha256.New()
	h.Write([]byte("yuv/pixel-key-tweak"))
	pixelBytes := p.Bytes()
	h.Write(pixelBytes[:])
	h.Write(innerKey.SerializeCompressed())
	return h.Sum(nil)
}

// tweakPubKey returns base + scalar*G as a new public key.
func tweakPubKey(base *btcec.PublicKey, scalar []byte) (*btcec.PublicKey, error) {
	var tweak btcec.ModNScalar
	tweak.SetByteSlice(scalar)

	var tweakPoint btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&tweak, &tweakPoint)

	var baseJ btcec.JacobianPoint
	base.AsJacobian(&baseJ)

	var sumJ btcec.JacobianPoint
	btcec.AddNonConst(&baseJ, &tweakPoint, &sumJ)

	if (sumJ.X.IsZero() && sumJ.Y.IsZero()) || sumJ.Z.IsZero() {
		return nil, ErrTweakProducesIdentity
	}

	sumJ.ToAffine()
	return btcec.NewPublicKey(&sumJ.X, &sumJ.Y), nil
}

// ToP2WPKH returns the P2WPKH scriptPubKey for the tweaked key, or nil if
// the key cannot be represented as a compressed pubkey hash program.
func (k *PixelKey) ToP2WPKH(params *chaincfg.Params) ([]byte, error) {
	pkHash := btcutil.Hash160(k.Key.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// ToV0P2WSH wraps the supplied redeem script in a P2WSH scriptPubKey.
func ToV0P2WSH(redeemScript []byte, params *chaincfg.Params) ([]byte, error) {
	scriptHash := sha256.Sum256(redeemScript)
	addr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
