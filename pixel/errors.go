package pixel

import "errors"

// Sentinel errors returned by pixel parsing, key tweaking, and proof
// checking. Callers match on these with errors.Is; they are never wrapped
// with stack traces since they are expected, data-dependent outcomes rather
// than bugs.
var (
	ErrInvalidPixelLength = errors.New("pixel: invalid encoded length, want 48 bytes")

	ErrTweakProducesIdentity = errors.New("pixel: tweak produced the point at infinity")

	ErrUncompressedKey = errors.New("pixel: key does not have a compressed witness-program representation")

	ErrUnknownProofTag = errors.New("pixel: unknown proof type discriminant")

	ErrShortProof = errors.New("pixel: proof encoding is shorter than required")

	ErrWitnessStructure = errors.New("pixel: witness does not have the expected number of elements")

	ErrInvalidWitnessPublicKey = errors.New("pixel: public key revealed in witness does not match the tweaked proof key")

	ErrScriptMismatch = errors.New("pixel: reconstructed script does not match the transaction output/witness")

	ErrInvalidNumberOfSignatures = errors.New("pixel: multisig witness carries the wrong number of signatures")

	ErrInvalidRedeemScript = errors.New("pixel: multisig redeem script does not match the proof's keys")

	ErrNoInnerKeys = errors.New("pixel: multisig proof has no inner keys")

	ErrLumaMismatch = errors.New("pixel: luma does not match the bulletproof commitment and range proof")

	ErrInvalidRangeProof = errors.New("pixel: bulletproof range proof failed verification")

	ErrBurntInput = errors.New("pixel: input spends a burnt output, which must never be used as a Transfer input")
)
