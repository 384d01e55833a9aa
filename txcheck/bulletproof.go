package txcheck

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/yuvprotocol/yuvd/pixel"
)

// checkBulletproofConservation verifies amount conservation for a
// confidential transfer. A transaction that mixes confidential and
// explicit-amount proofs is rejected outright. Conservation itself is the
// homomorphic identity over the Pedersen commitments: the sender proves
// knowledge of the blinding difference of
//
//	D = sum(input commitments) - sum(output commitments)
//
// by signing a deterministic message under D, once for the whole
// transaction and once per chroma. The commitments stay opaque byte strings
// everywhere else; only here are they interpreted as curve points.
func checkBulletproofConservation(inputs, outputs ProofMap) error {
	inProofs, err := sortedBulletproofs(inputs)
	if err != nil {
		return err
	}
	outProofs, err := sortedBulletproofs(outputs)
	if err != nil {
		return err
	}
	if len(inProofs) == 0 {
		return ErrConservationRulesViolated
	}

	// Whole-transaction identity, signed by the first input's general
	// signature.
	diff, err := commitmentDiff(inProofs, outProofs)
	if err != nil {
		return err
	}

	msg := conservationMessage(append(lumasOf(inProofs), lumasOf(outProofs)...))
	if !inProofs[0].Signature.Verify(msg, diff) {
		return ErrBulletproofConservation
	}

	// Per-chroma identity, signed by that chroma's first input proof.
	for _, chroma := range chromasOf(inProofs, outProofs) {
		chromaIn := filterByChroma(inProofs, chroma)
		chromaOut := filterByChroma(outProofs, chroma)

		if len(chromaIn) == 0 {
			return ErrConservationRulesViolated
		}

		chromaDiff, err := commitmentDiff(chromaIn, chromaOut)
		if err != nil {
			return err
		}

		chromaMsg := conservationMessage(append(lumasOf(chromaIn), lumasOf(chromaOut)...))
		if !chromaIn[0].ChromaSignature.Verify(chromaMsg, chromaDiff) {
			return ErrBulletproofConservation
		}
	}

	return nil
}

// sortedBulletproofs returns the map's proofs in index order, failing if
// any proof is not a Bulletproof.
func sortedBulletproofs(proofs ProofMap) ([]*pixel.BulletproofProof, error) {
	indices := make([]uint32, 0, len(proofs))
	for idx := range proofs {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]*pixel.BulletproofProof, 0, len(proofs))
	for _, idx := range indices {
		bp, ok := proofs[idx].(*pixel.BulletproofProof)
		if !ok {
			return nil, ErrMixedConfidentialProofs
		}
		out = append(out, bp)
	}
	return out, nil
}

// commitmentDiff computes sum(ins) - sum(outs) over the commitment points.
func commitmentDiff(ins, outs []*pixel.BulletproofProof) (*btcec.PublicKey, error) {
	var acc btcec.JacobianPoint

	add := func(commitment []byte, negate bool) error {
		pub, err := btcec.ParsePubKey(commitment)
		if err != nil {
			return ErrBulletproofConservation
		}

		var point btcec.JacobianPoint
		pub.AsJacobian(&point)
		if negate {
			point.Y.Negate(1)
			point.Y.Normalize()
		}
		btcec.AddNonConst(&acc, &point, &acc)
		return nil
	}

	for _, p := range ins {
		if err := add(p.Commitment, false); err != nil {
			return nil, err
		}
	}
	for _, p := range outs {
		if err := add(p.Commitment, true); err != nil {
			return nil, err
		}
	}

	// The identity point means the blinding factors cancelled exactly;
	// no signature can exist under it.
	if (acc.X.IsZero() && acc.Y.IsZero()) || acc.Z.IsZero() {
		return nil, ErrBulletproofConservation
	}

	acc.ToAffine()
	return btcec.NewPublicKey(&acc.X, &acc.Y), nil
}

// conservationMessage hashes the lexicographically sorted luma values into
// the deterministic message both conservation signatures commit to.
func conservationMessage(lumas []pixel.Luma) []byte {
	sort.Slice(lumas, func(i, j int) bool {
		return bytes.Compare(lumas[i][:], lumas[j][:]) < 0
	})

	h := sha256.New()
	for _, luma := range lumas {
		h.Write(luma[:])
	}
	return h.Sum(nil)
}

func lumasOf(proofs []*pixel.BulletproofProof) []pixel.Luma {
	out := make([]pixel.Luma, len(proofs))
	for i, p := range proofs {
		out[i] = p.PixelValue.Luma
	}
	return out
}

// chromasOf returns every chroma present in either side, in first-seen
// order across inputs then outputs.
func chromasOf(ins, outs []*pixel.BulletproofProof) []pixel.Chroma {
	seen := make(map[pixel.Chroma]struct{})
	var out []pixel.Chroma

	for _, p := range append(append([]*pixel.BulletproofProof{}, ins...), outs...) {
		chroma := p.PixelValue.Chroma
		if _, ok := seen[chroma]; ok {
			continue
		}
		seen[chroma] = struct{}{}
		out = append(out, chroma)
	}
	return out
}

func filterByChroma(proofs []*pixel.BulletproofProof, chroma pixel.Chroma) []*pixel.BulletproofProof {
	var out []*pixel.BulletproofProof
	for _, p := range proofs {
		if p.PixelValue.Chroma == chroma {
			out = append(out, p)
		}
	}
	return out
}
