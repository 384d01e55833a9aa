package txcheck

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
)

// CheckIsolated validates a transaction using only information carried by
// the transaction itself: proof shapes, witness/script matches, and (for
// Issue transactions) the relationship between the attached proofs and the
// transaction's own Issue announcement output. It never touches storage,
// so the same transaction always produces the same verdict here regardless
// of what the node has seen before.
func CheckIsolated(tx *YuvTransaction, params *chaincfg.Params) error {
	switch tx.Kind {
	case TxKindIssue:
		return checkIssueIsolated(tx, params)
	case TxKindTransfer:
		return checkTransferIsolated(tx, params)
	case TxKindAnnouncement:
		// Announcement-only transactions carry no pixel proofs to
		// verify here; whether the announcement itself is acceptable
		// depends on chroma/freeze state and is deferred to the
		// contextual checker.
		return nil
	default:
		return ErrNotEnoughProofs
	}
}

func checkIssueIsolated(tx *YuvTransaction, params *chaincfg.Params) error {
	announcedAmount, err := findIssueAnnouncement(tx.BitcoinTx, tx.IssueAnnouncement)
	if err != nil {
		return err
	}

	if err := checkNumberOfProofs(tx.BitcoinTx, tx.OutputProofs); err != nil {
		return err
	}

	if err := checkSameChromaProofs(tx.OutputProofs, tx.IssueAnnouncement); err != nil {
		return err
	}

	for vout, proof := range tx.OutputProofs {
		if int(vout) >= len(tx.BitcoinTx.TxOut) {
			return ErrProofMappedToMissingIO
		}
		out := tx.BitcoinTx.TxOut[vout]

		if txscript.GetScriptClass(out.PkScript) == txscript.NullDataTy {
			continue
		}

		if err := proof.CheckByOutput(out, params); err != nil {
			return ErrInvalidProof
		}
	}

	if isConfidential(tx.OutputProofs) {
		return nil
	}

	var total pixel.Luma
	for _, proof := range tx.OutputProofs {
		total = total.Add(proof.Pixel().Luma)
	}

	if total.Cmp(announcedAmount) != 0 {
		return ErrAnnouncedAmountMismatch
	}

	return nil
}

func findIssueAnnouncement(tx *wire.MsgTx, provided *announcement.IssueAnnouncement) (pixel.Luma, error) {
	for _, out := range tx.TxOut {
		found, err := announcement.FromScript(out.PkScript)
		if err != nil {
			continue
		}

		issueAnn, ok := found.(*announcement.IssueAnnouncement)
		if !ok {
			continue
		}

		if issueAnn.Chroma != provided.Chroma || issueAnn.Amount != provided.Amount {
			return pixel.Luma{}, ErrIssueAnnouncementMismatch
		}

		return issueAnn.Amount, nil
	}

	return pixel.Luma{}, ErrIssueAnnouncementMissing
}

func checkTransferIsolated(tx *YuvTransaction, params *chaincfg.Params) error {
	if err := checkNumberOfProofs(tx.BitcoinTx, tx.OutputProofs); err != nil {
		return err
	}

	for vin, proof := range tx.InputProofs {
		if int(vin) >= len(tx.BitcoinTx.TxIn) {
			return ErrProofMappedToMissingIO
		}

		in := tx.BitcoinTx.TxIn[vin]
		if err := proof.CheckByInput(in); err != nil {
			if err == pixel.ErrBurntInput {
				return ErrBurntTokensSpending
			}
			return ErrInvalidProof
		}
	}

	for vout, proof := range tx.OutputProofs {
		if int(vout) >= len(tx.BitcoinTx.TxOut) {
			return ErrProofMappedToMissingIO
		}

		out := tx.BitcoinTx.TxOut[vout]
		if err := proof.CheckByOutput(out, params); err != nil {
			return ErrInvalidProof
		}
	}

	if isConfidential(tx.InputProofs) || isConfidential(tx.OutputProofs) {
		return checkBulletproofConservation(tx.InputProofs, tx.OutputProofs)
	}

	return checkConservationRules(tx.InputProofs, tx.OutputProofs)
}

func checkNumberOfProofs(tx *wire.MsgTx, outputs ProofMap) error {
	tokenizable := 0
	for _, out := range tx.TxOut {
		if txscript.GetScriptClass(out.PkScript) != txscript.NullDataTy {
			tokenizable++
		}
	}

	if tokenizable != len(outputs) {
		return ErrNotEnoughProofs
	}
	return nil
}

func checkSameChromaProofs(outputs ProofMap, ann *announcement.IssueAnnouncement) error {
	var first *pixel.Pixel
	for _, proof := range outputs {
		p := proof.Pixel()
		if p.IsEmpty() {
			continue
		}

		if first == nil {
			first = &p
			if first.Chroma != ann.Chroma {
				return ErrIssueAnnouncementMismatch
			}
			continue
		}

		if p.Chroma != first.Chroma {
			return ErrNotSameChroma
		}
	}
	return nil
}

func checkConservationRules(inputs, outputs ProofMap) error {
	in := sumByChroma(inputs)
	out := sumByChroma(outputs)

	if len(in) != len(out) {
		return ErrConservationRulesViolated
	}
	for chroma, amount := range in {
		other, ok := out[chroma]
		if !ok || amount.Cmp(other) != 0 {
			return ErrConservationRulesViolated
		}
	}
	return nil
}

func sumByChroma(proofs ProofMap) map[pixel.Chroma]pixel.Luma {
	sums := make(map[pixel.Chroma]pixel.Luma)
	for _, proof := range proofs {
		p := proof.Pixel()
		if p.IsEmpty() || p.Luma.IsZero() {
			continue
		}
		sums[p.Chroma] = sums[p.Chroma].Add(p.Luma)
	}
	return sums
}

// isConfidential reports whether any proof in the map is a Bulletproof
// proof, in which case amount conservation is checked by the range-proof
// oracle rather than by summing plaintext lumas.
func isConfidential(proofs ProofMap) bool {
	for _, proof := range proofs {
		if proof.Type() == pixel.ProofTypeBulletproof {
			return true
		}
	}
	return false
}
