package txcheck

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
)

const maxProofsPerTx = 1 << 16

// EncodeYuvTransaction serializes tx onto w: the underlying Bitcoin
// transaction, its kind, its input/output proof maps, and whichever
// announcement payload it carries.
func EncodeYuvTransaction(w io.Writer, tx *YuvTransaction) error {
	var txBuf bytes.Buffer
	if err := tx.BitcoinTx.Serialize(&txBuf); err != nil {
		return err
	}
	if err := writeBytes(w, txBuf.Bytes()); err != nil {
		return err
	}

	if _, err := w.Write([]byte{byte(tx.Kind)}); err != nil {
		return err
	}

	if err := writeProofMap(w, tx.InputProofs); err != nil {
		return err
	}
	if err := writeProofMap(w, tx.OutputProofs); err != nil {
		return err
	}

	var issueAnn announcement.Announcement
	if tx.IssueAnnouncement != nil {
		issueAnn = tx.IssueAnnouncement
	}
	if err := writeOptionalAnnouncement(w, issueAnn); err != nil {
		return err
	}
	return writeOptionalAnnouncement(w, tx.Announcement)
}

// DecodeYuvTransaction parses a YuvTransaction previously written by
// EncodeYuvTransaction.
func DecodeYuvTransaction(r io.Reader) (*YuvTransaction, error) {
	rawTx, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	msgTx := wire.NewMsgTx(wire.TxVersion)
	if err := msgTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, err
	}

	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, err
	}

	inputProofs, err := readProofMap(r)
	if err != nil {
		return nil, err
	}
	outputProofs, err := readProofMap(r)
	if err != nil {
		return nil, err
	}

	issueAnn, err := readOptionalAnnouncement(r)
	if err != nil {
		return nil, err
	}
	ann, err := readOptionalAnnouncement(r)
	if err != nil {
		return nil, err
	}

	yuvTx := &YuvTransaction{
		BitcoinTx:    msgTx,
		Kind:         TxKind(kindByte[0]),
		InputProofs:  inputProofs,
		OutputProofs: outputProofs,
	}
	if issueAnn != nil {
		issue, ok := issueAnn.(*announcement.IssueAnnouncement)
		if !ok {
			return nil, fmt.Errorf("expected issue announcement, got %T", issueAnn)
		}
		yuvTx.IssueAnnouncement = issue
	}
	yuvTx.Announcement = ann

	return yuvTx, nil
}

func writeProofMap(w io.Writer, proofs ProofMap) error {
	if len(proofs) > maxProofsPerTx {
		return fmt.Errorf("proof map of %d entries exceeds maximum of %d",
			len(proofs), maxProofsPerTx)
	}

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(proofs)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	for idx, proof := range proofs {
		var idxBuf [4]byte
		binary.BigEndian.PutUint32(idxBuf[:], idx)
		if _, err := w.Write(idxBuf[:]); err != nil {
			return err
		}

		var proofBuf bytes.Buffer
		if err := proof.Encode(&proofBuf); err != nil {
			return err
		}
		if err := writeBytes(w, proofBuf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func readProofMap(r io.Reader) (ProofMap, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	if count > maxProofsPerTx {
		return nil, fmt.Errorf("announced proof count %d exceeds maximum of %d",
			count, maxProofsPerTx)
	}

	proofs := make(ProofMap, count)
	for i := uint32(0); i < count; i++ {
		var idxBuf [4]byte
		if _, err := io.ReadFull(r, idxBuf[:]); err != nil {
			return nil, err
		}
		idx := binary.BigEndian.Uint32(idxBuf[:])

		raw, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		proof, err := pixel.DecodeProof(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		proofs[idx] = proof
	}
	return proofs, nil
}

func writeOptionalAnnouncement(w io.Writer, a announcement.Announcement) error {
	if a == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	return writeBytes(w, announcement.Bytes(a))
}

func readOptionalAnnouncement(r io.Reader) (announcement.Announcement, error) {
	var present [1]byte
	if _, err := io.ReadFull(r, present[:]); err != nil {
		return nil, err
	}
	if present[0] == 0 {
		return nil, nil
	}

	raw, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return announcement.FromBytes(raw)
}

func writeBytes(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxMessagePayload {
		return nil, fmt.Errorf("announced length %d exceeds maximum of %d", length, maxMessagePayload)
	}

	data := make([]byte, length)
	_, err := io.ReadFull(r, data)
	return data, err
}

const maxMessagePayload = 16 << 20
