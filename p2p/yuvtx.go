package p2p

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
	"github.com/yuvprotocol/yuvd/txcheck"
)

// maxTxsPerMessage bounds how many transactions a single YuvTxMsg may carry.
const maxTxsPerMessage = 1000

// YuvTxMsg carries full transactions, sent in response to a GetData. Each
// transaction is
// `<bitcoin_tx bytes> || <tx_type bytes>`, where tx_type is the kind
// discriminant plus the length-prefixed proof/announcement codec from the
// txcheck package.
type YuvTxMsg struct {
	Txs []*txcheck.YuvTransaction
}

var _ wire.Message = (*YuvTxMsg)(nil)

func (m *YuvTxMsg) BtcEncode(w io.Writer, _ uint32, _ wire.MessageEncoding) error {
	if len(m.Txs) > maxTxsPerMessage {
		return fmt.Errorf("yuvtx message of %d txs exceeds maximum of %d",
			len(m.Txs), maxTxsPerMessage)
	}

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(m.Txs)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	for _, tx := range m.Txs {
		if err := txcheck.EncodeYuvTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *YuvTxMsg) BtcDecode(r io.Reader, _ uint32, _ wire.MessageEncoding) error {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	if count > maxTxsPerMessage {
		return fmt.Errorf("announced tx count %d exceeds maximum of %d",
			count, maxTxsPerMessage)
	}

	txs := make([]*txcheck.YuvTransaction, count)
	for i := range txs {
		tx, err := txcheck.DecodeYuvTransaction(r)
		if err != nil {
			return err
		}
		txs[i] = tx
	}
	m.Txs = txs
	return nil
}

func (m *YuvTxMsg) Command() string { return CmdYuvTx }

func (m *YuvTxMsg) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
