package p2p

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/txcheck"
)

func roundTrip(t *testing.T, msg wire.Message) wire.Message {
	t.Helper()

	var buf bytes.Buffer
	_, err := WriteMessage(&buf, msg, 0)
	require.NoError(t, err)

	got, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	return got
}

func TestInvRoundTrip(t *testing.T) {
	msg := &Inv{Items: []Inventory{
		{Txid: chainhash.Hash{1, 2, 3}},
		{Txid: chainhash.Hash{4, 5, 6}},
	}}

	got := roundTrip(t, msg)
	require.Equal(t, msg, got)
	require.Equal(t, CmdInv, got.Command())
}

func TestGetDataRoundTrip(t *testing.T) {
	msg := &GetData{Items: []Inventory{{Txid: chainhash.Hash{9}}}}

	got := roundTrip(t, msg)
	require.Equal(t, msg, got)
}

func TestYuvTxMsgRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	chroma := pixel.ChromaFromPublicKey(priv.PubKey())

	ann, err := announcement.NewChromaAnnouncement(chroma, "Satoshi", "SAT", 8, big.NewInt(21_000_000), false)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 0})

	yuvTx := &txcheck.YuvTransaction{
		BitcoinTx:    tx,
		Kind:         txcheck.TxKindAnnouncement,
		Announcement: ann,
	}

	msg := &YuvTxMsg{Txs: []*txcheck.YuvTransaction{yuvTx}}

	got := roundTrip(t, msg)
	gotMsg, ok := got.(*YuvTxMsg)
	require.True(t, ok)
	require.Len(t, gotMsg.Txs, 1)
	require.Equal(t, yuvTx.Txid(), gotMsg.Txs[0].Txid())
	require.Equal(t, ann, gotMsg.Txs[0].Announcement)
}

func TestReadMessageRejectsUnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	var cmdBuf [wire.CommandSize]byte
	copy(cmdBuf[:], "bogus")
	buf.Write(cmdBuf[:])
	buf.Write([]byte{0, 0, 0, 0})

	_, err := ReadMessage(&buf, 0)
	require.Error(t, err)
}
