// Package p2p defines the wire messages nodes exchange to announce and
// request pending transactions, and the envelope used to frame them over a
// Bitcoin P2P connection once both peers have advertised YUV support.
package p2p

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// MaxMessagePayload is the maximum byte size of a single message's payload,
// regardless of any smaller limit a particular message type imposes.
const MaxMessagePayload = 4 << 20 // 4MB, batches of transactions can be large

// Command strings for the three YUV-specific messages. Kept under
// wire.CommandSize (12 bytes), same constraint as Bitcoin's own commands,
// and distinct from them so a peer that hasn't advertised YUV support simply
// never sees them.
const (
	CmdInv     = "yinv"
	CmdGetData = "ygetdata"
	CmdYuvTx   = "yuvtx"
)

func makeEmptyMessage(command string) (wire.Message, error) {
	switch command {
	case CmdInv:
		return &Inv{}, nil
	case CmdGetData:
		return &GetData{}, nil
	case CmdYuvTx:
		return &YuvTxMsg{}, nil
	case CmdYtxidRelay:
		return &YtxidRelay{}, nil
	case CmdYtxidAck:
		return &YtxidAck{}, nil
	default:
		return nil, fmt.Errorf("unknown yuv p2p command %q", command)
	}
}

// WriteMessage frames msg with its command and payload length and writes it
// to w. wire's own ReadMessageN/WriteMessageN only dispatch btcd's built-in
// command set, so YUV messages are framed with this package's own envelope
// and exchanged out of band from vanilla Bitcoin P2P traffic, after the
// ytxidrelay/ytxidack handshake has confirmed both ends understand it.
func WriteMessage(w io.Writer, msg wire.Message, pver uint32) (int, error) {
	var buf bytes.Buffer
	if err := msg.BtcEncode(&buf, pver, wire.WitnessEncoding); err != nil {
		return 0, err
	}
	payload := buf.Bytes()

	if uint32(len(payload)) > MaxMessagePayload {
		return 0, fmt.Errorf("message payload of %d bytes exceeds maximum of %d",
			len(payload), MaxMessagePayload)
	}
	if mpl := msg.MaxPayloadLength(pver); uint32(len(payload)) > mpl {
		return 0, fmt.Errorf("message payload of %d bytes exceeds %s's max of %d",
			len(payload), msg.Command(), mpl)
	}

	var cmdBuf [wire.CommandSize]byte
	copy(cmdBuf[:], msg.Command())

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	n, err := w.Write(cmdBuf[:])
	if err != nil {
		return n, err
	}
	m, err := w.Write(lenBuf[:])
	n += m
	if err != nil {
		return n, err
	}
	m, err = w.Write(payload)
	return n + m, err
}

// ReadMessage reads and decodes the next YUV message from r.
func ReadMessage(r io.Reader, pver uint32) (wire.Message, error) {
	var cmdBuf [wire.CommandSize]byte
	if _, err := io.ReadFull(r, cmdBuf[:]); err != nil {
		return nil, err
	}
	command := string(bytes.TrimRight(cmdBuf[:], "\x00"))

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxMessagePayload {
		return nil, fmt.Errorf("announced payload of %d bytes exceeds maximum of %d",
			length, MaxMessagePayload)
	}

	msg, err := makeEmptyMessage(command)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if err := msg.BtcDecode(bytes.NewReader(payload), pver, wire.WitnessEncoding); err != nil {
		return nil, err
	}

	return msg, nil
}
