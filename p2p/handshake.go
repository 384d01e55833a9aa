package p2p

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// Commands for the YUV capability handshake. Each side sends ytxidrelay as
// its first message; a peer that understands it answers ytxidack. Only
// after both are exchanged does a connection carry YUV traffic — a vanilla
// Bitcoin peer that never answers simply never receives any.
const (
	CmdYtxidRelay = "ytxidrelay"
	CmdYtxidAck   = "ytxidack"
)

// YtxidRelay advertises that the sender relays YUV transactions.
type YtxidRelay struct{}

var _ wire.Message = (*YtxidRelay)(nil)

func (m *YtxidRelay) BtcEncode(io.Writer, uint32, wire.MessageEncoding) error { return nil }
func (m *YtxidRelay) BtcDecode(io.Reader, uint32, wire.MessageEncoding) error { return nil }
func (m *YtxidRelay) Command() string                                         { return CmdYtxidRelay }
func (m *YtxidRelay) MaxPayloadLength(uint32) uint32                          { return 0 }

// YtxidAck acknowledges a peer's YtxidRelay.
type YtxidAck struct{}

var _ wire.Message = (*YtxidAck)(nil)

func (m *YtxidAck) BtcEncode(io.Writer, uint32, wire.MessageEncoding) error { return nil }
func (m *YtxidAck) BtcDecode(io.Reader, uint32, wire.MessageEncoding) error { return nil }
func (m *YtxidAck) Command() string                                         { return CmdYtxidAck }
func (m *YtxidAck) MaxPayloadLength(uint32) uint32                          { return 0 }
