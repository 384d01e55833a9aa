package p2p

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// Inv announces the transactions the sender has available, inviting the
// receiver to request whichever ones it is missing with GetData.
type Inv struct {
	Items []Inventory
}

var _ wire.Message = (*Inv)(nil)

func (m *Inv) BtcEncode(w io.Writer, _ uint32, _ wire.MessageEncoding) error {
	return writeInventoryList(w, m.Items)
}

func (m *Inv) BtcDecode(r io.Reader, _ uint32, _ wire.MessageEncoding) error {
	items, err := readInventoryList(r)
	if err != nil {
		return err
	}
	m.Items = items
	return nil
}

func (m *Inv) Command() string { return CmdInv }

func (m *Inv) MaxPayloadLength(uint32) uint32 {
	return 4 + maxInvItems*32
}
