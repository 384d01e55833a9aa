package p2p

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// GetData requests the full transactions for the listed inventory items,
// sent in response to an Inv that announced ids this node doesn't have yet.
type GetData struct {
	Items []Inventory
}

var _ wire.Message = (*GetData)(nil)

func (m *GetData) BtcEncode(w io.Writer, _ uint32, _ wire.MessageEncoding) error {
	return writeInventoryList(w, m.Items)
}

func (m *GetData) BtcDecode(r io.Reader, _ uint32, _ wire.MessageEncoding) error {
	items, err := readInventoryList(r)
	if err != nil {
		return err
	}
	m.Items = items
	return nil
}

func (m *GetData) Command() string { return CmdGetData }

func (m *GetData) MaxPayloadLength(uint32) uint32 {
	return 4 + maxInvItems*32
}
