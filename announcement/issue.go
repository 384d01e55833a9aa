package announcement

import (
	"bytes"

	"github.com/yuvprotocol/yuvd/pixel"
)

// IssueAnnouncement records the creation of new supply of a chroma, minted
// to the transaction's tokenized outputs.
type IssueAnnouncement struct {
	Chroma pixel.Chroma
	Amount pixel.Luma
}

func NewIssueAnnouncement(chroma pixel.Chroma, amount pixel.Luma) *IssueAnnouncement {
	return &IssueAnnouncement{Chroma: chroma, Amount: amount}
}

func (i *IssueAnnouncement) Kind() Kind { return KindIssue }

func (i *IssueAnnouncement) MinimalBlockHeight(Network) uint32 { return 0 }

func (i *IssueAnnouncement) encodeData(buf *bytes.Buffer) {
	buf.Write(i.Chroma[:])
	buf.Write(i.Amount[:])
}

func parseIssue(payload []byte) (*IssueAnnouncement, error) {
	chroma, rest, err := chroma32(payload)
	if err != nil {
		return nil, err
	}

	if len(rest) < pixel.LumaSize {
		return nil, ErrTruncatedPayload
	}

	var amount pixel.Luma
	copy(amount[:], rest[:pixel.LumaSize])

	return &IssueAnnouncement{Chroma: chroma, Amount: amount}, nil
}
