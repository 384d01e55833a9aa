package announcement

import (
	"bytes"

	"github.com/yuvprotocol/yuvd/pixel"
)

const (
	minOwnerScriptSize = 16
	maxOwnerScriptSize = 48
)

// TransferOwnershipAnnouncement reassigns a chroma's issuance rights to a
// new owner script. It only becomes valid at the network-specific
// activation height returned by MinimalBlockHeight; see network.go.
type TransferOwnershipAnnouncement struct {
	Chroma         pixel.Chroma
	NewOwnerScript []byte
}

func NewTransferOwnershipAnnouncement(chroma pixel.Chroma, newOwnerScript []byte) (*TransferOwnershipAnnouncement, error) {
	if len(newOwnerScript) < minOwnerScriptSize || len(newOwnerScript) > maxOwnerScriptSize {
		return nil, ErrInvalidOwnerScript
	}
	return &TransferOwnershipAnnouncement{Chroma: chroma, NewOwnerScript: newOwnerScript}, nil
}

func (t *TransferOwnershipAnnouncement) Kind() Kind { return KindTransferOwnership }

func (t *TransferOwnershipAnnouncement) MinimalBlockHeight(net Network) uint32 {
	return transferOwnershipActivation[net]
}

func (t *TransferOwnershipAnnouncement) encodeData(buf *bytes.Buffer) {
	buf.Write(t.Chroma[:])
	buf.Write(t.NewOwnerScript)
}

func parseTransferOwnership(payload []byte) (*TransferOwnershipAnnouncement, error) {
	chroma, rest, err := chroma32(payload)
	if err != nil {
		return nil, err
	}

	if len(rest) < minOwnerScriptSize || len(rest) > maxOwnerScriptSize {
		return nil, ErrInvalidOwnerScript
	}

	script := make([]byte, len(rest))
	copy(script, rest)

	return &TransferOwnershipAnnouncement{Chroma: chroma, NewOwnerScript: script}, nil
}
