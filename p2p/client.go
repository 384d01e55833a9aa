package p2p

import (
	"context"
	"errors"

	"github.com/yuvprotocol/yuvd/txcheck"
)

// ErrPeerNotFound is returned when a targeted send names a peer that is no
// longer connected.
var ErrPeerNotFound = errors.New("p2p: peer not found")

// ClientHandle is the controller's view of the P2P layer: a clonable handle
// that sends through the same outbound queue regardless of which component
// holds it. A concrete implementation multiplexes these calls onto the
// underlying Bitcoin peer connections that completed the YUV handshake.
type ClientHandle interface {
	// SendInv announces inv to every connected, YUV-capable peer.
	SendInv(ctx context.Context, inv []Inventory) error

	// SendGetData requests inv from a single peer, identified by address.
	SendGetData(ctx context.Context, inv []Inventory, peer string) error

	// SendYuvTxs sends txs to a single peer, identified by address.
	SendYuvTxs(ctx context.Context, txs []*txcheck.YuvTransaction, peer string) error

	// BanPeer disconnects and bans peer for supplying invalid transactions.
	BanPeer(ctx context.Context, peer string) error
}
