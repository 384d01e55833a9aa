package indexer

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

// BitcoinClient is the subset of a Bitcoin RPC client the indexer needs.
// github.com/btcsuite/btcd/rpcclient.Client already implements this
// interface; it exists so tests can supply a fake.
type BitcoinClient interface {
	GetBlockCount() (int64, error)
	GetBlockHash(height int64) (*chainhash.Hash, error)
	GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error)
}

var _ BitcoinClient = (*rpcclient.Client)(nil)

// NewRPCClient dials a btcd/bitcoind JSON-RPC endpoint the way the teacher's
// wallet chain backend does in chainregistry.go: certificate-based TLS,
// connect-on-first-use, and auto-reconnect left to the caller's config.
func NewRPCClient(cfg *rpcclient.ConnConfig) (BitcoinClient, error) {
	return rpcclient.New(cfg, nil)
}
