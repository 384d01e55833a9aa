package p2p

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the p2p package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
