package pixel

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout the pixel package. It is
// initially the disabled logger so the package is safe to import without a
// call to UseLogger, matching the rest of the node's subsystems.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the pixel package. This
// should be called before the package is used, typically from the main
// binary's subsystem logger wiring.
func UseLogger(logger btclog.Logger) {
	log = logger
}
