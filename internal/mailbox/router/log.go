package router

import (
	"context"

	"github.com/btcsuite/btclog/v2"
)

// log is the package-level logger, disabled by default. Callers wire in a
// real logger with UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by the router package.
func UseLogger(logger btclog.Logger) {
	log = logger
}

var noCtx = context.Background()
