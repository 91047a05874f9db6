package mailbox

import (
	"context"

	"github.com/btcsuite/btclog/v2"
)

// log is the package-level logger, disabled by default. Callers wire in a
// real logger with UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by the mailbox subsystem.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// noCtx is used for the handful of log call sites that don't already have a
// request-scoped context on hand (e.g. background bookkeeping triggered by
// a receiver going away).
var noCtx = context.Background()
