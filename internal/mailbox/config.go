package mailbox

// Config holds the tunable knobs for this package. There is currently
// exactly one: the reducer batch threshold on split ports.
type Config struct {
	// SplitMaxBufferSize is the number of buffered updates a reducer-backed
	// split port accumulates before invoking its reducer and forwarding the
	// result. Must be >= 1.
	SplitMaxBufferSize int
}

// DefaultConfig returns the package's default configuration.
func DefaultConfig() Config {
	return Config{SplitMaxBufferSize: 1}
}
