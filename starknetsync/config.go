package starknetsync

import (
	"time"

	"github.com/starkware-libs/starksync-go/starknetsync/central"
)

// Config aggregates every knob the supervisor loop and the two pollers
// need, grouped the way a TOML document written for this node would group
// them: a [central] table plus top-level sync.* timings (spec.md §6).
type Config struct {
	Central central.Config `toml:"central"`

	// BlockPropagationSleep is how long a poller sleeps after catching up
	// to the feeder's current tip before polling again.
	BlockPropagationSleep time.Duration `toml:"block_propagation_sleep_duration"`

	// RecoverableErrorSleep is how long the supervisor loop sleeps before
	// retrying after a recoverable error, other than a detected revert
	// (which is retried immediately).
	RecoverableErrorSleep time.Duration `toml:"recoverable_error_sleep_duration"`

	// BlocksMaxStreamSize bounds how many blocks a single StreamBlocks
	// call is allowed to request in one pass.
	BlocksMaxStreamSize uint64 `toml:"blocks_max_stream_size"`

	// StateUpdatesMaxStreamSize bounds how many state diffs a single
	// StreamStateUpdates call is allowed to request in one pass.
	StateUpdatesMaxStreamSize uint64 `toml:"state_updates_max_stream_size"`
}

// DefaultConfig mirrors the values a freshly bootstrapped node would ship
// with.
func DefaultConfig() Config {
	return Config{
		Central:                   central.DefaultConfig(),
		BlockPropagationSleep:     2 * time.Second,
		RecoverableErrorSleep:     3 * time.Second,
		BlocksMaxStreamSize:       1000,
		StateUpdatesMaxStreamSize: 1000,
	}
}
