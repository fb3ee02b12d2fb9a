// Package starknetsync implements the sync engine (C3-C7): two polling
// streams feeding one serial event processor, a revert controller, and the
// supervisor loop that ties recoverable errors back into a retry.
package starknetsync

import (
	"fmt"

	"github.com/starkware-libs/starksync-go/starknetapi"
	"github.com/starkware-libs/starksync-go/starknetsync/central"
	"github.com/starkware-libs/starksync-go/starknetsync/storage"
)

// SyncEvent is emitted by the block or state-diff poller and consumed, in
// receipt order, by the serial processor in sync.go.
type SyncEvent struct {
	Block     *BlockAvailable
	StateDiff *StateDiffAvailable
}

// BlockAvailable carries a freshly fetched block, ready to append once its
// parent hash has been verified against the local chain.
type BlockAvailable struct {
	Number starknetapi.BlockNumber
	Block  *starknetapi.Block
}

// StateDiffAvailable carries a freshly fetched state diff. It may arrive
// before the matching header (the two streams advance independently), in
// which case processing it is deferred (spec.md's StateDiffWithoutMatchingHeader).
type StateDiffAvailable struct {
	Number                  starknetapi.BlockNumber
	BlockHash               starknetapi.BlockHash
	StateDiff               *starknetapi.StateDiff
	DeployedContractClasses starknetapi.DeployedContractClassMap
}

// ParentBlockHashMismatchError signals that the freshly fetched block at
// Number does not chain onto the locally stored header at Number-1 — a
// revert is in progress upstream. It is not a fatal error: the supervisor
// loop treats it as "retry immediately, after running the revert
// controller" (spec.md §4.6, §4.7).
type ParentBlockHashMismatchError struct {
	Number       starknetapi.BlockNumber
	ExpectedHash starknetapi.BlockHash
	ActualHash   starknetapi.BlockHash
}

func (e *ParentBlockHashMismatchError) Error() string {
	return fmt.Sprintf("parent hash mismatch at block %s: expected %s, got %s", e.Number, e.ExpectedHash, e.ActualHash)
}

// StateDiffWithoutMatchingHeaderError signals a state diff arrived for a
// block number whose header has not been appended yet, or whose stored
// header and known ommer headers all carry a different hash. It is
// recoverable: the processor simply waits for the header stream to catch up.
type StateDiffWithoutMatchingHeaderError struct {
	Number starknetapi.BlockNumber
}

func (e *StateDiffWithoutMatchingHeaderError) Error() string {
	return fmt.Sprintf("state diff for block %s arrived without a matching header", e.Number)
}

// Recoverable implements the fixed error-recoverability classification
// from spec.md §4.7: the two sync-specific signals are always recoverable,
// storage.InnerError is recoverable, everything else from the central
// package follows its own fixed classification, and anything unrecognized
// is fatal.
func Recoverable(err error) bool {
	switch err.(type) {
	case *ParentBlockHashMismatchError:
		return true
	case *StateDiffWithoutMatchingHeaderError:
		return true
	case *storage.InnerError:
		return true
	case *storage.DBInconsistencyError, *storage.SerdeError:
		return false
	case *central.BlockNotFoundError, *central.BadContractClassTypeError,
		*central.StateUpdateNotFoundError, *central.ClassNotFoundError,
		*central.TransportError, *central.BadStatusError, *central.DecodeError:
		return central.Recoverable(err)
	default:
		return false
	}
}
