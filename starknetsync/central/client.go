package central

import (
	"context"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

// BlockOrError is one element of a StreamBlocks result, in strictly
// ascending block-number order (spec.md §4.1, §9).
type BlockOrError struct {
	Number starknetapi.BlockNumber
	Block  *starknetapi.Block
	Err    error
}

// StateUpdateOrError is one element of a StreamStateUpdates result, in
// strictly ascending block-number order.
type StateUpdateOrError struct {
	Number     starknetapi.BlockNumber
	BlockHash  starknetapi.BlockHash
	StateDiff  *starknetapi.StateDiff
	// DeployedContractClasses carries class definitions for contracts
	// deployed against a class that was never separately declared — the
	// legacy pre-0.11 pattern (spec.md's "legacy note"). Fetched
	// out-of-band per deployed contract whose class hash doesn't appear
	// in DeclaredClasses.
	DeployedContractClasses starknetapi.DeployedContractClassMap
	Err                      error
}

// CentralSource is the sync engine's view of the feeder gateway (C1):
// current chain tip plus two ordered, bounded-parallel streams. It
// corresponds to CentralSourceTrait in the original design.
type CentralSource interface {
	LatestBlock(ctx context.Context) (*starknetapi.BlockNumber, error)
	BlockHash(ctx context.Context, n starknetapi.BlockNumber) (starknetapi.BlockHash, error)
	StreamBlocks(ctx context.Context, lo, hi starknetapi.BlockNumber) <-chan BlockOrError
	StreamStateUpdates(ctx context.Context, lo, hi starknetapi.BlockNumber) <-chan StateUpdateOrError
}

// GenericCentralSource is the production CentralSource: a FeederClient
// plus the concurrency/ordering policy from stream.go.
type GenericCentralSource struct {
	client              FeederClient
	concurrentRequests  int
}

// NewGenericCentralSource builds a CentralSource from a Config, wiring a
// real HTTPFeederClient underneath.
func NewGenericCentralSource(cfg Config, nodeVersion string) *GenericCentralSource {
	return &GenericCentralSource{
		client:             NewHTTPFeederClient(cfg, nodeVersion),
		concurrentRequests: cfg.ConcurrentRequests,
	}
}

// NewGenericCentralSourceWithClient is the test-friendly constructor,
// taking a FeederClient directly (e.g. a hand-rolled fake).
func NewGenericCentralSourceWithClient(client FeederClient, concurrentRequests int) *GenericCentralSource {
	return &GenericCentralSource{client: client, concurrentRequests: concurrentRequests}
}

// LatestBlock returns the feeder's current tip, nil if the feeder reports
// no blocks at all (a fresh devnet).
func (s *GenericCentralSource) LatestBlock(ctx context.Context) (*starknetapi.BlockNumber, error) {
	return s.client.GetBlockNumber(ctx)
}

// BlockHash fetches a single header and returns its hash, used by the
// revert controller to compare against the locally stored header.
func (s *GenericCentralSource) BlockHash(ctx context.Context, n starknetapi.BlockNumber) (starknetapi.BlockHash, error) {
	block, err := s.client.GetBlock(ctx, n)
	if err != nil {
		return starknetapi.BlockHash{}, err
	}
	if block == nil {
		return starknetapi.BlockHash{}, &BlockNotFoundError{BlockNumber: n}
	}
	return block.Header.BlockHash, nil
}

// StreamBlocks fetches [lo, hi) with up to concurrentRequests requests in
// flight, emitting strictly in ascending order. See stream.go.
func (s *GenericCentralSource) StreamBlocks(ctx context.Context, lo, hi starknetapi.BlockNumber) <-chan BlockOrError {
	out := make(chan BlockOrError)
	go streamOrdered(ctx, lo, hi, s.concurrentRequests, out,
		func(ctx context.Context, n starknetapi.BlockNumber) (BlockOrError, error) {
			block, err := s.client.GetBlock(ctx, n)
			if err != nil {
				return BlockOrError{}, err
			}
			if block == nil {
				return BlockOrError{}, &BlockNotFoundError{BlockNumber: n}
			}
			return BlockOrError{Number: n, Block: block}, nil
		},
		func(n starknetapi.BlockNumber, err error) BlockOrError {
			return BlockOrError{Number: n, Err: err}
		},
	)
	return out
}

// StreamStateUpdates fetches [lo, hi) with up to concurrentRequests
// requests in flight, emitting strictly in ascending order. Each state
// update is paired with any legacy deployed-contract class definitions it
// references.
func (s *GenericCentralSource) StreamStateUpdates(ctx context.Context, lo, hi starknetapi.BlockNumber) <-chan StateUpdateOrError {
	out := make(chan StateUpdateOrError)
	go streamOrdered(ctx, lo, hi, s.concurrentRequests, out,
		func(ctx context.Context, n starknetapi.BlockNumber) (StateUpdateOrError, error) {
			wire, err := s.client.GetStateUpdate(ctx, n)
			if err != nil {
				return StateUpdateOrError{}, err
			}
			if wire == nil {
				return StateUpdateOrError{}, &StateUpdateNotFoundError{BlockNumber: n}
			}
			deployed, err := s.fetchLegacyDeployedClasses(ctx, wire.StateDiff)
			if err != nil {
				return StateUpdateOrError{}, err
			}
			return StateUpdateOrError{
				Number:                   n,
				BlockHash:                wire.BlockHash,
				StateDiff:                wire.StateDiff,
				DeployedContractClasses:  deployed,
			}, nil
		},
		func(n starknetapi.BlockNumber, err error) StateUpdateOrError {
			return StateUpdateOrError{Number: n, Err: err}
		},
	)
	return out
}

// fetchLegacyDeployedClasses fetches, out-of-band, the class definition
// for every deployed contract whose class hash was not separately
// declared in this diff — the pre-0.11 StarkNet pattern where a contract
// could be deployed against an implicitly-declared class.
func (s *GenericCentralSource) fetchLegacyDeployedClasses(ctx context.Context, diff *starknetapi.StateDiff) (starknetapi.DeployedContractClassMap, error) {
	if diff == nil {
		return nil, nil
	}
	result := starknetapi.DeployedContractClassMap{}
	for _, addr := range diff.SortedDeployedContracts() {
		classHash := diff.DeployedContracts[addr]
		if _, declared := diff.DeclaredClasses[classHash]; declared {
			continue
		}
		if _, already := result[classHash]; already {
			continue
		}
		class, err := s.client.GetContractClass(ctx, classHash)
		if err != nil {
			return nil, err
		}
		if class == nil {
			return nil, &ClassNotFoundError{ClassHash: classHash}
		}
		dep, err := class.IntoDeprecated()
		if err != nil {
			return nil, err
		}
		result[classHash] = dep
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}
