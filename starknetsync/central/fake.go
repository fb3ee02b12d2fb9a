package central

import (
	"context"
	"sync"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

// FakeCentralSource is a hand-rolled, in-memory CentralSource for tests.
// go.uber.org/mock is the teacher's usual mocking tool, but a generated
// mock buys nothing here: the scenarios in spec.md §8 need a source that
// actually tracks a mutable chain (so a test can mutate it mid-stream to
// simulate a revert), which a recorded-expectation mock does not give us
// for free. Both streams run concurrently against the same instance, so
// every accessor takes mu.
type FakeCentralSource struct {
	mu          sync.Mutex
	blocks      map[starknetapi.BlockNumber]*starknetapi.Block
	stateDiffs  map[starknetapi.BlockNumber]*starknetapi.StateDiff
	deployedCls map[starknetapi.BlockNumber]starknetapi.DeployedContractClassMap
	blockErrs   map[starknetapi.BlockNumber]error
	stateErrs   map[starknetapi.BlockNumber]error
}

// NewFakeCentralSource returns an empty fake chain.
func NewFakeCentralSource() *FakeCentralSource {
	return &FakeCentralSource{
		blocks:      map[starknetapi.BlockNumber]*starknetapi.Block{},
		stateDiffs:  map[starknetapi.BlockNumber]*starknetapi.StateDiff{},
		deployedCls: map[starknetapi.BlockNumber]starknetapi.DeployedContractClassMap{},
		blockErrs:   map[starknetapi.BlockNumber]error{},
		stateErrs:   map[starknetapi.BlockNumber]error{},
	}
}

// PutBlock installs or replaces a block (used to simulate a revert: call
// again with the same number and a different hash/parent).
func (f *FakeCentralSource) PutBlock(n starknetapi.BlockNumber, block *starknetapi.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[n] = block
}

// PutStateDiff installs or replaces a state diff for block n.
func (f *FakeCentralSource) PutStateDiff(n starknetapi.BlockNumber, diff *starknetapi.StateDiff, deployed starknetapi.DeployedContractClassMap) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateDiffs[n] = diff
	f.deployedCls[n] = deployed
}

// SetErr forces a specific error the next time n is fetched on the block
// stream, letting a test exercise the recoverable/fatal classification.
// It is consumed (cleared) after one fetch.
func (f *FakeCentralSource) SetErr(n starknetapi.BlockNumber, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockErrs[n] = err
}

// SetStateErr is SetErr's state-diff-stream counterpart.
func (f *FakeCentralSource) SetStateErr(n starknetapi.BlockNumber, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateErrs[n] = err
}

func (f *FakeCentralSource) LatestBlock(ctx context.Context) (*starknetapi.BlockNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max *starknetapi.BlockNumber
	for n := range f.blocks {
		n := n
		if max == nil || n > *max {
			max = &n
		}
	}
	return max, nil
}

func (f *FakeCentralSource) BlockHash(ctx context.Context, n starknetapi.BlockNumber) (starknetapi.BlockHash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[n]
	if !ok {
		return starknetapi.BlockHash{}, &BlockNotFoundError{BlockNumber: n}
	}
	return b.Header.BlockHash, nil
}

func (f *FakeCentralSource) StreamBlocks(ctx context.Context, lo, hi starknetapi.BlockNumber) <-chan BlockOrError {
	out := make(chan BlockOrError)
	go func() {
		defer close(out)
		for n := lo; n < hi; n++ {
			item, stop := f.fetchBlock(n)
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
			if stop {
				return
			}
		}
	}()
	return out
}

func (f *FakeCentralSource) fetchBlock(n starknetapi.BlockNumber) (BlockOrError, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.blockErrs[n]; ok {
		delete(f.blockErrs, n)
		return BlockOrError{Number: n, Err: err}, true
	}
	b, ok := f.blocks[n]
	if !ok {
		return BlockOrError{Number: n, Err: &BlockNotFoundError{BlockNumber: n}}, true
	}
	return BlockOrError{Number: n, Block: b}, false
}

func (f *FakeCentralSource) StreamStateUpdates(ctx context.Context, lo, hi starknetapi.BlockNumber) <-chan StateUpdateOrError {
	out := make(chan StateUpdateOrError)
	go func() {
		defer close(out)
		for n := lo; n < hi; n++ {
			item, stop := f.fetchStateUpdate(n)
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
			if stop {
				return
			}
		}
	}()
	return out
}

func (f *FakeCentralSource) fetchStateUpdate(n starknetapi.BlockNumber) (StateUpdateOrError, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.stateErrs[n]; ok {
		delete(f.stateErrs, n)
		return StateUpdateOrError{Number: n, Err: err}, true
	}
	d, ok := f.stateDiffs[n]
	if !ok {
		return StateUpdateOrError{Number: n, Err: &StateUpdateNotFoundError{BlockNumber: n}}, true
	}
	var hash starknetapi.BlockHash
	if b := f.blocks[n]; b != nil {
		hash = b.Header.BlockHash
	}
	return StateUpdateOrError{Number: n, BlockHash: hash, StateDiff: d, DeployedContractClasses: f.deployedCls[n]}, false
}
