// Package storage implements the storage facade (C2): a transactional
// reader/writer exposing stream markers, append operations and the ommer
// side-tables used to retain superseded chain data across a revert.
//
// The real on-disk engine is out of scope for this module (spec.md §1
// treats it as an external collaborator); MemoryStore below implements the
// same transactional contract entirely in memory, which is enough to drive
// the sync engine end to end and is what the test suite exercises.
package storage

import (
	"sync"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

// BodyRevertResult is what RevertBody hands back when a body existed.
type BodyRevertResult struct {
	Transactions []starknetapi.Transaction
	Outputs      []starknetapi.TransactionOutput
	Events       []starknetapi.Event
}

// StateDiffRevertResult is what RevertStateDiff hands back when a state
// diff existed for the reverted block.
type StateDiffRevertResult struct {
	ThinStateDiff             *starknetapi.ThinStateDiff
	DeclaredClasses           starknetapi.DeployedContractClassMap
	DeprecatedDeclaredClasses starknetapi.DeployedContractClassMap
}

// ReadTxn is an immutable snapshot of the store.
type ReadTxn interface {
	HeaderMarker() (starknetapi.BlockNumber, error)
	BodyMarker() (starknetapi.BlockNumber, error)
	StateMarker() (starknetapi.BlockNumber, error)
	GetBlockHeader(n starknetapi.BlockNumber) (*starknetapi.BlockHeader, error)
	GetOmmerHeader(hash starknetapi.BlockHash) (*starknetapi.BlockHeader, error)
	Discard()
}

// WriteTxn is the fluent, exclusive write transaction. Every mutating
// method consumes the receiver and returns a (possibly new) handle, the
// Rust-style "move" the original design relies on to prevent
// use-after-commit; since Go has no move semantics this is enforced with a
// one-shot guard (committed/rolledBack flag) instead.
type WriteTxn struct {
	store    *MemoryStore
	snapshot *tables
	done     bool
	release  sync.Once
}

func (w *WriteTxn) guard() error {
	if w.done {
		return &DBInconsistencyError{Msg: "write transaction used after commit or rollback"}
	}
	return nil
}

// Rollback discards the transaction's staged writes and releases the
// exclusive writer lock. It is a no-op if the transaction already
// committed. Call it (e.g. via defer) whenever a write transaction might
// not reach Commit, mirroring the teacher's defer tx.Rollback() idiom.
func (w *WriteTxn) Rollback() {
	w.release.Do(func() { w.store.writerMu.Unlock() })
	w.done = true
}

// AppendHeader advances header_marker to n+1. Requires header_marker == n.
func (w *WriteTxn) AppendHeader(n starknetapi.BlockNumber, header *starknetapi.BlockHeader) (*WriteTxn, error) {
	if err := w.guard(); err != nil {
		return w, err
	}
	if w.snapshot.headerMarker != n {
		return w, &DBInconsistencyError{Msg: "append_header: marker mismatch"}
	}
	h := *header
	w.snapshot.headers[n] = &h
	w.snapshot.headerMarker = n + 1
	return w, nil
}

// AppendBody advances body_marker to n+1. Requires body_marker == n.
func (w *WriteTxn) AppendBody(n starknetapi.BlockNumber, body *starknetapi.BlockBody) (*WriteTxn, error) {
	if err := w.guard(); err != nil {
		return w, err
	}
	if w.snapshot.bodyMarker != n {
		return w, &DBInconsistencyError{Msg: "append_body: marker mismatch"}
	}
	b := *body
	w.snapshot.bodies[n] = &b
	w.snapshot.bodyMarker = n + 1
	return w, nil
}

// AppendStateDiff advances state_marker to n+1. Requires state_marker == n.
// deployedClasses holds legacy deployed-contract classes fetched
// out-of-band (spec.md's legacy note); deprecatedDeclaredClasses holds the
// diff's own explicitly-declared deprecated classes.
func (w *WriteTxn) AppendStateDiff(n starknetapi.BlockNumber, diff *starknetapi.ThinStateDiff, deployedClasses, deprecatedDeclaredClasses starknetapi.DeployedContractClassMap) (*WriteTxn, error) {
	if err := w.guard(); err != nil {
		return w, err
	}
	if w.snapshot.stateMarker != n {
		return w, &DBInconsistencyError{Msg: "append_state_diff: marker mismatch"}
	}
	w.snapshot.stateDiffs[n] = diff
	w.snapshot.deployedClasses[n] = deployedClasses
	w.snapshot.deprecatedClasses[n] = deprecatedDeclaredClasses
	w.snapshot.stateMarker = n + 1
	return w, nil
}

// RevertHeader removes and returns the header at n iff header_marker == n+1.
func (w *WriteTxn) RevertHeader(n starknetapi.BlockNumber) (*WriteTxn, *starknetapi.BlockHeader, error) {
	if err := w.guard(); err != nil {
		return w, nil, err
	}
	if w.snapshot.headerMarker != n+1 {
		return w, nil, nil
	}
	h := w.snapshot.headers[n]
	delete(w.snapshot.headers, n)
	w.snapshot.headerMarker = n
	return w, h, nil
}

// RevertBody removes and returns the body at n, if present.
func (w *WriteTxn) RevertBody(n starknetapi.BlockNumber) (*WriteTxn, *BodyRevertResult, error) {
	if err := w.guard(); err != nil {
		return w, nil, err
	}
	b, ok := w.snapshot.bodies[n]
	if !ok {
		return w, nil, nil
	}
	delete(w.snapshot.bodies, n)
	if w.snapshot.bodyMarker > n {
		w.snapshot.bodyMarker = n
	}
	var events []starknetapi.Event
	for _, out := range b.Outputs {
		events = append(events, out.Events...)
	}
	return w, &BodyRevertResult{Transactions: b.Transactions, Outputs: b.Outputs, Events: events}, nil
}

// RevertStateDiff removes and returns the state diff at n, if present.
func (w *WriteTxn) RevertStateDiff(n starknetapi.BlockNumber) (*WriteTxn, *StateDiffRevertResult, error) {
	if err := w.guard(); err != nil {
		return w, nil, err
	}
	d, ok := w.snapshot.stateDiffs[n]
	if !ok {
		return w, nil, nil
	}
	delete(w.snapshot.stateDiffs, n)
	declared := w.snapshot.deployedClasses[n]
	delete(w.snapshot.deployedClasses, n)
	deprecated := w.snapshot.deprecatedClasses[n]
	delete(w.snapshot.deprecatedClasses, n)
	if w.snapshot.stateMarker > n {
		w.snapshot.stateMarker = n
	}
	return w, &StateDiffRevertResult{ThinStateDiff: d, DeclaredClasses: declared, DeprecatedDeclaredClasses: deprecated}, nil
}

// InsertOmmerHeader retains a superseded header, keyed by its former hash.
func (w *WriteTxn) InsertOmmerHeader(hash starknetapi.BlockHash, header *starknetapi.BlockHeader) (*WriteTxn, error) {
	if err := w.guard(); err != nil {
		return w, err
	}
	h := *header
	w.snapshot.ommerHeaders[hash] = &h
	return w, nil
}

// InsertOmmerBody retains a superseded body, keyed by its former block hash.
func (w *WriteTxn) InsertOmmerBody(hash starknetapi.BlockHash, body *BodyRevertResult) (*WriteTxn, error) {
	if err := w.guard(); err != nil {
		return w, err
	}
	w.snapshot.ommerBodies[hash] = body
	return w, nil
}

// InsertOmmerStateDiff retains a superseded state diff, keyed by its former
// block hash. Per DESIGN.md, deprecated declared classes are not carried
// over to the ommer table (preserving the observed upstream behavior).
func (w *WriteTxn) InsertOmmerStateDiff(hash starknetapi.BlockHash, diff *starknetapi.ThinStateDiff, declaredClasses starknetapi.DeployedContractClassMap) (*WriteTxn, error) {
	if err := w.guard(); err != nil {
		return w, err
	}
	w.snapshot.ommerStateDiffs[hash] = &StateDiffRevertResult{ThinStateDiff: diff, DeclaredClasses: declaredClasses}
	return w, nil
}

// Commit makes the transaction's writes visible to subsequent readers.
// It is the only way to do so; a WriteTxn dropped without Commit discards
// its changes entirely (the snapshot it mutated is simply never installed).
func (w *WriteTxn) Commit() error {
	if err := w.guard(); err != nil {
		return err
	}
	w.store.install(w.snapshot)
	w.done = true
	w.release.Do(func() { w.store.writerMu.Unlock() })
	return nil
}

// Store is the process-wide storage facade: one exclusive writer, many
// freely-clonable readers.
type Store interface {
	BeginRO() ReadTxn
	BeginRW() *WriteTxn
}
