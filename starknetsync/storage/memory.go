package storage

import (
	"sync"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

// tables is the full logical schema from spec.md §6, held as plain maps.
// A MemoryStore always has exactly one live *tables; BeginRW clones it so
// that writers mutate an isolated copy until Commit swaps it in.
type tables struct {
	headerMarker starknetapi.BlockNumber
	bodyMarker   starknetapi.BlockNumber
	stateMarker  starknetapi.BlockNumber

	headers    map[starknetapi.BlockNumber]*starknetapi.BlockHeader
	bodies     map[starknetapi.BlockNumber]*starknetapi.BlockBody
	stateDiffs map[starknetapi.BlockNumber]*starknetapi.ThinStateDiff

	deployedClasses   map[starknetapi.BlockNumber]starknetapi.DeployedContractClassMap
	deprecatedClasses map[starknetapi.BlockNumber]starknetapi.DeployedContractClassMap

	ommerHeaders    map[starknetapi.BlockHash]*starknetapi.BlockHeader
	ommerBodies     map[starknetapi.BlockHash]*BodyRevertResult
	ommerStateDiffs map[starknetapi.BlockHash]*StateDiffRevertResult
}

func newTables() *tables {
	return &tables{
		headers:           map[starknetapi.BlockNumber]*starknetapi.BlockHeader{},
		bodies:            map[starknetapi.BlockNumber]*starknetapi.BlockBody{},
		stateDiffs:        map[starknetapi.BlockNumber]*starknetapi.ThinStateDiff{},
		deployedClasses:   map[starknetapi.BlockNumber]starknetapi.DeployedContractClassMap{},
		deprecatedClasses: map[starknetapi.BlockNumber]starknetapi.DeployedContractClassMap{},
		ommerHeaders:      map[starknetapi.BlockHash]*starknetapi.BlockHeader{},
		ommerBodies:       map[starknetapi.BlockHash]*BodyRevertResult{},
		ommerStateDiffs:   map[starknetapi.BlockHash]*StateDiffRevertResult{},
	}
}

// clone makes a shallow-per-entry copy: the maps themselves are new, but
// their *values (already treated as immutable once stored) are shared.
func (t *tables) clone() *tables {
	c := newTables()
	c.headerMarker, c.bodyMarker, c.stateMarker = t.headerMarker, t.bodyMarker, t.stateMarker
	for k, v := range t.headers {
		c.headers[k] = v
	}
	for k, v := range t.bodies {
		c.bodies[k] = v
	}
	for k, v := range t.stateDiffs {
		c.stateDiffs[k] = v
	}
	for k, v := range t.deployedClasses {
		c.deployedClasses[k] = v
	}
	for k, v := range t.deprecatedClasses {
		c.deprecatedClasses[k] = v
	}
	for k, v := range t.ommerHeaders {
		c.ommerHeaders[k] = v
	}
	for k, v := range t.ommerBodies {
		c.ommerBodies[k] = v
	}
	for k, v := range t.ommerStateDiffs {
		c.ommerStateDiffs[k] = v
	}
	return c
}

// MemoryStore is an in-memory Store: a single RWMutex-guarded *tables plus
// an exclusive-writer lock, mirroring the MDBX single-writer/many-readers
// model the teacher's kv.RwDB exposes.
type MemoryStore struct {
	mu        sync.RWMutex
	live      *tables
	writerMu  sync.Mutex // serializes BeginRW the way a real single-writer backend would
}

// NewMemoryStore returns an empty store with all markers at zero.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{live: newTables()}
}

func (s *MemoryStore) install(t *tables) {
	s.mu.Lock()
	s.live = t
	s.mu.Unlock()
}

// BeginRO opens a read-only snapshot.
func (s *MemoryStore) BeginRO() ReadTxn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &memReadTxn{t: s.live}
}

// BeginRW acquires the exclusive writer lock and hands back a transaction
// operating on a private clone of the current table set. The lock is held
// until the transaction is committed or rolled back.
func (s *MemoryStore) BeginRW() *WriteTxn {
	s.writerMu.Lock()
	s.mu.RLock()
	snapshot := s.live.clone()
	s.mu.RUnlock()
	return &WriteTxn{store: s, snapshot: snapshot}
}

type memReadTxn struct {
	t *tables
}

func (r *memReadTxn) HeaderMarker() (starknetapi.BlockNumber, error) { return r.t.headerMarker, nil }
func (r *memReadTxn) BodyMarker() (starknetapi.BlockNumber, error)   { return r.t.bodyMarker, nil }
func (r *memReadTxn) StateMarker() (starknetapi.BlockNumber, error)  { return r.t.stateMarker, nil }

func (r *memReadTxn) GetBlockHeader(n starknetapi.BlockNumber) (*starknetapi.BlockHeader, error) {
	return r.t.headers[n], nil
}

func (r *memReadTxn) GetOmmerHeader(hash starknetapi.BlockHash) (*starknetapi.BlockHeader, error) {
	return r.t.ommerHeaders[hash], nil
}

func (r *memReadTxn) Discard() {}
