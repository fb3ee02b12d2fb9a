package starknetapi

import (
	"bytes"
	"sort"
)

// StorageDiff maps a contract's storage slots to their new values.
type StorageDiff map[StorageKey][32]byte

// ContractClass is the Cairo 1+ compiled class representation. Its body is
// opaque to the sync engine; only its identity and presence matter here.
type ContractClass struct {
	ClassHash  ClassHash
	Definition []byte
}

// DeprecatedContractClass is the legacy (pre-Cairo-1) class representation.
type DeprecatedContractClass struct {
	ClassHash  ClassHash
	Definition []byte
}

// DeployedContractClassMap holds legacy class definitions for contracts that
// were deployed with a class never separately declared (pre-0.11 feeders).
type DeployedContractClassMap map[ClassHash]*DeprecatedContractClass

// StateDiff is the set of changes that transform the state at block n-1
// into the state at block n. Go maps carry no order; the Sorted* methods
// below return each map's keys in canonical ascending order.
type StateDiff struct {
	DeployedContracts         map[ContractAddress]ClassHash
	StorageDiffs              map[ContractAddress]StorageDiff
	DeclaredClasses           map[ClassHash]ClassHash // class hash -> compiled class hash
	DeprecatedDeclaredClasses map[ClassHash]*DeprecatedContractClass
	Nonces                    map[ContractAddress]uint64
	ReplacedClasses           map[ContractAddress]ClassHash
}

// NewStateDiff returns a StateDiff with all six maps initialized empty.
func NewStateDiff() *StateDiff {
	return &StateDiff{
		DeployedContracts:         map[ContractAddress]ClassHash{},
		StorageDiffs:              map[ContractAddress]StorageDiff{},
		DeclaredClasses:           map[ClassHash]ClassHash{},
		DeprecatedDeclaredClasses: map[ClassHash]*DeprecatedContractClass{},
		Nonces:                    map[ContractAddress]uint64{},
		ReplacedClasses:           map[ContractAddress]ClassHash{},
	}
}

func sortedAddresses(keys []ContractAddress) []ContractAddress {
	out := append([]ContractAddress(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func sortedClassHashes(keys []ClassHash) []ClassHash {
	out := append([]ClassHash(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func sortedStorageKeys(keys []StorageKey) []StorageKey {
	out := append([]StorageKey(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// SortedDeployedContracts returns deployed contracts in ascending address order.
func (d *StateDiff) SortedDeployedContracts() []ContractAddress {
	keys := make([]ContractAddress, 0, len(d.DeployedContracts))
	for k := range d.DeployedContracts {
		keys = append(keys, k)
	}
	return sortedAddresses(keys)
}

// SortedStorageDiffContracts returns the contracts with storage diffs in
// ascending address order; each contract's own slots are independently
// sorted by SortedStorageKeysFor.
func (d *StateDiff) SortedStorageDiffContracts() []ContractAddress {
	keys := make([]ContractAddress, 0, len(d.StorageDiffs))
	for k := range d.StorageDiffs {
		keys = append(keys, k)
	}
	return sortedAddresses(keys)
}

// SortedStorageKeysFor returns the storage keys touched for a contract, sorted.
func (d *StateDiff) SortedStorageKeysFor(addr ContractAddress) []StorageKey {
	entries := d.StorageDiffs[addr]
	keys := make([]StorageKey, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	return sortedStorageKeys(keys)
}

// SortedDeclaredClasses returns declared class hashes in ascending order.
func (d *StateDiff) SortedDeclaredClasses() []ClassHash {
	keys := make([]ClassHash, 0, len(d.DeclaredClasses))
	for k := range d.DeclaredClasses {
		keys = append(keys, k)
	}
	return sortedClassHashes(keys)
}

// SortedDeprecatedDeclaredClasses returns deprecated declared class hashes
// in ascending order.
func (d *StateDiff) SortedDeprecatedDeclaredClasses() []ClassHash {
	keys := make([]ClassHash, 0, len(d.DeprecatedDeclaredClasses))
	for k := range d.DeprecatedDeclaredClasses {
		keys = append(keys, k)
	}
	return sortedClassHashes(keys)
}

// SortedNonces returns contracts with a nonce update in ascending order.
func (d *StateDiff) SortedNonces() []ContractAddress {
	keys := make([]ContractAddress, 0, len(d.Nonces))
	for k := range d.Nonces {
		keys = append(keys, k)
	}
	return sortedAddresses(keys)
}

// SortedReplacedClasses returns contracts with a replaced class in ascending order.
func (d *StateDiff) SortedReplacedClasses() []ContractAddress {
	keys := make([]ContractAddress, 0, len(d.ReplacedClasses))
	for k := range d.ReplacedClasses {
		keys = append(keys, k)
	}
	return sortedAddresses(keys)
}

// ThinStateDiff is the storage-ready projection of a StateDiff: the same
// maps minus the deprecated declared classes. It is this shape (not
// StateDiff) that is written to and read back from the ommer and main
// state-diff tables.
type ThinStateDiff struct {
	DeployedContracts map[ContractAddress]ClassHash
	StorageDiffs      map[ContractAddress]StorageDiff
	DeclaredClasses   map[ClassHash]ClassHash
	Nonces            map[ContractAddress]uint64
	ReplacedClasses   map[ContractAddress]ClassHash
}

// ToThin projects a StateDiff into its storage representation, dropping
// deprecated declared classes (those are persisted separately, see
// DESIGN.md on the revert-time drop of deprecated declared classes).
func (d *StateDiff) ToThin() *ThinStateDiff {
	return &ThinStateDiff{
		DeployedContracts: d.DeployedContracts,
		StorageDiffs:      d.StorageDiffs,
		DeclaredClasses:   d.DeclaredClasses,
		Nonces:            d.Nonces,
		ReplacedClasses:   d.ReplacedClasses,
	}
}
