package starknetapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func addr(b byte) ContractAddress {
	var a ContractAddress
	a[0] = b
	return a
}

func TestStateDiff_SortedDeployedContractsIsAscending(t *testing.T) {
	d := NewStateDiff()
	d.DeployedContracts[addr(9)] = ClassHash{1}
	d.DeployedContracts[addr(1)] = ClassHash{2}
	d.DeployedContracts[addr(5)] = ClassHash{3}

	got := d.SortedDeployedContracts()
	assert.Equal(t, []ContractAddress{addr(1), addr(5), addr(9)}, got)
}

func TestStateDiff_SortedStorageKeysForIsPerContractAndAscending(t *testing.T) {
	d := NewStateDiff()
	var k1, k2, k3 StorageKey
	k1[0], k2[0], k3[0] = 3, 1, 2
	d.StorageDiffs[addr(1)] = StorageDiff{k1: {1}, k2: {2}, k3: {3}}

	got := d.SortedStorageKeysFor(addr(1))
	assert.Equal(t, []StorageKey{k2, k3, k1}, got)
}

func TestStateDiff_ToThinDropsDeprecatedDeclaredClasses(t *testing.T) {
	d := NewStateDiff()
	d.DeprecatedDeclaredClasses[ClassHash{1}] = &DeprecatedContractClass{ClassHash: ClassHash{1}}
	d.DeclaredClasses[ClassHash{2}] = ClassHash{3}

	thin := d.ToThin()
	assert.Len(t, thin.DeclaredClasses, 1)
	assert.Contains(t, thin.DeclaredClasses, ClassHash{2})
}
