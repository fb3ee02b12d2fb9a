package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

func header(n uint64, hash, parent byte) *starknetapi.BlockHeader {
	var h, p starknetapi.BlockHash
	h[0], p[0] = hash, parent
	return &starknetapi.BlockHeader{BlockNumber: starknetapi.BlockNumber(n), BlockHash: h, ParentHash: p}
}

func TestMemoryStore_AppendRequiresMarkerMatch(t *testing.T) {
	s := NewMemoryStore()
	wtx := s.BeginRW()
	_, err := wtx.AppendHeader(1, header(1, 1, 0))
	var inconsistency *DBInconsistencyError
	require.ErrorAs(t, err, &inconsistency)
	wtx.Rollback()
}

func TestMemoryStore_CommitAdvancesMarkerAndIsVisibleToNewReaders(t *testing.T) {
	s := NewMemoryStore()
	wtx := s.BeginRW()
	wtx, err := wtx.AppendHeader(0, header(0, 1, 0))
	require.NoError(t, err)
	require.NoError(t, wtx.Commit())

	ro := s.BeginRO()
	defer ro.Discard()
	marker, err := ro.HeaderMarker()
	require.NoError(t, err)
	assert.Equal(t, starknetapi.BlockNumber(1), marker)

	h, err := ro.GetBlockHeader(0)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, byte(1), h.BlockHash[0])
}

func TestMemoryStore_WriterIsExclusiveUntilCommit(t *testing.T) {
	s := NewMemoryStore()
	wtx := s.BeginRW()

	acquired := make(chan struct{})
	go func() {
		w2 := s.BeginRW()
		close(acquired)
		w2.Rollback()
	}()

	select {
	case <-acquired:
		t.Fatal("second BeginRW acquired the writer lock before the first transaction released it")
	default:
	}

	wtx.Rollback()
	<-acquired
}

func TestMemoryStore_UseAfterCommitIsRejected(t *testing.T) {
	s := NewMemoryStore()
	wtx := s.BeginRW()
	wtx, err := wtx.AppendHeader(0, header(0, 1, 0))
	require.NoError(t, err)
	require.NoError(t, wtx.Commit())

	_, err = wtx.AppendHeader(1, header(1, 2, 1))
	var inconsistency *DBInconsistencyError
	assert.ErrorAs(t, err, &inconsistency)
}

func TestMemoryStore_RevertHeaderRollsBackMarkerAndReturnsEntry(t *testing.T) {
	s := NewMemoryStore()
	wtx := s.BeginRW()
	wtx, err := wtx.AppendHeader(0, header(0, 1, 0))
	require.NoError(t, err)
	require.NoError(t, wtx.Commit())

	wtx = s.BeginRW()
	wtx, got, err := wtx.RevertHeader(0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, byte(1), got.BlockHash[0])

	wtx, err = wtx.InsertOmmerHeader(got.BlockHash, got)
	require.NoError(t, err)
	require.NoError(t, wtx.Commit())

	ro := s.BeginRO()
	defer ro.Discard()
	marker, err := ro.HeaderMarker()
	require.NoError(t, err)
	assert.Equal(t, starknetapi.BlockNumber(0), marker)

	ommer, err := ro.GetOmmerHeader(got.BlockHash)
	require.NoError(t, err)
	require.NotNil(t, ommer)
}

func TestMemoryStore_ReadersSeePriorSnapshotDuringConcurrentWrite(t *testing.T) {
	s := NewMemoryStore()
	wtx := s.BeginRW()
	wtx, err := wtx.AppendHeader(0, header(0, 1, 0))
	require.NoError(t, err)
	require.NoError(t, wtx.Commit())

	wtx = s.BeginRW()
	wtx, err = wtx.AppendHeader(1, header(1, 2, 1))
	require.NoError(t, err)

	ro := s.BeginRO()
	marker, err := ro.HeaderMarker()
	require.NoError(t, err)
	assert.Equal(t, starknetapi.BlockNumber(1), marker, "reader must not observe the uncommitted write")
	ro.Discard()

	require.NoError(t, wtx.Commit())
}
