package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocksum-labs/blocksum-go/pkg/hasher"
	"github.com/blocksum-labs/blocksum-go/pkg/merkle"
	"github.com/blocksum-labs/blocksum-go/pkg/persistence"
)

func newTestTreeRecord(t *testing.T, numBlocks int) *persistence.TreeRecord {
	t.Helper()

	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = []byte(fmt.Sprintf("block-%d", i))
	}

	tree, err := merkle.BuildMerkleTree(blocks, hasher.SHA256{})
	require.NoError(t, err)

	record, err := persistence.NewTreeRecord(tree)
	require.NoError(t, err)
	return record
}

func newTestProofRecord(t *testing.T, treeID string, leafIndex int) *persistence.ProofRecord {
	t.Helper()

	blocks := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	tree, err := merkle.BuildMerkleTree(blocks, hasher.SHA256{})
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)
	proof, err := tree.GenerateProof(leafIndex)
	require.NoError(t, err)

	return persistence.NewProofRecord(treeID, proof, root)
}

func TestMemoryPersistence_SaveAndLoadTreeRecord(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	record := newTestTreeRecord(t, 4)
	require.NoError(t, mp.SaveTreeRecord(record))

	loaded, err := mp.LoadTreeRecord(record.TreeID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, record.TreeID, loaded.TreeID)
	assert.Equal(t, record.Root, loaded.Root)
	assert.Equal(t, record.HashAlgorithm, loaded.HashAlgorithm)
	assert.Equal(t, record.Leaves, loaded.Leaves)
}

func TestMemoryPersistence_LoadTreeRecord_NotFound(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	loaded, err := mp.LoadTreeRecord("no-such-tree")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMemoryPersistence_SaveNilRecords(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	require.Error(t, mp.SaveTreeRecord(nil))
	require.Error(t, mp.SaveProofRecord(nil))
	require.Error(t, mp.SaveTreeRecord(&persistence.TreeRecord{}))
}

func TestMemoryPersistence_ListTreeRecordsSorted(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	r1 := newTestTreeRecord(t, 2)
	r1.CreatedAt = 100
	r2 := newTestTreeRecord(t, 3)
	r2.CreatedAt = 50
	r3 := newTestTreeRecord(t, 4)
	r3.CreatedAt = 200

	for _, r := range []*persistence.TreeRecord{r1, r2, r3} {
		require.NoError(t, mp.SaveTreeRecord(r))
	}

	records, err := mp.ListTreeRecords()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, r2.TreeID, records[0].TreeID)
	assert.Equal(t, r1.TreeID, records[1].TreeID)
	assert.Equal(t, r3.TreeID, records[2].TreeID)
}

func TestMemoryPersistence_DeleteTreeRecordCascades(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	record := newTestTreeRecord(t, 4)
	require.NoError(t, mp.SaveTreeRecord(record))
	require.NoError(t, mp.SaveProofRecord(newTestProofRecord(t, record.TreeID, 1)))

	require.NoError(t, mp.DeleteTreeRecord(record.TreeID))

	loaded, err := mp.LoadTreeRecord(record.TreeID)
	require.NoError(t, err)
	require.Nil(t, loaded)

	proof, err := mp.LoadProofRecord(record.TreeID, 1)
	require.NoError(t, err)
	require.Nil(t, proof)

	// Deleting again is idempotent
	require.NoError(t, mp.DeleteTreeRecord(record.TreeID))
}

func TestMemoryPersistence_SaveAndLoadProofRecord(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	record := newTestProofRecord(t, "tree-1", 2)
	require.NoError(t, mp.SaveProofRecord(record))

	loaded, err := mp.LoadProofRecord("tree-1", 2)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.Steps, loaded.Steps)
	assert.Equal(t, record.Root, loaded.Root)

	missing, err := mp.LoadProofRecord("tree-1", 3)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryPersistence_ListProofRecordsSorted(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	for _, idx := range []int{3, 0, 2} {
		require.NoError(t, mp.SaveProofRecord(newTestProofRecord(t, "tree-1", idx)))
	}
	require.NoError(t, mp.SaveProofRecord(newTestProofRecord(t, "tree-2", 1)))

	records, err := mp.ListProofRecords("tree-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 0, records[0].LeafIndex)
	assert.Equal(t, 2, records[1].LeafIndex)
	assert.Equal(t, 3, records[2].LeafIndex)
}

func TestMemoryPersistence_DeepCopies(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	record := newTestTreeRecord(t, 3)
	require.NoError(t, mp.SaveTreeRecord(record))

	// Mutate the caller's copy after saving
	record.Leaves[0][0] ^= 0xFF

	loaded, err := mp.LoadTreeRecord(record.TreeID)
	require.NoError(t, err)
	require.NotEqual(t, record.Leaves[0], loaded.Leaves[0])

	// Mutate the loaded copy; the store must be unaffected
	loaded.Leaves[1][0] ^= 0xFF
	reloaded, err := mp.LoadTreeRecord(record.TreeID)
	require.NoError(t, err)
	require.NotEqual(t, loaded.Leaves[1], reloaded.Leaves[1])
}

func TestMemoryPersistence_ClosedOperations(t *testing.T) {
	mp := NewMemoryPersistence()
	require.NoError(t, mp.HealthCheck())
	require.NoError(t, mp.Close())
	require.NoError(t, mp.Close()) // Idempotent

	require.Error(t, mp.HealthCheck())
	require.Error(t, mp.SaveTreeRecord(newTestTreeRecord(t, 2)))

	_, err := mp.LoadTreeRecord("any")
	require.Error(t, err)

	_, err = mp.ListTreeRecords()
	require.Error(t, err)
}

func TestMemoryPersistence_ConcurrentAccess(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	record := newTestTreeRecord(t, 4)
	require.NoError(t, mp.SaveTreeRecord(record))

	// Pre-build proof records on the test goroutine; the workers only
	// exercise the store itself.
	proofRecords := make([]*persistence.ProofRecord, 4)
	for i := range proofRecords {
		proofRecords[i] = newTestProofRecord(t, record.TreeID, i)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			if i%2 == 0 {
				_ = mp.SaveProofRecord(proofRecords[i%4])
			} else {
				_, _ = mp.LoadTreeRecord(record.TreeID)
				_, _ = mp.ListProofRecords(record.TreeID)
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, mp.HealthCheck())
}
