package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocksum-labs/blocksum-go/pkg/hasher"
	"github.com/blocksum-labs/blocksum-go/pkg/merkle"
)

func buildTestTree(t *testing.T, numBlocks int) *merkle.MerkleTree {
	t.Helper()

	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = []byte(strings.Repeat("x", i+1))
	}

	tree, err := merkle.BuildMerkleTree(blocks, hasher.SHA256{})
	require.NoError(t, err)
	return tree
}

// TestMarshalUnmarshalTreeRecord_RoundTrip tests JSON marshaling/unmarshaling
func TestMarshalUnmarshalTreeRecord_RoundTrip(t *testing.T) {
	tree := buildTestTree(t, 5)

	original, err := NewTreeRecord(tree)
	require.NoError(t, err)
	require.NotEmpty(t, original.TreeID)

	data, err := MarshalTreeRecord(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Digests must be stored as hex, not base64 byte arrays
	require.Contains(t, string(data), original.Root.Hex())

	restored, err := UnmarshalTreeRecord(data)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, original.TreeID, restored.TreeID)
	assert.Equal(t, original.Root, restored.Root)
	assert.Equal(t, original.HashAlgorithm, restored.HashAlgorithm)
	assert.Equal(t, original.LeafCount, restored.LeafCount)
	assert.Equal(t, original.Leaves, restored.Leaves)
	assert.Equal(t, original.CreatedAt, restored.CreatedAt)
}

// TestNewTreeRecordEmptyTree tests that empty trees cannot be recorded
func TestNewTreeRecordEmptyTree(t *testing.T) {
	tree, err := merkle.BuildMerkleTree(nil, hasher.SHA256{})
	require.NoError(t, err)

	record, err := NewTreeRecord(tree)
	require.ErrorIs(t, err, merkle.ErrEmptyTree)
	require.Nil(t, record)
}

// TestMarshalUnmarshalProofRecord_RoundTrip tests JSON marshaling/unmarshaling
func TestMarshalUnmarshalProofRecord_RoundTrip(t *testing.T) {
	tree := buildTestTree(t, 4)
	root, err := tree.Root()
	require.NoError(t, err)
	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)

	original := NewProofRecord("tree-123", proof, root)

	data, err := MarshalProofRecord(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := UnmarshalProofRecord(data)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, original.TreeID, restored.TreeID)
	assert.Equal(t, original.LeafIndex, restored.LeafIndex)
	assert.Equal(t, original.LeafCount, restored.LeafCount)
	assert.Equal(t, original.Leaf, restored.Leaf)
	assert.Equal(t, original.Steps, restored.Steps)
	assert.Equal(t, original.Root, restored.Root)
}

// TestProofRecordToMerkleProofVerifies tests that a restored proof still verifies
func TestProofRecordToMerkleProofVerifies(t *testing.T) {
	blocks := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	tree, err := merkle.BuildMerkleTree(blocks, hasher.SHA256{})
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)
	proof, err := tree.GenerateProof(1)
	require.NoError(t, err)

	record := NewProofRecord("tree-123", proof, root)
	data, err := MarshalProofRecord(record)
	require.NoError(t, err)
	restored, err := UnmarshalProofRecord(data)
	require.NoError(t, err)

	ok, err := merkle.VerifyProof(blocks[1], 1, restored.ToMerkleProof(), restored.Root, hasher.SHA256{})
	require.NoError(t, err)
	require.True(t, ok)
}

// TestMarshalNilAndEmptyInputs tests the nil/empty guards
func TestMarshalNilAndEmptyInputs(t *testing.T) {
	_, err := MarshalTreeRecord(nil)
	require.Error(t, err)

	_, err = MarshalProofRecord(nil)
	require.Error(t, err)

	_, err = UnmarshalTreeRecord(nil)
	require.Error(t, err)

	_, err = UnmarshalProofRecord([]byte{})
	require.Error(t, err)

	_, err = UnmarshalTreeRecord([]byte("{not json"))
	require.Error(t, err)
}

// TestUnmarshalTreeRecordRejectsBadDigest tests that corrupt digests are rejected
func TestUnmarshalTreeRecordRejectsBadDigest(t *testing.T) {
	_, err := UnmarshalTreeRecord([]byte(`{"treeId":"x","root":"abcd"}`))
	require.Error(t, err)
}

// TestUniqueTreeIDs tests that each record gets its own UUID
func TestUniqueTreeIDs(t *testing.T) {
	tree := buildTestTree(t, 2)

	r1, err := NewTreeRecord(tree)
	require.NoError(t, err)
	r2, err := NewTreeRecord(tree)
	require.NoError(t, err)

	require.NotEqual(t, r1.TreeID, r2.TreeID)
	require.Equal(t, r1.Root, r2.Root)
}
