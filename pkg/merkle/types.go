package merkle

import (
	"github.com/blocksum-labs/blocksum-go/pkg/types"
)

// MerkleTree is a binary merkle tree over an ordered sequence of data blocks.
// It is built once and immutable afterwards, so it is safe for concurrent
// reads (root lookups and proof generation) without synchronization.
type MerkleTree struct {
	// algorithm is the hash algorithm name the tree was built with
	algorithm string

	// levels stores every tree level, leaves first.
	// levels[0] = leaf digests, levels[len-1] = the single-element root level.
	// An empty tree has no levels at all.
	levels [][]types.Digest
}

// MerkleProof proves that one leaf belongs to a tree with a given root.
// A proof is a fully-owned snapshot: it stays valid after the tree it was
// generated from is discarded.
type MerkleProof struct {
	// LeafIndex is the position of the proven leaf in the original block order
	LeafIndex int `json:"leafIndex"`

	// LeafCount is the total number of leaves in the tree the proof was
	// generated from. Verification uses it to cross-check the proof length.
	LeafCount int `json:"leafCount"`

	// Leaf is the digest of the proven block, recorded for inspection and
	// logging. Verification recomputes it from the raw block instead of
	// trusting this field.
	Leaf types.Digest `json:"leaf"`

	// Steps contains the sibling digests from the leaf level up to (but not
	// including) the root level, in recombination order.
	Steps []types.ProofStep `json:"steps"`
}
