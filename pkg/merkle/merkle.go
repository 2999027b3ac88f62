// Package merkle implements binary merkle tree construction, inclusion proof
// generation, and proof verification over ordered collections of data blocks.
//
// Trees are built bottom-up by pairwise hashing: each internal node is the
// digest of its left child's bytes concatenated with its right child's bytes.
// When a level has an odd number of nodes, the last node is paired with
// itself (parent = H(last || last)). Self-pairing keeps every proof at a
// uniform length for a given leaf count, so verification never has to guess
// which levels contributed a step.
package merkle

import (
	"errors"
	"fmt"

	"github.com/blocksum-labs/blocksum-go/pkg/hasher"
	"github.com/blocksum-labs/blocksum-go/pkg/types"
)

var (
	// ErrEmptyTree is returned when reading the root of a tree built from
	// zero blocks. The root is deliberately not defaulted to a zero digest:
	// a zero digest is indistinguishable from a real hash.
	ErrEmptyTree = errors.New("merkle tree has no leaves")

	// ErrIndexOutOfRange is returned when a proof is requested for a leaf
	// index outside [0, leafCount).
	ErrIndexOutOfRange = errors.New("leaf index out of range")

	// ErrMalformedProof is returned when a proof fails structural validation
	// before any hashing happens. A structurally valid proof that simply does
	// not match the root is NOT an error; verification reports false instead.
	ErrMalformedProof = errors.New("malformed merkle proof")
)

// BuildMerkleTree builds a merkle tree from ordered data blocks.
// Block order is significant: it fixes the leaf indices used for proofs,
// and reordering blocks changes the root.
//
// An empty block sequence is valid and produces an empty tree whose Root
// lookup returns ErrEmptyTree.
func BuildMerkleTree(blocks [][]byte, h hasher.Hasher) (*MerkleTree, error) {
	if h == nil {
		return nil, fmt.Errorf("cannot build merkle tree with nil hasher")
	}

	leaves := make([]types.Digest, len(blocks))
	for i, block := range blocks {
		leaves[i] = h.Digest(block)
	}

	return newFromLeaves(leaves, h), nil
}

// NewMerkleTreeFromLeaves rebuilds a tree from already-hashed leaf digests,
// e.g. leaves reloaded from a persisted tree record. The resulting tree is
// identical to the one BuildMerkleTree produced from the original blocks.
//
// The input slice is copied; the tree never aliases caller memory.
func NewMerkleTreeFromLeaves(leaves []types.Digest, h hasher.Hasher) (*MerkleTree, error) {
	if h == nil {
		return nil, fmt.Errorf("cannot build merkle tree with nil hasher")
	}

	owned := make([]types.Digest, len(leaves))
	copy(owned, leaves)

	return newFromLeaves(owned, h), nil
}

// newFromLeaves derives every level above the given leaf level.
// The leaves slice is owned by the caller-facing constructors.
func newFromLeaves(leaves []types.Digest, h hasher.Hasher) *MerkleTree {
	mt := &MerkleTree{algorithm: h.Name()}

	if len(leaves) == 0 {
		return mt
	}

	levels := [][]types.Digest{leaves}

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([]types.Digest, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]

			// Self-pair the trailing node of an odd-sized level.
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}

			nextLevel = append(nextLevel, hashPair(h, left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	mt.levels = levels
	return mt
}

// Root returns the tree's root digest, or ErrEmptyTree for a zero-leaf tree.
// A single-leaf tree's root equals that leaf's digest; no internal hashing
// is performed.
func (mt *MerkleTree) Root() (types.Digest, error) {
	if len(mt.levels) == 0 {
		return types.Digest{}, ErrEmptyTree
	}
	return mt.levels[len(mt.levels)-1][0], nil
}

// LeafCount returns the number of leaves the tree was built from.
func (mt *MerkleTree) LeafCount() int {
	if len(mt.levels) == 0 {
		return 0
	}
	return len(mt.levels[0])
}

// Leaves returns a copy of the leaf digests in block order.
func (mt *MerkleTree) Leaves() []types.Digest {
	if len(mt.levels) == 0 {
		return nil
	}
	leaves := make([]types.Digest, len(mt.levels[0]))
	copy(leaves, mt.levels[0])
	return leaves
}

// Algorithm returns the hash algorithm name the tree was built with.
func (mt *MerkleTree) Algorithm() string {
	return mt.algorithm
}

// GenerateProof creates an inclusion proof for the leaf at the given index.
// The proof contains one step per non-root level: the sibling digest and the
// operand side it takes during recombination. Under the self-pairing policy
// the sibling of a trailing odd node is the node itself, reported with
// SideRight.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	leafCount := mt.LeafCount()
	if leafIndex < 0 || leafIndex >= leafCount {
		return nil, fmt.Errorf("%w: index %d, tree has %d leaves", ErrIndexOutOfRange, leafIndex, leafCount)
	}

	steps := make([]types.ProofStep, 0, len(mt.levels)-1)
	index := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		var siblingIndex int
		var side types.Side
		if index%2 == 0 {
			// Current node is the left operand, sibling sits to the right.
			siblingIndex = index + 1
			side = types.SideRight
		} else {
			siblingIndex = index - 1
			side = types.SideLeft
		}

		// Trailing node of an odd-sized level: the sibling is the node itself.
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		steps = append(steps, types.ProofStep{
			Sibling: currentLevel[siblingIndex],
			Side:    side,
		})

		index /= 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		LeafCount: leafCount,
		Leaf:      mt.levels[0][leafIndex],
		Steps:     steps,
	}, nil
}

// VerifyProof checks that leafData is the block at leafIndex of a tree whose
// root is expectedRoot. It re-hashes the block and folds in each proof step
// in order, then compares the result to expectedRoot byte-wise.
//
// Verification is static: it needs only the proof, not the tree.
//
// A false return with a nil error is the normal "does not match" outcome.
// A non-nil error (wrapping ErrMalformedProof) means the proof failed
// structural validation and was never hashed: nil proof, index disagreement,
// an invalid side flag, or a step count that cannot correspond to a tree
// with the claimed leaf count.
func VerifyProof(leafData []byte, leafIndex int, proof *MerkleProof, expectedRoot types.Digest, h hasher.Hasher) (bool, error) {
	if h == nil {
		return false, fmt.Errorf("cannot verify merkle proof with nil hasher")
	}
	if proof == nil {
		return false, fmt.Errorf("%w: proof is nil", ErrMalformedProof)
	}
	if proof.LeafCount < 1 {
		return false, fmt.Errorf("%w: leaf count %d", ErrMalformedProof, proof.LeafCount)
	}
	if leafIndex != proof.LeafIndex {
		return false, fmt.Errorf("%w: proof is for leaf %d, verification requested for leaf %d",
			ErrMalformedProof, proof.LeafIndex, leafIndex)
	}
	if leafIndex < 0 || leafIndex >= proof.LeafCount {
		return false, fmt.Errorf("%w: leaf index %d outside [0, %d)", ErrMalformedProof, leafIndex, proof.LeafCount)
	}
	if expected := ProofLength(proof.LeafCount); len(proof.Steps) != expected {
		return false, fmt.Errorf("%w: %d steps, expected %d for %d leaves",
			ErrMalformedProof, len(proof.Steps), expected, proof.LeafCount)
	}
	for i, step := range proof.Steps {
		if !step.Side.Valid() {
			return false, fmt.Errorf("%w: step %d has invalid side %q", ErrMalformedProof, i, step.Side)
		}
	}

	current := h.Digest(leafData)
	for _, step := range proof.Steps {
		if step.Side == types.SideRight {
			current = hashPair(h, current, step.Sibling)
		} else {
			current = hashPair(h, step.Sibling, current)
		}
	}

	return current == expectedRoot, nil
}

// ProofLength returns the number of proof steps every proof carries for a
// tree with the given leaf count: one per non-root level. Zero for empty
// and single-leaf trees.
func ProofLength(leafCount int) int {
	if leafCount < 2 {
		return 0
	}
	length := 0
	for width := leafCount; width > 1; width = (width + 1) / 2 {
		length++
	}
	return length
}

// hashPair computes H(left || right) for two digests.
func hashPair(h hasher.Hasher, left, right types.Digest) types.Digest {
	data := make([]byte, 0, 2*types.DigestSize)
	data = append(data, left[:]...)
	data = append(data, right[:]...)
	return h.Digest(data)
}
