package persistence

import (
	"time"

	"github.com/google/uuid"

	"github.com/blocksum-labs/blocksum-go/pkg/merkle"
	"github.com/blocksum-labs/blocksum-go/pkg/types"
)

// TreeRecord is the persisted summary of a built merkle tree: its root, the
// hash algorithm, and the leaf digests. Storing the leaf digests (not the
// raw blocks) is enough to regenerate any proof later via
// merkle.NewMerkleTreeFromLeaves.
type TreeRecord struct {
	// TreeID is a UUID assigned when the record is created
	TreeID string `json:"treeId"`

	// Root is the merkle root of the recorded tree
	Root types.Digest `json:"root"`

	// HashAlgorithm is the hasher.New name the tree was built with
	HashAlgorithm string `json:"hashAlgorithm"`

	// LeafCount is the number of leaves; kept explicit so listings don't
	// have to load the full leaf slice to display it
	LeafCount int `json:"leafCount"`

	// Leaves are the leaf digests in block order
	Leaves []types.Digest `json:"leaves"`

	// CreatedAt is the Unix timestamp when the record was created
	CreatedAt int64 `json:"createdAt"`
}

// NewTreeRecord creates a record for a built tree under a fresh UUID.
// Returns merkle.ErrEmptyTree for trees with no leaves: an empty tree has
// no root and therefore nothing worth archiving.
func NewTreeRecord(mt *merkle.MerkleTree) (*TreeRecord, error) {
	root, err := mt.Root()
	if err != nil {
		return nil, err
	}

	return &TreeRecord{
		TreeID:        uuid.New().String(),
		Root:          root,
		HashAlgorithm: mt.Algorithm(),
		LeafCount:     mt.LeafCount(),
		Leaves:        mt.Leaves(),
		CreatedAt:     time.Now().Unix(),
	}, nil
}

// ProofRecord is a persisted inclusion proof, bound to the tree record it
// was generated from.
type ProofRecord struct {
	// TreeID references the TreeRecord this proof belongs to
	TreeID string `json:"treeId"`

	// LeafIndex is the proven leaf's position in block order
	LeafIndex int `json:"leafIndex"`

	// LeafCount mirrors the proof's leaf count for standalone verification
	LeafCount int `json:"leafCount"`

	// Leaf is the proven leaf's digest
	Leaf types.Digest `json:"leaf"`

	// Steps are the ordered proof steps
	Steps []types.ProofStep `json:"steps"`

	// Root is the tree root the proof verifies against, carried so a
	// stored proof is self-contained
	Root types.Digest `json:"root"`

	// CreatedAt is the Unix timestamp when the record was created
	CreatedAt int64 `json:"createdAt"`
}

// NewProofRecord binds a generated proof to a tree record.
func NewProofRecord(treeID string, proof *merkle.MerkleProof, root types.Digest) *ProofRecord {
	return &ProofRecord{
		TreeID:    treeID,
		LeafIndex: proof.LeafIndex,
		LeafCount: proof.LeafCount,
		Leaf:      proof.Leaf,
		Steps:     proof.Steps,
		Root:      root,
		CreatedAt: time.Now().Unix(),
	}
}

// ToMerkleProof converts the record back into the proof the merkle package
// verifies.
func (pr *ProofRecord) ToMerkleProof() *merkle.MerkleProof {
	return &merkle.MerkleProof{
		LeafIndex: pr.LeafIndex,
		LeafCount: pr.LeafCount,
		Leaf:      pr.Leaf,
		Steps:     pr.Steps,
	}
}
