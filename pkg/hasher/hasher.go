package hasher

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/blocksum-labs/blocksum-go/pkg/types"
)

// Algorithm names accepted by New and recorded in persisted tree records.
const (
	AlgorithmSHA256    = "sha256"
	AlgorithmKeccak256 = "keccak256"
	AlgorithmSHA3_256  = "sha3-256"
)

// Hasher is the single capability the tree logic depends on: a deterministic
// 256-bit hash over arbitrary bytes. Implementations must be pure (no state
// retained between calls) and safe to call concurrently.
//
// Swapping the implementation changes every digest in a tree but never the
// tree or proof structure.
type Hasher interface {
	// Digest hashes data into a fixed 32-byte digest.
	// The empty byte sequence is valid input with a defined output.
	Digest(data []byte) types.Digest

	// Name returns the algorithm identifier, suitable for persistence
	// and for round-tripping through New.
	Name() string
}

// New returns the Hasher registered under the given algorithm name.
func New(algorithm string) (Hasher, error) {
	switch algorithm {
	case AlgorithmSHA256:
		return SHA256{}, nil
	case AlgorithmKeccak256:
		return Keccak256{}, nil
	case AlgorithmSHA3_256:
		return SHA3_256{}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s (supported: %s, %s, %s)",
			algorithm, AlgorithmSHA256, AlgorithmKeccak256, AlgorithmSHA3_256)
	}
}

// SupportedAlgorithms returns the algorithm names accepted by New.
func SupportedAlgorithms() []string {
	return []string{AlgorithmSHA256, AlgorithmKeccak256, AlgorithmSHA3_256}
}

// SHA256 hashes with the standard library SHA-256. This is the default
// algorithm for new trees.
type SHA256 struct{}

func (SHA256) Digest(data []byte) types.Digest {
	return types.Digest(sha256.Sum256(data))
}

func (SHA256) Name() string {
	return AlgorithmSHA256
}

// Keccak256 hashes with legacy Keccak-256, the variant used across the
// Ethereum ecosystem. Choose this when roots must match Solidity-side
// keccak256 computations.
type Keccak256 struct{}

func (Keccak256) Digest(data []byte) types.Digest {
	return types.Digest(crypto.Keccak256Hash(data))
}

func (Keccak256) Name() string {
	return AlgorithmKeccak256
}

// SHA3_256 hashes with FIPS-202 SHA3-256. Note this is NOT the same
// function as Keccak256: the two differ in padding and produce
// different digests for the same input.
type SHA3_256 struct{}

func (SHA3_256) Digest(data []byte) types.Digest {
	return types.Digest(sha3.Sum256(data))
}

func (SHA3_256) Name() string {
	return AlgorithmSHA3_256
}
