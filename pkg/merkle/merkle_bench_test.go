package merkle

import (
	"fmt"
	"testing"

	"github.com/blocksum-labs/blocksum-go/pkg/hasher"
)

// BenchmarkBuildMerkleTree benchmarks tree construction with various sizes
func BenchmarkBuildMerkleTree(b *testing.B) {
	sizes := []int{16, 64, 256, 1024}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Blocks_%d", size), func(b *testing.B) {
			blocks := createTestBlocks(size)
			h := hasher.SHA256{}
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildMerkleTree(blocks, h)
			}
		})
	}
}

// BenchmarkGenerateProof benchmarks proof generation
func BenchmarkGenerateProof(b *testing.B) {
	sizes := []int{16, 64, 256, 1024}

	for _, size := range sizes {
		blocks := createTestBlocks(size)
		tree, _ := BuildMerkleTree(blocks, hasher.SHA256{})

		b.Run(fmt.Sprintf("Blocks_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProof(i % size)
			}
		})
	}
}

// BenchmarkVerifyProof benchmarks proof verification
func BenchmarkVerifyProof(b *testing.B) {
	sizes := []int{16, 64, 256, 1024}

	for _, size := range sizes {
		blocks := createTestBlocks(size)
		h := hasher.SHA256{}
		tree, _ := BuildMerkleTree(blocks, h)
		root, _ := tree.Root()
		proof, _ := tree.GenerateProof(0)

		b.Run(fmt.Sprintf("Blocks_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = VerifyProof(blocks[0], 0, proof, root, h)
			}
		})
	}
}

// BenchmarkHashers benchmarks the hasher implementations over 64-byte inputs
func BenchmarkHashers(b *testing.B) {
	input := make([]byte, 64)

	for _, name := range hasher.SupportedAlgorithms() {
		h, err := hasher.New(name)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = h.Digest(input)
			}
		})
	}
}
