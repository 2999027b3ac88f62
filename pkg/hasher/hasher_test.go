package hasher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blocksum-labs/blocksum-go/pkg/types"
)

// TestNewReturnsRegisteredHashers tests the algorithm registry
func TestNewReturnsRegisteredHashers(t *testing.T) {
	for _, name := range SupportedAlgorithms() {
		t.Run(name, func(t *testing.T) {
			h, err := New(name)
			require.NoError(t, err)
			require.Equal(t, name, h.Name())
		})
	}
}

// TestNewRejectsUnknownAlgorithm tests rejection of unregistered names
func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	_, err := New("md5")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported hash algorithm")

	_, err = New("")
	require.Error(t, err)
}

// TestDigestDeterminism tests that every hasher is a pure function
func TestDigestDeterminism(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		[]byte("a"),
		[]byte("the same input hashed twice"),
	}

	for _, name := range SupportedAlgorithms() {
		h, err := New(name)
		require.NoError(t, err)

		t.Run(name, func(t *testing.T) {
			for _, input := range inputs {
				require.Equal(t, h.Digest(input), h.Digest(input))
			}
		})
	}
}

// TestDigestDistinguishesInputs tests that distinct inputs produce distinct digests
func TestDigestDistinguishesInputs(t *testing.T) {
	for _, name := range SupportedAlgorithms() {
		h, err := New(name)
		require.NoError(t, err)

		t.Run(name, func(t *testing.T) {
			require.NotEqual(t, h.Digest([]byte("a")), h.Digest([]byte("b")))
			require.NotEqual(t, h.Digest([]byte("ab")), h.Digest([]byte("ba")))
			require.NotEqual(t, h.Digest(nil), h.Digest([]byte{0}))
		})
	}
}

// TestSHA256KnownVectors tests SHA-256 against published test vectors
func TestSHA256KnownVectors(t *testing.T) {
	h := SHA256{}

	testCases := []struct {
		input    string
		expected string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"a", "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tc := range testCases {
		expected, err := types.DigestFromHex(tc.expected)
		require.NoError(t, err)
		require.Equal(t, expected, h.Digest([]byte(tc.input)), "input %q", tc.input)
	}
}

// TestKeccak256DiffersFromSHA3 tests that the two SHA3-family hashers disagree,
// guarding against accidentally wiring both names to the same primitive
func TestKeccak256DiffersFromSHA3(t *testing.T) {
	input := []byte("padding matters")
	require.NotEqual(t, Keccak256{}.Digest(input), SHA3_256{}.Digest(input))
}

// TestAlgorithmsProduceDistinctDigests tests that each algorithm yields its own digest
func TestAlgorithmsProduceDistinctDigests(t *testing.T) {
	input := []byte("same input, different algorithms")

	seen := make(map[types.Digest]string)
	for _, name := range SupportedAlgorithms() {
		h, err := New(name)
		require.NoError(t, err)

		d := h.Digest(input)
		if prev, ok := seen[d]; ok {
			t.Fatalf("algorithms %s and %s produced the same digest", prev, name)
		}
		seen[d] = name
	}
}
