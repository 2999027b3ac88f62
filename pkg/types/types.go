package types

import (
	"encoding/hex"
	"fmt"
)

// DigestSize is the fixed output size of every supported hash function, in bytes.
const DigestSize = 32

// Digest is a fixed-size 256-bit hash output. Equality is byte-wise.
// Digests render as lowercase hexadecimal and round-trip through JSON
// as hex strings so persisted records stay human-readable.
type Digest [DigestSize]byte

// Hex returns the digest as a lowercase hexadecimal string without a prefix.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether every byte of the digest is zero.
// A zero digest is never a legitimate hash output in this system and is
// used only as a sentinel for "unset".
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler, emitting lowercase hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The input must be
// exactly 64 hex characters; anything else is rejected.
func (d *Digest) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid digest hex: %w", err)
	}
	if len(decoded) != DigestSize {
		return fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(decoded))
	}
	copy(d[:], decoded)
	return nil
}

// DigestFromHex parses a lowercase or uppercase hex string into a Digest.
func DigestFromHex(s string) (Digest, error) {
	var d Digest
	if err := d.UnmarshalText([]byte(s)); err != nil {
		return Digest{}, err
	}
	return d, nil
}

// DigestFromBytes copies a raw 32-byte slice into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return Digest{}, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Side indicates which operand position a proof-step sibling takes when
// two digests are recombined into their parent.
type Side string

const (
	// SideLeft means the sibling is the left operand: parent = H(sibling || current).
	SideLeft Side = "left"

	// SideRight means the sibling is the right operand: parent = H(current || sibling).
	SideRight Side = "right"
)

// Valid reports whether the side is one of the two defined values.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// String implements fmt.Stringer.
func (s Side) String() string {
	return string(s)
}

// ProofStep is one element of a Merkle proof: the sibling digest at a given
// level and the operand position it takes during recombination.
type ProofStep struct {
	// Sibling is the digest paired with the running hash at this level.
	Sibling Digest `json:"sibling"`

	// Side is the operand position of Sibling when recombining.
	Side Side `json:"side"`
}
