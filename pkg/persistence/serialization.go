package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalTreeRecord serializes a TreeRecord to JSON bytes.
// Digests serialize as lowercase hex via types.Digest text marshaling.
func MarshalTreeRecord(record *TreeRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil TreeRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TreeRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalTreeRecord deserializes a TreeRecord from JSON bytes.
func UnmarshalTreeRecord(data []byte) (*TreeRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record TreeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to TreeRecord: %w", err)
	}

	return &record, nil
}

// MarshalProofRecord serializes a ProofRecord to JSON bytes.
func MarshalProofRecord(record *ProofRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil ProofRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ProofRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalProofRecord deserializes a ProofRecord from JSON bytes.
func UnmarshalProofRecord(data []byte) (*ProofRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record ProofRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ProofRecord: %w", err)
	}

	return &record, nil
}
