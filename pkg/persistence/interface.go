package persistence

// ITreePersistence defines the interface for archiving built trees and
// generated proofs across CLI invocations. All implementations must be
// thread-safe: independent verifications may read concurrently.
//
// The interface supports:
// - Tree record management (save, load, list, delete)
// - Proof record management per tree (save, load, list, delete)
// - Lifecycle management (close, health check)
//
// Load operations return (nil, nil) when a record does not exist; errors
// are reserved for storage failures.
type ITreePersistence interface {
	// Tree Record Management

	// SaveTreeRecord persists a tree record indexed by its TreeID.
	// Overwrites any existing record with the same ID (idempotent).
	SaveTreeRecord(record *TreeRecord) error

	// LoadTreeRecord retrieves a tree record by ID.
	// Returns nil if the record doesn't exist, error only on storage failure.
	LoadTreeRecord(treeID string) (*TreeRecord, error)

	// ListTreeRecords returns all persisted tree records sorted by creation
	// time (ascending), ID as tie-break. Returns an empty slice if none exist.
	ListTreeRecords() ([]*TreeRecord, error)

	// DeleteTreeRecord removes a tree record and all proofs stored under it.
	// Idempotent - returns nil if the record doesn't exist.
	DeleteTreeRecord(treeID string) error

	// Proof Record Management

	// SaveProofRecord persists a proof record indexed by (TreeID, LeafIndex).
	// Overwrites any existing record for the same leaf (idempotent).
	SaveProofRecord(record *ProofRecord) error

	// LoadProofRecord retrieves a proof record by tree ID and leaf index.
	// Returns nil if the record doesn't exist, error only on storage failure.
	LoadProofRecord(treeID string, leafIndex int) (*ProofRecord, error)

	// ListProofRecords returns all proof records stored under a tree,
	// sorted by leaf index (ascending). Returns an empty slice if none exist.
	ListProofRecords(treeID string) ([]*ProofRecord, error)

	// DeleteProofRecord removes a single proof record.
	// Idempotent - returns nil if the record doesn't exist.
	DeleteProofRecord(treeID string, leafIndex int) error

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
