package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blocksum-labs/blocksum-go/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of ITreePersistence.
// All data is lost when the process exits, which makes it suitable for
// tests and for one-shot CLI runs that don't ask for a durable archive.
//
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Tree records: treeID -> TreeRecord
	trees map[string]*persistence.TreeRecord

	// Proof records: treeID -> leafIndex -> ProofRecord
	proofs map[string]map[int]*persistence.ProofRecord

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		trees:  make(map[string]*persistence.TreeRecord),
		proofs: make(map[string]map[int]*persistence.ProofRecord),
	}
}

// SaveTreeRecord persists a tree record.
func (m *MemoryPersistence) SaveTreeRecord(record *persistence.TreeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TreeRecord")
	}
	if record.TreeID == "" {
		return fmt.Errorf("cannot save TreeRecord without a TreeID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.trees[record.TreeID] = deepCopyTreeRecord(record)
	return nil
}

// LoadTreeRecord retrieves a tree record by ID.
func (m *MemoryPersistence) LoadTreeRecord(treeID string) (*persistence.TreeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.trees[treeID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return deepCopyTreeRecord(record), nil
}

// ListTreeRecords returns all tree records sorted by creation time.
func (m *MemoryPersistence) ListTreeRecords() ([]*persistence.TreeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*persistence.TreeRecord, 0, len(m.trees))
	for _, record := range m.trees {
		records = append(records, deepCopyTreeRecord(record))
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].TreeID < records[j].TreeID
	})

	return records, nil
}

// DeleteTreeRecord removes a tree record and its proofs.
func (m *MemoryPersistence) DeleteTreeRecord(treeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.trees, treeID)
	delete(m.proofs, treeID)
	return nil
}

// SaveProofRecord persists a proof record.
func (m *MemoryPersistence) SaveProofRecord(record *persistence.ProofRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil ProofRecord")
	}
	if record.TreeID == "" {
		return fmt.Errorf("cannot save ProofRecord without a TreeID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	byIndex, exists := m.proofs[record.TreeID]
	if !exists {
		byIndex = make(map[int]*persistence.ProofRecord)
		m.proofs[record.TreeID] = byIndex
	}

	byIndex[record.LeafIndex] = deepCopyProofRecord(record)
	return nil
}

// LoadProofRecord retrieves a proof record by tree ID and leaf index.
func (m *MemoryPersistence) LoadProofRecord(treeID string, leafIndex int) (*persistence.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.proofs[treeID][leafIndex]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return deepCopyProofRecord(record), nil
}

// ListProofRecords returns all proofs stored under a tree, sorted by leaf index.
func (m *MemoryPersistence) ListProofRecords(treeID string) ([]*persistence.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*persistence.ProofRecord, 0, len(m.proofs[treeID]))
	for _, record := range m.proofs[treeID] {
		records = append(records, deepCopyProofRecord(record))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LeafIndex < records[j].LeafIndex
	})

	return records, nil
}

// DeleteProofRecord removes a single proof record.
func (m *MemoryPersistence) DeleteProofRecord(treeID string, leafIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.proofs[treeID], leafIndex)
	return nil
}

// Close shuts down the persistence layer and drops all data.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil // Idempotent
	}

	m.closed = true
	m.trees = nil
	m.proofs = nil
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}

// deepCopyTreeRecord copies a record so callers can't mutate stored state.
func deepCopyTreeRecord(record *persistence.TreeRecord) *persistence.TreeRecord {
	cp := *record
	if record.Leaves != nil {
		cp.Leaves = append(record.Leaves[:0:0], record.Leaves...)
	}
	return &cp
}

// deepCopyProofRecord copies a record so callers can't mutate stored state.
func deepCopyProofRecord(record *persistence.ProofRecord) *persistence.ProofRecord {
	cp := *record
	if record.Steps != nil {
		cp.Steps = append(record.Steps[:0:0], record.Steps...)
	}
	return &cp
}

// Ensure MemoryPersistence implements ITreePersistence
var _ persistence.ITreePersistence = (*MemoryPersistence)(nil)
