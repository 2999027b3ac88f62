package badger

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/blocksum-labs/blocksum-go/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixTree        = "tree:"
	keyPrefixProof       = "proof:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a durable, disk-based implementation of
// ITreePersistence backed by Badger. This is the default backend for CLI
// runs that archive trees and proofs.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for
// durability, and a background goroutine handles value-log garbage
// collection until Close.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // fsync on every write
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value-log garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// treeKey builds the storage key for a tree record
func treeKey(treeID string) []byte {
	return []byte(keyPrefixTree + treeID)
}

// proofKey builds the storage key for a proof record. The leaf index is
// zero-padded so lexicographic iteration order matches numeric order.
func proofKey(treeID string, leafIndex int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", keyPrefixProof, treeID, leafIndex))
}

// proofPrefix is the shared key prefix of every proof under a tree
func proofPrefix(treeID string) []byte {
	return []byte(keyPrefixProof + treeID + ":")
}

// SaveTreeRecord persists a tree record
func (b *BadgerPersistence) SaveTreeRecord(record *persistence.TreeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TreeRecord")
	}
	if record.TreeID == "" {
		return fmt.Errorf("cannot save TreeRecord without a TreeID")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalTreeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TreeRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(treeKey(record.TreeID), data)
	})
}

// LoadTreeRecord retrieves a tree record by ID
func (b *BadgerPersistence) LoadTreeRecord(treeID string) (*persistence.TreeRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(treeKey(treeID))
	if err != nil {
		return nil, fmt.Errorf("failed to load TreeRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalTreeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TreeRecord: %w", err)
	}

	return record, nil
}

// ListTreeRecords returns all tree records sorted by creation time
func (b *BadgerPersistence) ListTreeRecords() ([]*persistence.TreeRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*persistence.TreeRecord, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixTree)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				record, err := persistence.UnmarshalTreeRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list TreeRecords: %w", err)
	}

	sortTreeRecords(records)
	return records, nil
}

// DeleteTreeRecord removes a tree record and all proofs stored under it
func (b *BadgerPersistence) DeleteTreeRecord(treeID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	// Collect the proof keys first; deleting while iterating the same
	// transaction's iterator is not supported.
	var proofKeys [][]byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = proofPrefix(treeID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			proofKeys = append(proofKeys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to collect proof keys: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(treeKey(treeID)); err != nil {
			return err
		}
		for _, key := range proofKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveProofRecord persists a proof record
func (b *BadgerPersistence) SaveProofRecord(record *persistence.ProofRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil ProofRecord")
	}
	if record.TreeID == "" {
		return fmt.Errorf("cannot save ProofRecord without a TreeID")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalProofRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ProofRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(proofKey(record.TreeID, record.LeafIndex), data)
	})
}

// LoadProofRecord retrieves a proof record by tree ID and leaf index
func (b *BadgerPersistence) LoadProofRecord(treeID string, leafIndex int) (*persistence.ProofRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(proofKey(treeID, leafIndex))
	if err != nil {
		return nil, fmt.Errorf("failed to load ProofRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ProofRecord: %w", err)
	}

	return record, nil
}

// ListProofRecords returns all proofs stored under a tree, sorted by leaf
// index. The zero-padded key layout makes iteration order the sort order.
func (b *BadgerPersistence) ListProofRecords(treeID string) ([]*persistence.ProofRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*persistence.ProofRecord, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = proofPrefix(treeID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				record, err := persistence.UnmarshalProofRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ProofRecords: %w", err)
	}

	return records, nil
}

// DeleteProofRecord removes a single proof record
func (b *BadgerPersistence) DeleteProofRecord(treeID string, leafIndex int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(proofKey(treeID, leafIndex))
	})
}

// Close stops the GC goroutine and closes the database
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil // Idempotent
	}

	b.closed = true
	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Infow("Badger persistence closed")
	return nil
}

// HealthCheck verifies the store is operational by reading the schema key
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		return item.Value(func(val []byte) error {
			if !bytes.Equal(val, []byte(currentSchemaVersion)) {
				return fmt.Errorf("unexpected schema version: %s", string(val))
			}
			return nil
		})
	})
}

// get reads a single key, returning nil data when the key does not exist
func (b *BadgerPersistence) get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...) // Copy value
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// sortTreeRecords orders records by creation time, tree ID as tie-break
func sortTreeRecords(records []*persistence.TreeRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].TreeID < records[j].TreeID
	})
}

// Ensure BadgerPersistence implements ITreePersistence
var _ persistence.ITreePersistence = (*BadgerPersistence)(nil)
