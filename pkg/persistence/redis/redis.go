package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/blocksum-labs/blocksum-go/pkg/persistence"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixTree        = "blocksum:tree:"
	keyPrefixProof       = "blocksum:proof:"
	keySchemaVersion     = "blocksum:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key sets for listing operations (Redis doesn't support prefix iteration natively)
	keySetTrees       = "blocksum:trees:index"
	keySetProofPrefix = "blocksum:proofs:index:"
)

// RedisPersistence is a Redis-backed persistence implementation.
// Provides durable, distributed storage suitable for sharing trees and
// proofs between machines.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:blocksum:tree:123". If empty, keys use the default
	// "blocksum:" prefix.
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	// Initialize schema version
	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.KeyPrefix != "" {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	} else {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB)
	}

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// treeKey builds the storage key for a tree record
func (r *RedisPersistence) treeKey(treeID string) string {
	return r.prefixKey(keyPrefixTree + treeID)
}

// proofKey builds the storage key for a proof record
func (r *RedisPersistence) proofKey(treeID string, leafIndex int) string {
	return r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixProof, treeID, leafIndex))
}

// proofIndexKey is the per-tree set holding the leaf indices of stored proofs
func (r *RedisPersistence) proofIndexKey(treeID string) string {
	return r.prefixKey(keySetProofPrefix + treeID)
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		// First time setup - set schema version
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveTreeRecord persists a tree record
func (r *RedisPersistence) SaveTreeRecord(record *persistence.TreeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TreeRecord")
	}
	if record.TreeID == "" {
		return fmt.Errorf("cannot save TreeRecord without a TreeID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalTreeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal TreeRecord: %w", err)
	}

	// Store in Redis using a pipeline for atomicity
	indexKey := r.prefixKey(keySetTrees)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.treeKey(record.TreeID), data, 0)
	pipe.SAdd(ctx, indexKey, record.TreeID) // Add to index set

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save TreeRecord: %w", err)
	}

	return nil
}

// LoadTreeRecord retrieves a tree record by ID
func (r *RedisPersistence) LoadTreeRecord(treeID string) (*persistence.TreeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	data, err := r.client.Get(ctx, r.treeKey(treeID)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load TreeRecord: %w", err)
	}

	record, err := persistence.UnmarshalTreeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TreeRecord: %w", err)
	}

	return record, nil
}

// ListTreeRecords returns all tree records sorted by creation time
func (r *RedisPersistence) ListTreeRecords() ([]*persistence.TreeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetTrees)

	// Get all tree IDs from the index set
	treeIDs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list TreeRecord IDs: %w", err)
	}

	if len(treeIDs) == 0 {
		return []*persistence.TreeRecord{}, nil
	}

	// Build keys for all trees
	keys := make([]string, len(treeIDs))
	for i, treeID := range treeIDs {
		keys[i] = r.treeKey(treeID)
	}

	// Fetch all values using MGET
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch TreeRecords: %w", err)
	}

	var records []*persistence.TreeRecord
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, treeIDs[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for TreeRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalTreeRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal TreeRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}

		records = append(records, record)
	}

	// Sort by creation time (ascending), tree ID as tie-break
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].TreeID < records[j].TreeID
	})

	return records, nil
}

// DeleteTreeRecord removes a tree record and all proofs stored under it
func (r *RedisPersistence) DeleteTreeRecord(treeID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	proofIndexKey := r.proofIndexKey(treeID)

	// Collect the stored proof indices first so the cascade covers them
	leafIndices, err := r.client.SMembers(ctx, proofIndexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list proof indices: %w", err)
	}

	// Delete using pipeline
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.treeKey(treeID))
	pipe.SRem(ctx, r.prefixKey(keySetTrees), treeID) // Remove from index set
	for _, idx := range leafIndices {
		pipe.Del(ctx, r.prefixKey(fmt.Sprintf("%s%s:%s", keyPrefixProof, treeID, idx)))
	}
	pipe.Del(ctx, proofIndexKey)

	_, err = pipe.Exec(ctx)
	return err
}

// SaveProofRecord persists a proof record
func (r *RedisPersistence) SaveProofRecord(record *persistence.ProofRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil ProofRecord")
	}
	if record.TreeID == "" {
		return fmt.Errorf("cannot save ProofRecord without a TreeID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalProofRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ProofRecord: %w", err)
	}

	// Store using pipeline
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.proofKey(record.TreeID, record.LeafIndex), data, 0)
	pipe.SAdd(ctx, r.proofIndexKey(record.TreeID), record.LeafIndex) // Add to index set

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save ProofRecord: %w", err)
	}

	return nil
}

// LoadProofRecord retrieves a proof record by tree ID and leaf index
func (r *RedisPersistence) LoadProofRecord(treeID string, leafIndex int) (*persistence.ProofRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	data, err := r.client.Get(ctx, r.proofKey(treeID, leafIndex)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ProofRecord: %w", err)
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ProofRecord: %w", err)
	}

	return record, nil
}

// ListProofRecords returns all proofs stored under a tree, sorted by leaf index
func (r *RedisPersistence) ListProofRecords(treeID string) ([]*persistence.ProofRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.proofIndexKey(treeID)

	// Get all leaf indices from the index set
	leafIndices, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list proof indices: %w", err)
	}

	if len(leafIndices) == 0 {
		return []*persistence.ProofRecord{}, nil
	}

	// Build keys for all proofs
	keys := make([]string, len(leafIndices))
	for i, idx := range leafIndices {
		keys[i] = r.prefixKey(fmt.Sprintf("%s%s:%s", keyPrefixProof, treeID, idx))
	}

	// Fetch all values using MGET
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ProofRecords: %w", err)
	}

	var records []*persistence.ProofRecord
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, leafIndices[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for ProofRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalProofRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal ProofRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}

		records = append(records, record)
	}

	// Sort by leaf index (ascending)
	sort.Slice(records, func(i, j int) bool {
		return records[i].LeafIndex < records[j].LeafIndex
	})

	return records, nil
}

// DeleteProofRecord removes a single proof record
func (r *RedisPersistence) DeleteProofRecord(treeID string, leafIndex int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	// Delete using pipeline
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.proofKey(treeID, leafIndex))
	pipe.SRem(ctx, r.proofIndexKey(treeID), leafIndex) // Remove from index set

	_, err := pipe.Exec(ctx)
	return err
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ping Redis to check connectivity
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	// Verify schema version exists
	schemaKey := r.prefixKey(keySchemaVersion)
	_, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}

// Ensure RedisPersistence implements ITreePersistence
var _ persistence.ITreePersistence = (*RedisPersistence)(nil)
