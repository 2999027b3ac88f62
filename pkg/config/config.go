package config

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/blocksum-labs/blocksum-go/pkg/hasher"
)

// Environment variable names for blocksum configuration
const (
	EnvBlocksumHashAlgorithm   = "BLOCKSUM_HASH_ALGORITHM"
	EnvBlocksumBlockSize       = "BLOCKSUM_BLOCK_SIZE"
	EnvBlocksumPersistenceType = "BLOCKSUM_PERSISTENCE_TYPE"
	EnvBlocksumDataDir         = "BLOCKSUM_DATA_DIR"
	EnvBlocksumRedisAddress    = "BLOCKSUM_REDIS_ADDRESS"
	EnvBlocksumRedisPassword   = "BLOCKSUM_REDIS_PASSWORD"
	EnvBlocksumRedisDB         = "BLOCKSUM_REDIS_DB"
	EnvBlocksumVerbose         = "BLOCKSUM_VERBOSE"
)

// PersistenceType selects the storage backend for tree and proof records.
type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

func (p PersistenceType) String() string {
	return string(p)
}

// DefaultBlockSize is the chunk size used when splitting input files into
// blocks, unless overridden.
const DefaultBlockSize = 4096

// BlocksumConfig represents the complete configuration for the blocksum CLI
type BlocksumConfig struct {
	// HashAlgorithm selects the 256-bit hash the tree is built with
	HashAlgorithm string `json:"hash_algorithm"`

	// BlockSize is the chunk size in bytes when splitting file/stdin input
	BlockSize int `json:"block_size"`

	// SplitLines treats each input line as one block instead of fixed-size chunks
	SplitLines bool `json:"split_lines"`

	// Persistence configuration for saved trees and proofs
	Persistence PersistenceConfig `json:"persistence"`

	// Operational settings
	Verbose bool `json:"verbose"`
}

// PersistenceConfig holds storage backend settings.
type PersistenceConfig struct {
	Type PersistenceType `json:"type"`

	// DataDir is the on-disk database directory (badger backend)
	DataDir string `json:"data_dir,omitempty"`

	// Redis connection settings (redis backend)
	RedisAddress  string `json:"redis_address,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
}

// Validate validates the blocksum configuration
func (c *BlocksumConfig) Validate() error {
	if _, err := hasher.New(c.HashAlgorithm); err != nil {
		return fmt.Errorf("invalid hash algorithm: %w", err)
	}

	if c.BlockSize < 1 {
		return fmt.Errorf("block size must be positive, got %d", c.BlockSize)
	}

	if err := c.Persistence.Validate(); err != nil {
		return fmt.Errorf("invalid persistence configuration: %w", err)
	}

	return nil
}

// Validate validates the persistence configuration, aggregating every
// problem instead of stopping at the first one.
func (pc *PersistenceConfig) Validate() error {
	var allErrors field.ErrorList

	switch pc.Type {
	case PersistenceTypeMemory:
		// No further settings required.
	case PersistenceTypeBadger:
		if pc.DataDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataDir"),
				"dataDir is required for the badger backend"))
		}
	case PersistenceTypeRedis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"),
				"redisAddress is required for the redis backend"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"),
				pc.RedisDB, "redis database number must be in [0, 15]"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"),
			pc.Type, []string{
				PersistenceTypeMemory.String(),
				PersistenceTypeBadger.String(),
				PersistenceTypeRedis.String(),
			}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// DefaultConfig returns a configuration with sane defaults: SHA-256 hashing,
// 4 KiB blocks, in-memory persistence.
func DefaultConfig() *BlocksumConfig {
	return &BlocksumConfig{
		HashAlgorithm: hasher.AlgorithmSHA256,
		BlockSize:     DefaultBlockSize,
		Persistence: PersistenceConfig{
			Type: PersistenceTypeMemory,
		},
	}
}
