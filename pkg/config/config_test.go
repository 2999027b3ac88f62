package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blocksum-labs/blocksum-go/pkg/hasher"
)

// TestDefaultConfigIsValid tests that the default configuration validates
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, hasher.AlgorithmSHA256, cfg.HashAlgorithm)
	require.Equal(t, DefaultBlockSize, cfg.BlockSize)
	require.Equal(t, PersistenceTypeMemory, cfg.Persistence.Type)
}

// TestValidateHashAlgorithm tests hash algorithm validation
func TestValidateHashAlgorithm(t *testing.T) {
	for _, algo := range hasher.SupportedAlgorithms() {
		cfg := DefaultConfig()
		cfg.HashAlgorithm = algo
		require.NoError(t, cfg.Validate(), "algorithm %s should be accepted", algo)
	}

	cfg := DefaultConfig()
	cfg.HashAlgorithm = "crc32"
	require.Error(t, cfg.Validate())
}

// TestValidateBlockSize tests block size bounds
func TestValidateBlockSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 0
	require.Error(t, cfg.Validate())

	cfg.BlockSize = -1
	require.Error(t, cfg.Validate())

	cfg.BlockSize = 1
	require.NoError(t, cfg.Validate())
}

// TestValidatePersistence tests the persistence configuration matrix
func TestValidatePersistence(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     PersistenceConfig
		wantErr bool
	}{
		{"Memory", PersistenceConfig{Type: PersistenceTypeMemory}, false},
		{"Badger with data dir", PersistenceConfig{Type: PersistenceTypeBadger, DataDir: "/tmp/blocksum"}, false},
		{"Badger without data dir", PersistenceConfig{Type: PersistenceTypeBadger}, true},
		{"Redis with address", PersistenceConfig{Type: PersistenceTypeRedis, RedisAddress: "localhost:6379"}, false},
		{"Redis without address", PersistenceConfig{Type: PersistenceTypeRedis}, true},
		{"Redis DB out of range", PersistenceConfig{Type: PersistenceTypeRedis, RedisAddress: "localhost:6379", RedisDB: 16}, true},
		{"Redis DB negative", PersistenceConfig{Type: PersistenceTypeRedis, RedisAddress: "localhost:6379", RedisDB: -1}, true},
		{"Unknown backend", PersistenceConfig{Type: "etcd"}, true},
		{"Empty backend", PersistenceConfig{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestValidateAggregatesRedisErrors tests that every redis problem is reported at once
func TestValidateAggregatesRedisErrors(t *testing.T) {
	cfg := PersistenceConfig{Type: PersistenceTypeRedis, RedisDB: 99}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "redisAddress")
	require.Contains(t, err.Error(), "redisDB")
}
