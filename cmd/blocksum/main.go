package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/blocksum-labs/blocksum-go/internal/blockreader"
	"github.com/blocksum-labs/blocksum-go/pkg/config"
	"github.com/blocksum-labs/blocksum-go/pkg/hasher"
	"github.com/blocksum-labs/blocksum-go/pkg/logger"
	"github.com/blocksum-labs/blocksum-go/pkg/merkle"
	"github.com/blocksum-labs/blocksum-go/pkg/persistence"
	badgerstore "github.com/blocksum-labs/blocksum-go/pkg/persistence/badger"
	memorystore "github.com/blocksum-labs/blocksum-go/pkg/persistence/memory"
	redisstore "github.com/blocksum-labs/blocksum-go/pkg/persistence/redis"
	"github.com/blocksum-labs/blocksum-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "blocksum",
		Usage: "Merkle tree roots and inclusion proofs over block data",
		Description: `Builds binary merkle trees over input blocks and generates compact
inclusion proofs that verify a block's membership against the tree root
without the full data set.

Input is chunked into fixed-size blocks (or split by lines with --lines),
each block is hashed into a leaf, and adjacent digests are hashed pairwise
up to the root. Odd nodes at any level are paired with themselves.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "hash",
				Value:   hasher.AlgorithmSHA256,
				Usage:   fmt.Sprintf("Hash algorithm: %s", strings.Join(hasher.SupportedAlgorithms(), ", ")),
				EnvVars: []string{config.EnvBlocksumHashAlgorithm},
			},
			&cli.IntFlag{
				Name:    "block-size",
				Aliases: []string{"b"},
				Value:   config.DefaultBlockSize,
				Usage:   "Chunk size in bytes when splitting input into blocks",
				EnvVars: []string{config.EnvBlocksumBlockSize},
			},
			&cli.BoolFlag{
				Name:  "lines",
				Usage: "Treat each input line as one block instead of fixed-size chunks",
			},
			&cli.StringFlag{
				Name:    "persistence",
				Value:   config.PersistenceTypeBadger.String(),
				Usage:   "Storage backend for saved trees and proofs: memory, badger, redis",
				EnvVars: []string{config.EnvBlocksumPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   defaultDataDir(),
				Usage:   "Database directory for the badger backend",
				EnvVars: []string{config.EnvBlocksumDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port) for the redis backend",
				EnvVars: []string{config.EnvBlocksumRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the redis backend",
				EnvVars: []string{config.EnvBlocksumRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15) for the redis backend",
				EnvVars: []string{config.EnvBlocksumRedisDB},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvBlocksumVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "root",
				Usage:     "Build a merkle tree over the input and print its root",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Persist the tree record and print its tree ID",
					},
				},
				Action: runRoot,
			},
			{
				Name:      "prove",
				Usage:     "Generate an inclusion proof for one block",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "index",
						Aliases:  []string{"i"},
						Usage:    "Zero-based index of the block to prove",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "tree-id",
						Usage: "Generate the proof from a saved tree record instead of input data",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Persist the proof record alongside its tree record",
					},
				},
				Action: runProve,
			},
			{
				Name:      "verify",
				Usage:     "Verify an inclusion proof for the given leaf data",
				ArgsUsage: "[leaf-data-file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "proof",
						Usage: "Path to a proof JSON file",
					},
					&cli.StringFlag{
						Name:  "tree-id",
						Usage: "Verify a saved proof record under this tree ID",
					},
					&cli.IntFlag{
						Name:    "index",
						Aliases: []string{"i"},
						Value:   -1,
						Usage:   "Leaf index of the saved proof record (with --tree-id)",
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Expected root as hex; overrides the root carried in the proof",
					},
				},
				Action: runVerify,
			},
			{
				Name:   "trees",
				Usage:  "List saved tree records",
				Action: runTrees,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blocksum"
	}
	return home + "/.blocksum/db"
}

// parseConfig assembles and validates the configuration from flags and
// environment
func parseConfig(c *cli.Context) (*config.BlocksumConfig, error) {
	cfg := &config.BlocksumConfig{
		HashAlgorithm: c.String("hash"),
		BlockSize:     c.Int("block-size"),
		SplitLines:    c.Bool("lines"),
		Persistence: config.PersistenceConfig{
			Type:          config.PersistenceType(c.String("persistence")),
			DataDir:       c.String("data-dir"),
			RedisAddress:  c.String("redis-address"),
			RedisPassword: c.String("redis-password"),
			RedisDB:       c.Int("redis-db"),
		},
		Verbose: c.Bool("verbose"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg *config.BlocksumConfig) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
}

// openPersistence constructs the storage backend selected by the config
func openPersistence(cfg *config.BlocksumConfig, l *zap.Logger) (persistence.ITreePersistence, error) {
	switch cfg.Persistence.Type {
	case config.PersistenceTypeMemory:
		return memorystore.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		return badgerstore.NewBadgerPersistence(cfg.Persistence.DataDir, l)
	case config.PersistenceTypeRedis:
		return redisstore.NewRedisPersistence(&redisstore.RedisConfig{
			Address:  cfg.Persistence.RedisAddress,
			Password: cfg.Persistence.RedisPassword,
			DB:       cfg.Persistence.RedisDB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Persistence.Type)
	}
}

// readBlocks reads the input blocks from the first positional argument,
// defaulting to stdin
func readBlocks(c *cli.Context, cfg *config.BlocksumConfig) ([][]byte, error) {
	path := c.Args().First()
	if path == "" {
		path = "-"
	}

	if cfg.SplitLines {
		return blockreader.ReadFileLines(path)
	}
	return blockreader.ReadFileBlocks(path, cfg.BlockSize)
}

// parseDigest parses a 32-byte digest from hex, with or without 0x prefix
func parseDigest(s string) (types.Digest, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return types.Digest{}, fmt.Errorf("invalid digest hex: %w", err)
	}
	return types.DigestFromBytes(raw)
}

func runRoot(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	l, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	h, err := hasher.New(cfg.HashAlgorithm)
	if err != nil {
		return err
	}

	blocks, err := readBlocks(c, cfg)
	if err != nil {
		return err
	}

	tree, err := merkle.BuildMerkleTree(blocks, h)
	if err != nil {
		return err
	}

	root, err := tree.Root()
	if err != nil {
		return fmt.Errorf("input produced no blocks: %w", err)
	}

	l.Sugar().Infow("Built merkle tree",
		"algorithm", h.Name(), "leaf_count", tree.LeafCount(), "root", root.Hex())

	if !c.Bool("save") {
		fmt.Println(root.Hex())
		return nil
	}

	store, err := openPersistence(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	record, err := persistence.NewTreeRecord(tree)
	if err != nil {
		return err
	}
	if err := store.SaveTreeRecord(record); err != nil {
		return fmt.Errorf("failed to save tree record: %w", err)
	}

	fmt.Println(root.Hex())
	fmt.Println(record.TreeID)
	return nil
}

func runProve(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	l, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	index := c.Int("index")
	treeID := c.String("tree-id")

	var store persistence.ITreePersistence
	if treeID != "" || c.Bool("save") {
		store, err = openPersistence(cfg, l)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	var tree *merkle.MerkleTree
	var root types.Digest

	if treeID != "" {
		// Regenerate the tree from the saved leaf digests
		record, err := store.LoadTreeRecord(treeID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("tree record not found: %s", treeID)
		}

		h, err := hasher.New(record.HashAlgorithm)
		if err != nil {
			return err
		}

		tree, err = merkle.NewMerkleTreeFromLeaves(record.Leaves, h)
		if err != nil {
			return err
		}

		root, err = tree.Root()
		if err != nil {
			return err
		}
		if root != record.Root {
			return fmt.Errorf("regenerated root %s does not match stored root %s", root.Hex(), record.Root.Hex())
		}
	} else {
		h, err := hasher.New(cfg.HashAlgorithm)
		if err != nil {
			return err
		}

		blocks, err := readBlocks(c, cfg)
		if err != nil {
			return err
		}

		tree, err = merkle.BuildMerkleTree(blocks, h)
		if err != nil {
			return err
		}

		root, err = tree.Root()
		if err != nil {
			return fmt.Errorf("input produced no blocks: %w", err)
		}

		if c.Bool("save") {
			record, err := persistence.NewTreeRecord(tree)
			if err != nil {
				return err
			}
			if err := store.SaveTreeRecord(record); err != nil {
				return fmt.Errorf("failed to save tree record: %w", err)
			}
			treeID = record.TreeID
		}
	}

	proof, err := tree.GenerateProof(index)
	if err != nil {
		return err
	}

	l.Sugar().Infow("Generated proof",
		"leaf_index", proof.LeafIndex, "leaf_count", proof.LeafCount, "steps", len(proof.Steps))

	record := persistence.NewProofRecord(treeID, proof, root)
	if c.Bool("save") {
		if err := store.SaveProofRecord(record); err != nil {
			return fmt.Errorf("failed to save proof record: %w", err)
		}
	}

	data, err := persistence.MarshalProofRecord(record)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runVerify(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	l, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	record, err := loadProofRecord(c, cfg, l)
	if err != nil {
		return err
	}

	root := record.Root
	if rootHex := c.String("root"); rootHex != "" {
		root, err = parseDigest(rootHex)
		if err != nil {
			return err
		}
	}
	if root.IsZero() {
		return fmt.Errorf("no expected root: the proof carries none and --root was not given")
	}

	leafData, err := readLeafData(c)
	if err != nil {
		return err
	}

	h, err := hasher.New(cfg.HashAlgorithm)
	if err != nil {
		return err
	}

	ok, err := merkle.VerifyProof(leafData, record.LeafIndex, record.ToMerkleProof(), root, h)
	if err != nil {
		return fmt.Errorf("proof rejected: %w", err)
	}

	if !ok {
		fmt.Println("FAIL")
		return cli.Exit("proof does not verify against the expected root", 1)
	}

	l.Sugar().Infow("Proof verified",
		"leaf_index", record.LeafIndex, "root", root.Hex())
	fmt.Println("OK")
	return nil
}

// loadProofRecord resolves the proof to verify, from a JSON file or from a
// saved record
func loadProofRecord(c *cli.Context, cfg *config.BlocksumConfig, l *zap.Logger) (*persistence.ProofRecord, error) {
	proofPath := c.String("proof")
	treeID := c.String("tree-id")

	switch {
	case proofPath != "" && treeID != "":
		return nil, fmt.Errorf("--proof and --tree-id are mutually exclusive")

	case proofPath != "":
		data, err := os.ReadFile(proofPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read proof file: %w", err)
		}
		record, err := persistence.UnmarshalProofRecord(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proof file: %w", err)
		}
		return record, nil

	case treeID != "":
		index := c.Int("index")
		if index < 0 {
			return nil, fmt.Errorf("--index is required with --tree-id")
		}

		store, err := openPersistence(cfg, l)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()

		record, err := store.LoadProofRecord(treeID, index)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("proof record not found: tree %s index %d", treeID, index)
		}
		return record, nil

	default:
		return nil, fmt.Errorf("either --proof or --tree-id is required")
	}
}

// readLeafData reads the raw block being proven, from the first positional
// argument or stdin
func readLeafData(c *cli.Context) ([]byte, error) {
	path := c.Args().First()
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read leaf data from stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaf data file: %w", err)
	}
	return data, nil
}

func runTrees(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	l, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	store, err := openPersistence(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ListTreeRecords()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No saved trees")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %s  %s  leaves=%d  %s\n",
			r.TreeID,
			r.HashAlgorithm,
			r.Root.Hex(),
			r.LeafCount,
			time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339))
	}
	return nil
}
