// Package blockreader splits input data into the blocks that become
// Merkle tree leaves. Two modes are supported: fixed-size chunking, where
// the final block may be shorter, and line splitting, where each line is
// one block and the trailing newline is not part of the block.
package blockreader

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
)

// MaxLineSize bounds a single line in line-split mode. Lines longer than
// this abort the read instead of silently producing a truncated leaf.
const MaxLineSize = 16 * 1024 * 1024

// ReadBlocks reads everything from r and chunks it into blocks of size
// blockSize. The final block holds the remainder and may be shorter. An
// empty input yields zero blocks.
func ReadBlocks(r io.Reader, blockSize int) ([][]byte, error) {
	if blockSize <= 0 {
		return nil, errors.Errorf("block size must be positive, got %d", blockSize)
	}

	blocks := make([][]byte, 0)
	reader := bufio.NewReader(r)

	for {
		block := make([]byte, blockSize)
		n, err := io.ReadFull(reader, block)
		if n > 0 {
			blocks = append(blocks, block[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return blocks, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read block")
		}
	}
}

// ReadLines reads everything from r and splits it into one block per line.
// Line endings (\n, with an optional preceding \r) are stripped. A trailing
// newline does not produce an empty final block, but empty lines inside the
// input do count as blocks.
func ReadLines(r io.Reader) ([][]byte, error) {
	blocks := make([][]byte, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		line = bytes.TrimSuffix(line, []byte("\r"))
		block := make([]byte, len(line))
		copy(block, line)
		blocks = append(blocks, block)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read lines")
	}

	return blocks, nil
}

// ReadFileBlocks opens path and chunks its contents into fixed-size blocks.
// Path "-" reads from stdin.
func ReadFileBlocks(path string, blockSize int) ([][]byte, error) {
	r, closeFn, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return ReadBlocks(r, blockSize)
}

// ReadFileLines opens path and splits its contents into one block per line.
// Path "-" reads from stdin.
func ReadFileLines(path string) ([][]byte, error) {
	r, closeFn, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return ReadLines(r)
}

func open(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open input file %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}
