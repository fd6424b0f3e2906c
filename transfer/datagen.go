package transfer

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
)

const randChunkSize = 10 * 1024 * 1024

// MakeRandomFile creates a file of exactly size random bytes inside dir and
// returns its path. Data is generated in chunks so arbitrarily large files
// never need a full-size buffer.
func MakeRandomFile(dir, name string, size int64) (string, error) {
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("failed to create test file %s: %w", p, err)
	}
	defer f.Close()

	buf := make([]byte, randChunkSize)
	written := int64(0)
	for written < size {
		remaining := size - written
		if remaining > randChunkSize {
			remaining = randChunkSize
		}
		chunk := buf[:remaining]
		if _, err := rand.Read(chunk); err != nil {
			return "", fmt.Errorf("failed to generate random data: %w", err)
		}
		n, err := f.Write(chunk)
		if err != nil {
			return "", fmt.Errorf("failed to write test file %s: %w", p, err)
		}
		written += int64(n)
	}
	return p, nil
}

// MakeRandomTree creates count random files inside dir, each with a size
// drawn uniformly from [minSize, maxSize]. Returns the created paths.
func MakeRandomTree(dir string, count int, minSize, maxSize int64) ([]string, error) {
	if minSize > maxSize {
		return nil, fmt.Errorf("minSize %d exceeds maxSize %d", minSize, maxSize)
	}
	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		size := minSize
		if maxSize > minSize {
			n, err := rand.Int(rand.Reader, big.NewInt(maxSize-minSize+1))
			if err != nil {
				return nil, fmt.Errorf("failed to pick random size: %w", err)
			}
			size = minSize + n.Int64()
		}
		p, err := MakeRandomFile(dir, fmt.Sprintf("obj-%04d", i), size)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
