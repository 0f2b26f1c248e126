package crypto

import (
	"fmt"
	"sync"
)

// ChunkSize is the leaf granularity of a HashList (128 KiB).
const ChunkSize = 128 * 1024

// HashList maintains a Merkle-style root hash over fixed-size chunks of a
// file. Writes update only the chunks they touch; the root is
// H(concat of all leaf digests), recomputed lazily.
type HashList struct {
	mu     sync.Mutex
	chunks [][]byte
	dirty  bool
	root   []byte
}

// NewHashList creates a hash list sized for a file of the given byte
// length, with every leaf initially zero (matching an empty/sparse local
// file before any chunk has been read or written).
func NewHashList(fileSize int64) *HashList {
	n := (fileSize + ChunkSize - 1) / ChunkSize
	if fileSize == 0 {
		n = 0
	}
	chunks := make([][]byte, n)
	for i := range chunks {
		chunks[i] = make([]byte, sha256Size)
	}
	return &HashList{chunks: chunks, dirty: true}
}

const sha256Size = 32

// UpdateRange feeds newly-written or newly-read bytes at the given file
// offset into the hash list, recomputing the digest for every chunk the
// range touches.
func (h *HashList) UpdateRange(offset int64, data []byte, readChunk func(idx int64) ([]byte, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(data) == 0 {
		return nil
	}

	start := offset / ChunkSize
	end := (offset + int64(len(data)) - 1) / ChunkSize

	for idx := start; idx <= end; idx++ {
		if int(idx) >= len(h.chunks) {
			grown := make([][]byte, idx+1)
			copy(grown, h.chunks)
			for i := len(h.chunks); i < len(grown); i++ {
				grown[i] = make([]byte, sha256Size)
			}
			h.chunks = grown
		}

		chunkData, err := readChunk(idx)
		if err != nil {
			return fmt.Errorf("hashlist: read chunk %d: %w", idx, err)
		}
		h.chunks[idx] = SHA256Sum(chunkData)
	}

	h.dirty = true
	return nil
}

// Root returns the hex-encoded root hash, recomputing it if any chunk
// changed since the last call.
func (h *HashList) Root() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dirty || h.root == nil {
		var concat []byte
		for _, c := range h.chunks {
			concat = append(concat, c...)
		}
		h.root = SHA256Sum(concat)
		h.dirty = false
	}
	return HexEncode(h.root)
}

// NumChunks returns the number of leaves currently tracked.
func (h *HashList) NumChunks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chunks)
}
