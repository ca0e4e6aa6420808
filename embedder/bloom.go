package embedder

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// BloomEncoder hashes shingles into bit positions of a fixed-width
// filter. Each shingle contributes k positions derived from two
// 64-bit digests by double hashing, so both parties produce identical
// signatures from identical input, config and salt.
type BloomEncoder struct {
	size      uint64
	numHashes int
	salt      string
}

// NewBloomEncoder returns an encoder for a filter of the given width.
// Parameters are assumed validated by Config.Validate.
func NewBloomEncoder(size, numHashes int, salt string) *BloomEncoder {
	return &BloomEncoder{size: uint64(size), numHashes: numHashes, salt: salt}
}

// digests computes the two independent 64-bit hashes for a shingle
// from a single SHA-256 over salt || 0x00 || label || 0x00 || token.
// The nil separators prevent label/token confusion; little-endian
// byte order is fixed so signatures agree across platforms.
func (e *BloomEncoder) digests(s Shingle) (h1, h2 uint64) {
	buf := make([]byte, 0, len(e.salt)+len(s.Label)+len(s.Token)+2)
	buf = append(buf, e.salt...)
	buf = append(buf, 0)
	buf = append(buf, s.Label...)
	buf = append(buf, 0)
	buf = append(buf, s.Token...)
	sum := sha256.Sum256(buf)
	h1 = binary.LittleEndian.Uint64(sum[0:8])
	h2 = binary.LittleEndian.Uint64(sum[8:16])
	return h1, h2
}

// Indices maps a feature bag to the sorted, deduplicated set of bit
// positions in [0, size).
func (e *BloomEncoder) Indices(bag FeatureBag) []uint32 {
	indices, _ := e.IndicesWithCollisions(bag)
	return indices
}

// IndicesWithCollisions additionally reports the fraction of hash
// positions that collided, which is useful when sizing the filter.
func (e *BloomEncoder) IndicesWithCollisions(bag FeatureBag) ([]uint32, float64) {
	if len(bag) == 0 {
		return nil, 0
	}
	total := 0
	seen := make(map[uint32]struct{}, len(bag)*e.numHashes)
	for _, s := range bag {
		h1, h2 := e.digests(s)
		for i := 0; i < e.numHashes; i++ {
			pos := uint32((h1 + uint64(i)*h2) % e.size)
			seen[pos] = struct{}{}
			total++
		}
	}
	indices := make([]uint32, 0, len(seen))
	for pos := range seen {
		indices = append(indices, pos)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	collisions := 1 - float64(len(indices))/float64(total)
	return indices, collisions
}
