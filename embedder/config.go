package embedder

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
)

// Config fixes the embedding space: filter width, hash count, salt and
// the optional token-similarity matrix. Both parties of a linkage must
// construct their embedders from the same Config and feature factory;
// the derived checksum is how a mismatch is caught at compare time.
type Config struct {
	// Size is the filter width m. A power of two is recommended but
	// not required.
	Size int

	// NumHashes is the number of positions k set per shingle.
	NumHashes int

	// Salt is prepended to every shingle before hashing. Both parties
	// must agree on it.
	Salt string

	// SCM is the token-similarity matrix; nil means identity.
	SCM *TokenMatrix

	// ThresholdQuantile is the quantile of the self-similarity
	// distribution used as each row's acceptance threshold, in (0, 1].
	// Zero defaults to 1, the maximum.
	ThresholdQuantile float64

	// SelfSampleCap bounds how many same-dataset rows each threshold
	// computation compares against. Zero means the full N-1.
	SelfSampleCap int
}

// ApplyDefaults populates zero values with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.ThresholdQuantile == 0 {
		c.ThresholdQuantile = 1
	}
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: filter size %d", ErrInvalidConfig, c.Size)
	}
	if c.NumHashes <= 0 {
		return fmt.Errorf("%w: hash count %d", ErrInvalidConfig, c.NumHashes)
	}
	if d := c.SCM.Dim(); d != 0 && d != c.Size {
		return fmt.Errorf("%w: similarity matrix dimension %d does not match filter size %d", ErrInvalidConfig, d, c.Size)
	}
	if c.ThresholdQuantile < 0 || c.ThresholdQuantile > 1 {
		return fmt.Errorf("%w: threshold quantile %v outside (0, 1]", ErrInvalidConfig, c.ThresholdQuantile)
	}
	if c.SelfSampleCap < 0 {
		return fmt.Errorf("%w: negative self-sample cap %d", ErrInvalidConfig, c.SelfSampleCap)
	}
	return nil
}

// checksum digests everything that defines the embedding space: the
// Bloom parameters, the salt, each factory entry's kind and settings,
// and the token-similarity matrix. Two embedders agree exactly when
// their checksums agree.
func (c Config) checksum(factory FeatureFactory) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "size:%d|hashes:%d|salt:%s|quantile:%g|cap:%d|", c.Size, c.NumHashes, c.Salt, c.ThresholdQuantile, c.SelfSampleCap)

	for _, name := range factory.typeNames() {
		ext := factory[name]
		params, err := json.Marshal(ext)
		if err != nil {
			return "", fmt.Errorf("digest feature type %q: %w", name, err)
		}
		fmt.Fprintf(h, "feature:%s:%s:%s|", name, ext.Kind(), params)
	}

	if d := c.SCM.Dim(); d > 0 {
		buf := make([]byte, 8)
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				binary.LittleEndian.PutUint64(buf, uint64(i)<<32|uint64(j))
				h.Write(buf)
				binary.LittleEndian.PutUint64(buf, math.Float64bits(c.SCM.At(i, j)))
				h.Write(buf)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
