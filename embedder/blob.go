package embedder

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const blobVersion = 1

// blobExtractor is the serialized form of one feature-factory entry.
// The kind discriminates the concrete extractor; the remaining fields
// are the union of all extractor settings.
type blobExtractor struct {
	Kind         string `json:"kind"`
	NGramLengths []int  `json:"ngramLengths,omitempty"`
	SkipGrams    bool   `json:"skipGrams,omitempty"`
	Metaphone    bool   `json:"metaphone,omitempty"`
	DayFirst     bool   `json:"dayFirst,omitempty"`
	YearFirst    bool   `json:"yearFirst,omitempty"`
	Label        string `json:"label,omitempty"`
}

// blob is the self-describing artifact both parties exchange before
// embedding. It replaces language-native object serialization with an
// explicit, versioned format.
type blob struct {
	Version           int                      `json:"version"`
	Size              int                      `json:"size"`
	NumHashes         int                      `json:"numHashes"`
	Salt              string                   `json:"salt,omitempty"`
	ThresholdQuantile float64                  `json:"thresholdQuantile"`
	SelfSampleCap     int                      `json:"selfSampleCap,omitempty"`
	Features          map[string]blobExtractor `json:"features"`
	SCM               string                   `json:"scm,omitempty"`
	Checksum          string                   `json:"checksum"`
}

// MarshalBlob serializes the embedder's full configuration, including
// the feature factory and any token-similarity matrix. Only catalogue
// extractors can be serialized; a custom Extractor implementation has
// no wire form.
func (e *Embedder) MarshalBlob() ([]byte, error) {
	features := make(map[string]blobExtractor, len(e.factory))
	for name, ext := range e.factory {
		enc, err := encodeExtractor(ext)
		if err != nil {
			return nil, fmt.Errorf("feature type %q: %w", name, err)
		}
		features[name] = enc
	}
	b := blob{
		Version:           blobVersion,
		Size:              e.cfg.Size,
		NumHashes:         e.cfg.NumHashes,
		Salt:              e.cfg.Salt,
		ThresholdQuantile: e.cfg.ThresholdQuantile,
		SelfSampleCap:     e.cfg.SelfSampleCap,
		Features:          features,
		Checksum:          e.checksum,
	}
	if d := e.cfg.SCM.Dim(); d > 0 {
		encoded, err := encodeMatrix(e.cfg.SCM, d)
		if err != nil {
			return nil, err
		}
		b.SCM = encoded
	}
	return json.MarshalIndent(b, "", "  ")
}

// LoadBlob reconstructs an embedder from MarshalBlob output, verifying
// the embedded checksum against the rebuilt configuration.
func LoadBlob(data []byte) (*Embedder, error) {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: bad embedder blob: %v", ErrSerialization, err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported blob version %d", ErrSerialization, b.Version)
	}
	factory := make(FeatureFactory, len(b.Features))
	for name, enc := range b.Features {
		ext, err := decodeExtractor(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: feature type %q: %v", ErrSerialization, name, err)
		}
		factory[name] = ext
	}
	cfg := Config{
		Size:              b.Size,
		NumHashes:         b.NumHashes,
		Salt:              b.Salt,
		ThresholdQuantile: b.ThresholdQuantile,
		SelfSampleCap:     b.SelfSampleCap,
	}
	if b.SCM != "" {
		scm, err := decodeMatrix(b.SCM, b.Size)
		if err != nil {
			return nil, err
		}
		cfg.SCM = scm
	}
	e, err := New(cfg, factory)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if e.checksum != b.Checksum {
		return nil, fmt.Errorf("%w: blob checksum does not match its contents", ErrSerialization)
	}
	return e, nil
}

// SaveBlob writes the blob to disk atomically.
func (e *Embedder) SaveBlob(path string) error {
	data, err := e.MarshalBlob()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

// LoadBlobFile loads an embedder blob from disk.
func LoadBlobFile(path string) (*Embedder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return LoadBlob(data)
}

func encodeExtractor(ext Extractor) (blobExtractor, error) {
	switch x := ext.(type) {
	case *NameExtractor:
		return blobExtractor{Kind: x.Kind(), NGramLengths: x.NGramLengths, SkipGrams: x.SkipGrams, Metaphone: x.Metaphone}, nil
	case *DateExtractor:
		return blobExtractor{Kind: x.Kind(), DayFirst: x.DayFirst, YearFirst: x.YearFirst}, nil
	case *SexExtractor:
		return blobExtractor{Kind: x.Kind()}, nil
	case *TokenExtractor:
		return blobExtractor{Kind: x.Kind(), Label: x.Label}, nil
	case *ShingleExtractor:
		return blobExtractor{Kind: x.Kind(), NGramLengths: x.NGramLengths, SkipGrams: x.SkipGrams, Label: x.Label}, nil
	}
	return blobExtractor{}, fmt.Errorf("extractor %T has no blob form", ext)
}

func decodeExtractor(enc blobExtractor) (Extractor, error) {
	switch enc.Kind {
	case "name":
		return &NameExtractor{NGramLengths: enc.NGramLengths, SkipGrams: enc.SkipGrams, Metaphone: enc.Metaphone}, nil
	case "dob":
		return &DateExtractor{DayFirst: enc.DayFirst, YearFirst: enc.YearFirst}, nil
	case "sex":
		return &SexExtractor{}, nil
	case "tokens":
		return &TokenExtractor{Label: enc.Label}, nil
	case "shingled":
		return &ShingleExtractor{NGramLengths: enc.NGramLengths, SkipGrams: enc.SkipGrams, Label: enc.Label}, nil
	}
	return nil, fmt.Errorf("unknown extractor kind %q", enc.Kind)
}

// encodeMatrix packs the token matrix as gzip-compressed row-major
// little-endian float64s in base64.
func encodeMatrix(t *TokenMatrix, dim int) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	cell := make([]byte, 8)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			binary.LittleEndian.PutUint64(cell, math.Float64bits(t.At(i, j)))
			if _, err := zw.Write(cell); err != nil {
				return "", fmt.Errorf("compress similarity matrix: %w", err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress similarity matrix: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeMatrix(encoded string, dim int) (*TokenMatrix, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: bad similarity matrix encoding: %v", ErrSerialization, err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: bad similarity matrix payload: %v", ErrSerialization, err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad similarity matrix payload: %v", ErrSerialization, err)
	}
	if len(data) != dim*dim*8 {
		return nil, fmt.Errorf("%w: similarity matrix payload is %d bytes, want %d", ErrSerialization, len(data), dim*dim*8)
	}
	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := math.Float64frombits(binary.LittleEndian.Uint64(data[(i*dim+j)*8:]))
			sym.SetSym(i, j, v)
		}
	}
	return NewTokenMatrix(sym), nil
}
