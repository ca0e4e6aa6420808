// Package embedder turns tabular records into fixed-width Bloom filter
// signatures and scores them with the Soft Cosine Measure, so that two
// parties can link their datasets without exchanging raw values.
//
// The pipeline is: feature extractors shingle each configured column
// into labelled tokens, a double-hashing Bloom encoder maps the
// shingles to bit positions, and Compare produces the full pairwise
// similarity matrix between two embedded datasets. Per-row acceptance
// thresholds are derived from each dataset's own similarity
// distribution. One-to-one assignment over the resulting matrix lives
// in the matching package.
package embedder
