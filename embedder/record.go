package embedder

// Record is one embedded row: the set Bloom filter positions, the SCM
// self-norm and the minimum similarity the row demands before
// accepting a match. Records are read-only once Embed returns.
type Record struct {
	// Indices holds the set bit positions, sorted and deduplicated,
	// each in [0, size).
	Indices []uint32

	// Norm is the SCM self-norm √(vᵀSv); positive exactly when
	// Indices is non-empty.
	Norm float64

	// Threshold is the per-row minimum acceptable similarity in
	// [0, 1], derived from the row's own dataset.
	Threshold float64

	// Features optionally retains the shingles per source column, for
	// inspection only. It plays no part in comparison.
	Features map[string][]string
}

// Empty reports whether the record carries no signal at all. Empty
// records score zero against everything and never appear in a
// matching.
func (r *Record) Empty() bool {
	return len(r.Indices) == 0
}

// Dataset is an ordered sequence of records sharing one embedder
// configuration. Row order is the identity the matcher refers to.
type Dataset struct {
	Records []Record

	// Checksum identifies the embedder configuration that produced
	// the records.
	Checksum string
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}
