package embedder

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Embedder wires a feature factory and Bloom parameters into the
// public embed and compare operations. It is read-only after
// construction and safe to share across goroutines.
type Embedder struct {
	cfg      Config
	factory  FeatureFactory
	encoder  *BloomEncoder
	checksum string
}

// New validates the configuration and binds it to a feature factory.
// A nil or empty factory falls back to the default catalogue.
func New(cfg Config, factory FeatureFactory) (*Embedder, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(factory) == 0 {
		factory = DefaultFactory()
	}
	sum, err := cfg.checksum(factory)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		cfg:      cfg,
		factory:  factory,
		encoder:  NewBloomEncoder(cfg.Size, cfg.NumHashes, cfg.Salt),
		checksum: sum,
	}, nil
}

// Config returns the embedder's configuration.
func (e *Embedder) Config() Config { return e.cfg }

// Checksum identifies the embedding space. Datasets carry it, and
// Compare refuses datasets whose checksums disagree.
func (e *Embedder) Checksum() string { return e.checksum }

// EmbedOptions tune a single Embed call.
type EmbedOptions struct {
	// UpdateThresholds derives the per-row acceptance thresholds
	// immediately after embedding. Costs O(N²) in the dataset size.
	UpdateThresholds bool

	// KeepFeatures retains each record's shingles per source column,
	// for inspection only.
	KeepFeatures bool
}

// Embed encodes the specified columns of a table into an embedded
// dataset. Rows are processed independently and in parallel; a failed
// extraction aborts the whole call with no partial result.
func (e *Embedder) Embed(table Table, spec ColumnSpec, opts EmbedOptions) (*Dataset, error) {
	if err := spec.validate(e.factory); err != nil {
		return nil, err
	}
	n := table.Len()
	cols := spec.columns()
	values := make(map[string][]string, len(cols))
	for _, col := range cols {
		vals, err := table.Values(col)
		if err != nil {
			return nil, fmt.Errorf("read column %q: %w", col, err)
		}
		if len(vals) != n {
			return nil, fmt.Errorf("column %q has %d values, table has %d rows", col, len(vals), n)
		}
		values[col] = vals
	}

	records := make([]Record, n)
	errs := make([]error, n)
	parallelRows(n, func(i int) {
		var bag FeatureBag
		var features map[string][]string
		if opts.KeepFeatures {
			features = make(map[string][]string, len(cols))
		}
		for _, col := range cols {
			colBag, err := e.factory[spec[col]].Extract(values[col][i], col)
			if err != nil {
				errs[i] = fmt.Errorf("column %q row %d: %w", col, i, err)
				return
			}
			bag = append(bag, colBag...)
			if opts.KeepFeatures {
				features[col] = colBag.Strings()
			}
		}
		indices := e.encoder.Indices(bag)
		records[i] = Record{
			Indices:  indices,
			Norm:     e.cfg.SCM.Norm(indices),
			Features: features,
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	dataset := &Dataset{Records: records, Checksum: e.checksum}
	if opts.UpdateThresholds {
		if err := e.UpdateThresholds(dataset); err != nil {
			return nil, err
		}
	}
	return dataset, nil
}

// UpdateThresholds recomputes every record's acceptance threshold from
// the dataset's own similarity distribution: the configured quantile
// (by default the maximum) of the row's similarities to the rest of
// its dataset. Call it again whenever the dataset contents change.
func (e *Embedder) UpdateThresholds(d *Dataset) error {
	if d.Checksum != e.checksum {
		return fmt.Errorf("%w: dataset was embedded with a different config", ErrConfigMismatch)
	}
	n := d.Len()
	if n <= 1 {
		for i := range d.Records {
			d.Records[i].Threshold = 0
		}
		return nil
	}

	// Subsampling keeps the O(N²) loop bounded; a fixed stride keeps
	// it deterministic.
	step := 1
	if cap := e.cfg.SelfSampleCap; cap > 0 && n-1 > cap {
		step = (n + cap - 1) / cap
	}

	parallelRows(n, func(i int) {
		row := &d.Records[i]
		scores := make([]float64, 0, (n-1)/step+1)
		for j := 0; j < n; j += step {
			if j == i {
				continue
			}
			scores = append(scores, similarity(e.cfg.SCM, row, &d.Records[j]))
		}
		row.Threshold = thresholdOf(scores, e.cfg.ThresholdQuantile)
	})
	return nil
}

// thresholdOf reduces a self-similarity sample to its acceptance
// threshold at the given quantile; 1 means the maximum.
func thresholdOf(scores []float64, quantile float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	if quantile >= 1 {
		max := scores[0]
		for _, s := range scores[1:] {
			if s > max {
				max = s
			}
		}
		return max
	}
	sort.Float64s(scores)
	return stat.Quantile(quantile, stat.Empirical, scores, nil)
}

// Compare produces the full pairwise similarity matrix between two
// embedded datasets. Both must have been produced by this embedder's
// exact configuration; a mismatch fails before any computation.
func (e *Embedder) Compare(d1, d2 *Dataset) (*SimilarityMatrix, error) {
	if d1.Checksum != e.checksum || d2.Checksum != e.checksum || d1.Checksum != d2.Checksum {
		return nil, fmt.Errorf("%w: datasets were embedded with different configs", ErrConfigMismatch)
	}
	n1, n2 := d1.Len(), d2.Len()
	m := &SimilarityMatrix{
		Rows:          n1,
		Cols:          n2,
		Scores:        make([]float64, n1*n2),
		RowNorms:      make([]float64, n1),
		ColNorms:      make([]float64, n2),
		RowThresholds: make([]float64, n1),
		ColThresholds: make([]float64, n2),
		Checksum:      e.checksum,
	}
	for i, r := range d1.Records {
		m.RowNorms[i] = r.Norm
		m.RowThresholds[i] = r.Threshold
	}
	for j, r := range d2.Records {
		m.ColNorms[j] = r.Norm
		m.ColThresholds[j] = r.Threshold
	}
	parallelRows(n1, func(i int) {
		row := &d1.Records[i]
		for j := range d2.Records {
			m.set(i, j, similarity(e.cfg.SCM, row, &d2.Records[j]))
		}
	})
	return m, nil
}

// parallelRows fans fn out over [0, n) in contiguous chunks, one per
// available CPU, and waits for completion.
func parallelRows(n int, fn func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}
