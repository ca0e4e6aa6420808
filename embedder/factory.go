package embedder

import (
	"fmt"
	"sort"
)

// FeatureFactory maps caller-chosen type names to extractors. The
// column specification refers to these names, never to concrete
// extractor types, so both parties can agree on a schema by exchanging
// the embedder blob alone.
type FeatureFactory map[string]Extractor

// DefaultFactory returns the built-in catalogue covering the data
// shapes the engine is designed for.
func DefaultFactory() FeatureFactory {
	return FeatureFactory{
		"name":     &NameExtractor{Metaphone: true},
		"dob":      &DateExtractor{DayFirst: true},
		"sex":      &SexExtractor{},
		"misc":     &TokenExtractor{},
		"shingled": &ShingleExtractor{},
	}
}

// typeNames returns the factory's type names in sorted order.
func (f FeatureFactory) typeNames() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnSpec maps table columns to feature type names. Columns absent
// from the spec do not contribute to the embedding.
type ColumnSpec map[string]string

// columns returns the specified column names in sorted order, so that
// feature aggregation is deterministic.
func (s ColumnSpec) columns() []string {
	cols := make([]string, 0, len(s))
	for col := range s {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// validate checks every referenced type against the factory.
func (s ColumnSpec) validate(factory FeatureFactory) error {
	for _, col := range s.columns() {
		if _, ok := factory[s[col]]; !ok {
			return fmt.Errorf("%w: column %q uses type %q", ErrUnknownFeatureType, col, s[col])
		}
	}
	return nil
}
