package embedder

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func mustTable(t *testing.T, columns []string, rows [][]string) *MemTable {
	t.Helper()
	table, err := NewMemTable(columns, rows)
	if err != nil {
		t.Fatalf("NewMemTable: %v", err)
	}
	return table
}

func mustEmbedder(t *testing.T, cfg Config, factory FeatureFactory) *Embedder {
	t.Helper()
	e, err := New(cfg, factory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func mustEmbed(t *testing.T, e *Embedder, table Table, spec ColumnSpec, opts EmbedOptions) *Dataset {
	t.Helper()
	d, err := e.Embed(table, spec, opts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	return d
}

func namesTable(t *testing.T, names ...string) *MemTable {
	t.Helper()
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return mustTable(t, []string{"name"}, rows)
}

var nameSpec = ColumnSpec{"name": "name"}

func TestNewRejectsInvalidConfig(t *testing.T) {
	bad := []Config{
		{Size: 0, NumHashes: 2},
		{Size: -5, NumHashes: 2},
		{Size: 64, NumHashes: 0},
		{Size: 64, NumHashes: 2, ThresholdQuantile: 1.5},
		{Size: 64, NumHashes: 2, SelfSampleCap: -1},
	}
	for _, cfg := range bad {
		if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("config %+v: got %v, want ErrInvalidConfig", cfg, err)
		}
	}

	tm, err := TokenMatrixFromRows([][]float64{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{Size: 64, NumHashes: 2, SCM: tm}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("mismatched SCM dimension accepted: %v", err)
	}
}

func TestEmbedUnknownFeatureType(t *testing.T) {
	e := mustEmbedder(t, Config{Size: 64, NumHashes: 2}, nil)
	table := namesTable(t, "Ana")
	_, err := e.Embed(table, ColumnSpec{"name": "postcode"}, EmbedOptions{})
	if !errors.Is(err, ErrUnknownFeatureType) {
		t.Errorf("got %v, want ErrUnknownFeatureType", err)
	}
}

func TestEmbedInvalidFieldValue(t *testing.T) {
	e := mustEmbedder(t, Config{Size: 64, NumHashes: 2}, nil)
	table := namesTable(t, string([]byte{0xff, 0xfe}))
	_, err := e.Embed(table, nameSpec, EmbedOptions{})
	if !errors.Is(err, ErrInvalidFieldValue) {
		t.Errorf("got %v, want ErrInvalidFieldValue", err)
	}
}

func TestEmbedBasicInvariants(t *testing.T) {
	e := mustEmbedder(t, Config{Size: 1024, NumHashes: 2}, nil)
	table := namesTable(t, "Laura Ochoa", "", "Mark Speer")
	d := mustEmbed(t, e, table, nameSpec, EmbedOptions{})

	if d.Len() != 3 {
		t.Fatalf("dataset has %d records, want 3", d.Len())
	}
	if d.Checksum != e.Checksum() {
		t.Errorf("dataset checksum %q != embedder checksum %q", d.Checksum, e.Checksum())
	}
	for i, r := range d.Records {
		if (r.Norm > 0) != (len(r.Indices) > 0) {
			t.Errorf("record %d: norm %v with %d indices", i, r.Norm, len(r.Indices))
		}
		want := math.Sqrt(float64(len(r.Indices)))
		if math.Abs(r.Norm-want) > 1e-12 {
			t.Errorf("record %d: norm %v, want √%d", i, r.Norm, len(r.Indices))
		}
	}
	if !d.Records[1].Empty() {
		t.Error("empty field produced a non-empty record")
	}
}

func TestEmbedKeepFeatures(t *testing.T) {
	e := mustEmbedder(t, Config{Size: 256, NumHashes: 2}, nil)
	table := namesTable(t, "Ana")

	plain := mustEmbed(t, e, table, nameSpec, EmbedOptions{})
	if plain.Records[0].Features != nil {
		t.Error("features retained without KeepFeatures")
	}

	kept := mustEmbed(t, e, table, nameSpec, EmbedOptions{KeepFeatures: true})
	feats := kept.Records[0].Features
	if len(feats["name"]) == 0 {
		t.Errorf("features not retained: %v", feats)
	}
}

func TestEmbedDeterministic(t *testing.T) {
	cfg := Config{Size: 1024, NumHashes: 2, Salt: "project-salt"}
	table := namesTable(t, "Grete Knopf", "Kaspar Gorman")

	e1 := mustEmbedder(t, cfg, nil)
	e2 := mustEmbedder(t, cfg, nil)
	if e1.Checksum() != e2.Checksum() {
		t.Fatalf("same config produced different checksums")
	}
	d1 := mustEmbed(t, e1, table, nameSpec, EmbedOptions{UpdateThresholds: true})
	d2 := mustEmbed(t, e2, table, nameSpec, EmbedOptions{UpdateThresholds: true})
	if !reflect.DeepEqual(d1, d2) {
		t.Errorf("same input embedded differently:\n%+v\n%+v", d1, d2)
	}
}

func TestCompareSelfSimilarity(t *testing.T) {
	e := mustEmbedder(t, Config{Size: 1024, NumHashes: 2}, nil)
	table := namesTable(t, "Laura Ochoa", "Mark Speer", "", "DJ Johnson")
	d := mustEmbed(t, e, table, nameSpec, EmbedOptions{})

	sim, err := e.Compare(d, d)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for i := 0; i < sim.Rows; i++ {
		for j := 0; j < sim.Cols; j++ {
			s := sim.At(i, j)
			if s < 0 || s > 1 {
				t.Errorf("sim(%d,%d) = %v outside [0, 1]", i, j, s)
			}
			if math.Abs(s-sim.At(j, i)) > 1e-9 {
				t.Errorf("asymmetry at (%d,%d): %v vs %v", i, j, s, sim.At(j, i))
			}
		}
		if d.Records[i].Empty() {
			for j := 0; j < sim.Cols; j++ {
				if sim.At(i, j) != 0 {
					t.Errorf("empty record %d scored %v against %d", i, sim.At(i, j), j)
				}
			}
			continue
		}
		if diff := math.Abs(sim.At(i, i) - 1); diff > 1e-9 {
			t.Errorf("self-similarity of %d = %v", i, sim.At(i, i))
		}
	}
}

func TestCompareConfigMismatch(t *testing.T) {
	table := namesTable(t, "Laura Ochoa")
	e1 := mustEmbedder(t, Config{Size: 1024, NumHashes: 2}, nil)
	e2 := mustEmbedder(t, Config{Size: 2048, NumHashes: 2}, nil)

	d1 := mustEmbed(t, e1, table, nameSpec, EmbedOptions{})
	d2 := mustEmbed(t, e2, table, nameSpec, EmbedOptions{})

	if sim, err := e1.Compare(d1, d2); !errors.Is(err, ErrConfigMismatch) {
		t.Errorf("got (%v, %v), want ErrConfigMismatch", sim, err)
	} else if sim != nil {
		t.Error("Compare returned a matrix alongside the error")
	}
}

func TestCompareSaltMismatch(t *testing.T) {
	table := namesTable(t, "Laura Ochoa")
	e1 := mustEmbedder(t, Config{Size: 1024, NumHashes: 2, Salt: "a"}, nil)
	e2 := mustEmbedder(t, Config{Size: 1024, NumHashes: 2, Salt: "b"}, nil)

	d2 := mustEmbed(t, e2, table, nameSpec, EmbedOptions{})
	if _, err := e1.Compare(mustEmbed(t, e1, table, nameSpec, EmbedOptions{}), d2); !errors.Is(err, ErrConfigMismatch) {
		t.Errorf("got %v, want ErrConfigMismatch", err)
	}
}

func TestUpdateThresholdsMaximum(t *testing.T) {
	e := mustEmbedder(t, Config{Size: 2048, NumHashes: 2}, nil)
	table := namesTable(t, "Anna Schmidt", "Anna Schmid", "Ulrich Wagner")
	d := mustEmbed(t, e, table, nameSpec, EmbedOptions{UpdateThresholds: true})

	sim, err := e.Compare(d, d)
	if err != nil {
		t.Fatal(err)
	}
	for i := range d.Records {
		max := 0.0
		for j := range d.Records {
			if j != i && sim.At(i, j) > max {
				max = sim.At(i, j)
			}
		}
		if math.Abs(d.Records[i].Threshold-max) > 1e-9 {
			t.Errorf("row %d threshold %v, want max self-similarity %v", i, d.Records[i].Threshold, max)
		}
	}
	if d.Records[0].Threshold < 0.5 {
		t.Errorf("near-duplicate threshold %v suspiciously low", d.Records[0].Threshold)
	}
	if d.Records[2].Threshold > 0.5 {
		t.Errorf("distinct-record threshold %v suspiciously high", d.Records[2].Threshold)
	}
}

func TestUpdateThresholdsQuantile(t *testing.T) {
	cfgMax := Config{Size: 2048, NumHashes: 2}
	cfgLow := Config{Size: 2048, NumHashes: 2, ThresholdQuantile: 0.5}
	table := namesTable(t, "Anna Schmidt", "Anna Schmid", "Ulrich Wagner", "Ulrich Wagener")

	dMax := mustEmbed(t, mustEmbedder(t, cfgMax, nil), table, nameSpec, EmbedOptions{UpdateThresholds: true})
	dLow := mustEmbed(t, mustEmbedder(t, cfgLow, nil), table, nameSpec, EmbedOptions{UpdateThresholds: true})

	for i := range dMax.Records {
		if dLow.Records[i].Threshold > dMax.Records[i].Threshold+1e-12 {
			t.Errorf("row %d: median threshold %v exceeds maximum threshold %v",
				i, dLow.Records[i].Threshold, dMax.Records[i].Threshold)
		}
	}
}

func TestUpdateThresholdsSampleCap(t *testing.T) {
	cfg := Config{Size: 2048, NumHashes: 2, SelfSampleCap: 3}
	e := mustEmbedder(t, cfg, nil)
	names := []string{
		"Ada Byron", "Grace Hopper", "Edsger Dijkstra", "Barbara Liskov",
		"Donald Knuth", "Tony Hoare", "Frances Allen", "Niklaus Wirth",
	}
	d := mustEmbed(t, e, namesTable(t, names...), nameSpec, EmbedOptions{UpdateThresholds: true})
	for i, r := range d.Records {
		if r.Threshold < 0 || r.Threshold > 1 {
			t.Errorf("row %d threshold %v outside [0, 1]", i, r.Threshold)
		}
	}
}

func TestUpdateThresholdsSingleton(t *testing.T) {
	e := mustEmbedder(t, Config{Size: 256, NumHashes: 2}, nil)
	d := mustEmbed(t, e, namesTable(t, "Only Row"), nameSpec, EmbedOptions{UpdateThresholds: true})
	if d.Records[0].Threshold != 0 {
		t.Errorf("singleton threshold = %v, want 0", d.Records[0].Threshold)
	}
}

func TestUpdateThresholdsChecksumGate(t *testing.T) {
	e1 := mustEmbedder(t, Config{Size: 256, NumHashes: 2}, nil)
	e2 := mustEmbedder(t, Config{Size: 512, NumHashes: 2}, nil)
	d := mustEmbed(t, e1, namesTable(t, "Ana", "Bo"), nameSpec, EmbedOptions{})
	if err := e2.UpdateThresholds(d); !errors.Is(err, ErrConfigMismatch) {
		t.Errorf("got %v, want ErrConfigMismatch", err)
	}
}
