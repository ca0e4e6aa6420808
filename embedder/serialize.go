package embedder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const datasetVersion = 1

// datasetHeader is the first line of a serialized dataset. It carries
// the config checksum so that two loaded datasets can still be
// checked for config agreement at compare time.
type datasetHeader struct {
	Version  int    `json:"version"`
	Checksum string `json:"checksum"`
}

type recordRow struct {
	Indices   []uint32            `json:"indices"`
	Norm      float64             `json:"norm"`
	Threshold float64             `json:"threshold"`
	Features  map[string][]string `json:"features,omitempty"`
}

// WriteDataset serializes a dataset as JSON lines: a header object
// followed by one record per line.
func WriteDataset(w io.Writer, d *Dataset) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(datasetHeader{Version: datasetVersion, Checksum: d.Checksum}); err != nil {
		return fmt.Errorf("encode dataset header: %w", err)
	}
	for i := range d.Records {
		r := &d.Records[i]
		row := recordRow{
			Indices:   r.Indices,
			Norm:      r.Norm,
			Threshold: r.Threshold,
			Features:  r.Features,
		}
		if row.Indices == nil {
			row.Indices = []uint32{}
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadDataset parses a dataset written by WriteDataset, validating the
// record invariants as it goes.
func ReadDataset(r io.Reader) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		return nil, fmt.Errorf("%w: missing dataset header", ErrSerialization)
	}
	var header datasetHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("%w: bad dataset header: %v", ErrSerialization, err)
	}
	if header.Version != datasetVersion {
		return nil, fmt.Errorf("%w: unsupported dataset version %d", ErrSerialization, header.Version)
	}

	d := &Dataset{Checksum: header.Checksum}
	line := 1
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var row recordRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSerialization, line, err)
		}
		if err := validateRow(&row); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSerialization, line, err)
		}
		rec := Record{
			Norm:      row.Norm,
			Threshold: row.Threshold,
			Features:  row.Features,
		}
		if len(row.Indices) > 0 {
			rec.Indices = row.Indices
		}
		d.Records = append(d.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return d, nil
}

func validateRow(row *recordRow) error {
	for i := 1; i < len(row.Indices); i++ {
		if row.Indices[i] <= row.Indices[i-1] {
			return fmt.Errorf("indices not strictly ascending at position %d", i)
		}
	}
	if row.Norm < 0 {
		return fmt.Errorf("negative norm %v", row.Norm)
	}
	if (row.Norm > 0) != (len(row.Indices) > 0) {
		return fmt.Errorf("norm %v inconsistent with %d indices", row.Norm, len(row.Indices))
	}
	if row.Threshold < 0 || row.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0, 1]", row.Threshold)
	}
	return nil
}

// WriteDatasetFile writes a dataset to disk atomically.
func WriteDatasetFile(path string, d *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write temp dataset: %w", err)
	}
	if err := WriteDataset(f, d); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename dataset: %w", err)
	}
	return nil
}

// ReadDatasetFile loads a dataset written by WriteDatasetFile.
func ReadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}
