package embedder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is the minimal tabular surface the embedder reads. Adapt at
// the edge from whatever the caller actually uses; cells are plain
// strings, with the empty string standing for missing data.
type Table interface {
	// Columns returns the column names in table order.
	Columns() []string

	// Len returns the number of rows.
	Len() int

	// Values returns the column's cells, one per row.
	Values(column string) ([]string, error)
}

// MemTable is a column-oriented in-memory table.
type MemTable struct {
	cols []string
	data map[string][]string
	rows int
}

// NewMemTable builds a table from a header and row-major cells. Short
// rows are padded with empty cells; long rows are an error.
func NewMemTable(columns []string, rows [][]string) (*MemTable, error) {
	t := &MemTable{
		cols: append([]string(nil), columns...),
		data: make(map[string][]string, len(columns)),
		rows: len(rows),
	}
	for _, col := range columns {
		t.data[col] = make([]string, 0, len(rows))
	}
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d columns", i, len(row), len(columns))
		}
		for c, col := range columns {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			t.data[col] = append(t.data[col], cell)
		}
	}
	return t, nil
}

// Columns implements Table.
func (t *MemTable) Columns() []string { return t.cols }

// Len implements Table.
func (t *MemTable) Len() int { return t.rows }

// Values implements Table.
func (t *MemTable) Values(column string) ([]string, error) {
	vals, ok := t.data[column]
	if !ok {
		return nil, fmt.Errorf("no column %q", column)
	}
	return vals, nil
}

// ReadCSV parses delimited data with a header row into a table.
// Use '\t' as the comma for TSV input.
func ReadCSV(r io.Reader, comma rune) (*MemTable, error) {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty table")
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cleanCell(cell)
		}
		body = append(body, cells)
	}
	return NewMemTable(header, body)
}

// cleanCell trims surrounding whitespace and a leading byte-order mark.
func cleanCell(cell string) string {
	cell = strings.TrimPrefix(cell, "\ufeff")
	return strings.TrimSpace(cell)
}
