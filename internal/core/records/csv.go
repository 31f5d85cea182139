package records

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV turns a headed CSV export into flat provider records. Column names
// are the flat record keys (id, name, address, lat, lng, capacity,
// free_spots, ...). Empty cells are left out so fallbacks apply.
func ReadCSV(r io.Reader) ([]json.RawMessage, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make([]string, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		cols[i] = strings.ToLower(strings.TrimSpace(col))
	}

	var out []json.RawMessage
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		obj := make(map[string]string, len(cols))
		for i, v := range row {
			if i >= len(cols) || cols[i] == "" {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				obj[cols[i]] = v
			}
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("encode csv line %d: %w", line, err)
		}
		out = append(out, data)
	}
	return out, nil
}
