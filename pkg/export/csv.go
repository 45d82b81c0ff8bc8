// Package export renders series as tables.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/HatiCode/meteocache/pkg/series"
)

// WriteCSV writes one row per timestamp of f: the time column first, then
// every variable sorted by name. Missing values are written as empty cells
// and string values are unquoted.
func WriteCSV(w io.Writer, f *series.Fragment) error {
	if f == nil {
		return fmt.Errorf("export csv: nil series")
	}

	vars := f.Variables()
	cw := csv.NewWriter(w)

	header := append([]string{series.TimeKey}, vars...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export csv header: %w", err)
	}

	row := make([]string, len(header))
	for i, ts := range f.Time {
		row[0] = ts
		for j, name := range vars {
			col := f.Columns[name]
			if i >= len(col) {
				row[j+1] = ""
				continue
			}
			row[j+1] = cell(col[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func cell(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
