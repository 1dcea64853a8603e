package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"raffle/internal/population"
)

// utf8BOM makes spreadsheet tools pick UTF-8 for Korean and other non-ASCII
// values.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes rows as a BOM-prefixed CSV table. The unique key column
// comes first and the other columns follow in sorted order; absent or null
// values are written as empty cells.
func WriteCSV(w io.Writer, uniqueKey string, columns []string, rows []population.Row) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	header := Header(uniqueKey, columns)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		record[0] = row.ID
		for i, col := range header[1:] {
			record[i+1] = population.Canonical(row.Attrs[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Header is the export column order for uniqueKey and columns.
func Header(uniqueKey string, columns []string) []string {
	rest := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != uniqueKey {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append([]string{uniqueKey}, rest...)
}
