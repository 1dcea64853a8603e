package population

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "raffle/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadFile picks a loader by extension (.csv, otherwise JSON).
func LoadFile(path, uniqueKey string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open population file %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return LoadCSV(f, uniqueKey)
	}
	return LoadJSON(f, uniqueKey)
}

// LoadJSON reads a JSON array of flat objects.
func LoadJSON(r io.Reader, uniqueKey string) (*Table, error) {
	dec := json.NewDecoder(skipBOM(r))
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, apperrors.ErrValidation.WithCause(err).WithMessage("population must be a JSON array of objects")
	}
	return FromRecords(records, uniqueKey)
}

// LoadCSV reads a header row plus data rows. Cells are inferred as int,
// float, bool or string; empty cells are absent. The unique-key column is
// always kept verbatim so identifiers like "007" survive.
func LoadCSV(r io.Reader, uniqueKey string) (*Table, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return FromRecords(nil, uniqueKey)
	}
	if err != nil {
		return nil, apperrors.ErrValidation.WithCause(err).WithMessage("failed to read CSV header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []map[string]any
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ErrValidation.WithCause(err).WithMessage("failed to read CSV line %d", line)
		}

		rec := make(map[string]any, len(header))
		for i, name := range header {
			if i >= len(cells) {
				break
			}
			cell := strings.TrimSpace(cells[i])
			if cell == "" {
				continue
			}
			if name == uniqueKey {
				rec[name] = cell
				continue
			}
			rec[name] = inferCell(cell)
		}
		records = append(records, rec)
	}

	return FromRecords(records, uniqueKey)
}

func inferCell(cell string) any {
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
