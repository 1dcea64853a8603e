package population

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	apperrors "raffle/pkg/errors"
)

// Row is one population member. ID is the canonical string form of the
// unique-key attribute; Attrs still contains the key column itself.
type Row struct {
	ID    string         `json:"id"`
	Attrs map[string]any `json:"attributes"`
}

// Table is a caller-owned population snapshot. Nothing in the engine keeps
// a Table past a single draw.
type Table struct {
	UniqueKey string
	Columns   []string
	Rows      []Row
}

// FromRecords builds a Table keyed by uniqueKey. Every record must carry the
// key; a key column that no record has yields UniqueKeyMissingError.
func FromRecords(records []map[string]any, uniqueKey string) (*Table, error) {
	if uniqueKey == "" {
		return nil, apperrors.ErrConfiguration.WithMessage("unique key name is empty")
	}

	columns := make(map[string]struct{})
	normalized := make([]map[string]any, len(records))
	for i, rec := range records {
		attrs := make(map[string]any, len(rec))
		for k, v := range rec {
			nv, err := Normalize(v)
			if err != nil {
				return nil, apperrors.ErrConfiguration.
					WithMessage("record %d attribute %q: %v", i, k, err)
			}
			attrs[k] = nv
			columns[k] = struct{}{}
		}
		normalized[i] = attrs
	}

	if _, ok := columns[uniqueKey]; !ok && len(records) > 0 {
		return nil, apperrors.ErrUniqueKeyMissing.
			WithMessage("unique key column %q not found in population", uniqueKey).
			WithDetail("unique_key", uniqueKey)
	}

	rows := make([]Row, 0, len(records))
	for i, attrs := range normalized {
		id, err := rowID(i, uniqueKey, attrs[uniqueKey])
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{ID: id, Attrs: attrs})
	}

	cols := make([]string, 0, len(columns))
	for c := range columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	return &Table{UniqueKey: uniqueKey, Columns: cols, Rows: rows}, nil
}

// rowID renders the unique key of record i. Ids must be valid UTF-8 so that
// distinct byte strings never collapse to the same snapshot entry.
func rowID(i int, uniqueKey string, keyVal any) (string, error) {
	if keyVal == nil || keyVal == "" {
		return "", apperrors.ErrUniqueKeyMissing.
			WithMessage("record %d has no value for unique key %q", i, uniqueKey).
			WithDetail("unique_key", uniqueKey)
	}
	id := Canonical(keyVal)
	if !utf8.ValidString(id) {
		return "", apperrors.ErrValidation.
			WithMessage("record %d: unique key %q is not valid UTF-8 (%q)", i, uniqueKey, id).
			WithDetail("unique_key", uniqueKey).
			WithDetail("record", i)
	}
	return id, nil
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) IDs() []string {
	ids := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		ids[i] = r.ID
	}
	return ids
}

// KeyedBy returns t re-identified by uniqueKey. Rows share their attribute
// maps with t.
func (t *Table) KeyedBy(uniqueKey string) (*Table, error) {
	if t.UniqueKey == uniqueKey {
		return t, nil
	}
	if t.Len() > 0 && !t.HasColumn(uniqueKey) {
		return nil, apperrors.ErrUniqueKeyMissing.
			WithMessage("unique key column %q not found in population", uniqueKey).
			WithDetail("unique_key", uniqueKey)
	}

	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		id, err := rowID(i, uniqueKey, r.Attrs[uniqueKey])
		if err != nil {
			return nil, err
		}
		rows[i] = Row{ID: id, Attrs: r.Attrs}
	}
	return &Table{UniqueKey: uniqueKey, Columns: t.Columns, Rows: rows}, nil
}

// WithRows returns a table sharing schema with t but holding rows.
func (t *Table) WithRows(rows []Row) *Table {
	return &Table{UniqueKey: t.UniqueKey, Columns: t.Columns, Rows: rows}
}

// Dedupe keeps the last occurrence of every ID. Kept rows stay at the
// position of the first occurrence so output order is stable.
func (t *Table) Dedupe() *Table {
	pos := make(map[string]int, len(t.Rows))
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	return t.WithRows(out)
}

// Normalize maps decoded attribute values onto int64, float64, string or
// bool. Integral floats become int64 so CSV and JSON inputs agree.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return normalizeFloat(float64(x)), nil
	case float64:
		return normalizeFloat(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return normalizeFloat(f), nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %T", v)
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// Canonical renders an attribute value the way categorical rules and the
// snapshot hash see it: integers without a fraction, floats in shortest form.
func Canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Numeric returns v as float64 if it is a number.
func Numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
